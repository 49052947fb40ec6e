package reminder

import "errors"

// Domain errors for cart reminders.
var (
	ErrReminderDisabled = errors.New("cart reminders are disabled")
	ErrInvalidJob       = errors.New("invalid cart reminder job")
)

// errStale aborts a reminder transaction whose order or job moved under it.
var errStale = errors.New("reminder is stale")
