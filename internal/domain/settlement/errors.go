package settlement

import "errors"

// Domain errors for settlement.
var (
	ErrInvalidInput = errors.New("invalid settlement input")
)
