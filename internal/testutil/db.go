// Package testutil provides shared helpers for database-backed tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/digicheckout/server/internal/model"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// webhooksDDL replaces AutoMigrate for webhooks; sqlite has no text[] type,
// so events are stored in pq's array literal form.
const webhooksDDL = `CREATE TABLE webhooks (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	events TEXT NOT NULL,
	secret TEXT NOT NULL,
	active NUMERIC NOT NULL DEFAULT 1,
	created_at DATETIME,
	updated_at DATETIME,
	deleted_at DATETIME
)`

// NewDB opens an isolated in-memory sqlite database with the full schema.
// The pool is limited to one connection, so code holding a transaction must
// route every query through it.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Exec(webhooksDDL).Error; err != nil {
		t.Fatalf("create webhooks table: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Customer{},
		&model.Order{},
		&model.OrderItem{},
		&model.Payment{},
		&model.OrderStatusHistory{},
		&model.ExternalWebhookLog{},
		&model.WebhookLog{},
		&model.WebhookJob{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// SeedOrder inserts a customer, an order in status and two items.
func SeedOrder(t *testing.T, db *gorm.DB, status model.OrderStatus) *model.Order {
	t.Helper()

	customer := &model.Customer{Name: "Ana Souza", Email: "ana@example.com", Phone: "+5511999990000"}
	if err := db.Create(customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	order := &model.Order{
		CheckoutID:  uuid.New(),
		CustomerID:  customer.ID,
		Status:      status,
		TotalAmount: 14700,
		Currency:    "BRL",
		Items: []*model.OrderItem{
			{ProductID: uuid.New(), Name: "Curso de Go", Quantity: 1, UnitPrice: 9700},
			{ProductID: uuid.New(), Name: "Ebook bonus", Quantity: 1, UnitPrice: 5000, IsOrderBump: true},
		},
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	order.Customer = customer
	return order
}

// SeedPayment inserts a pending payment for order.
func SeedPayment(t *testing.T, db *gorm.DB, order *model.Order, providerPaymentID string) *model.Payment {
	t.Helper()

	payment := &model.Payment{
		OrderID:           order.ID,
		Provider:          "mercadopago",
		ProviderPaymentID: providerPaymentID,
		Status:            model.PaymentStatusPending,
		Method:            "pix",
		Amount:            order.TotalAmount,
	}
	if err := db.Create(payment).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return payment
}

// SeedWebhook inserts a subscriber registration.
func SeedWebhook(t *testing.T, db *gorm.DB, url, secret string, active bool, events ...string) *model.Webhook {
	t.Helper()

	hook := &model.Webhook{URL: url, Secret: secret, Events: events, Active: true}
	if err := db.Create(hook).Error; err != nil {
		t.Fatalf("seed webhook: %v", err)
	}
	// Active has a column default, so false must be written explicitly.
	if !active {
		if err := db.Model(hook).Update("active", false).Error; err != nil {
			t.Fatalf("deactivate webhook: %v", err)
		}
		hook.Active = false
	}
	return hook
}
