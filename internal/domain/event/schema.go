package event

import (
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const schemaDefinitions = `
  "definitions": {
    "uuid": {
      "type": "string",
      "pattern": "^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$"
    },
    "customer": {
      "type": "object",
      "required": ["id", "name", "email", "phone"],
      "properties": {
        "id": { "$ref": "#/definitions/uuid" },
        "name": { "type": "string", "minLength": 1 },
        "email": { "type": "string", "format": "email" },
        "phone": { "type": "string" }
      }
    },
    "item": {
      "type": "object",
      "required": ["id", "productId", "name", "quantity", "price"],
      "properties": {
        "id": { "$ref": "#/definitions/uuid" },
        "productId": { "$ref": "#/definitions/uuid" },
        "name": { "type": "string", "minLength": 1 },
        "quantity": { "type": "integer", "minimum": 1 },
        "price": { "type": "integer", "minimum": 0 },
        "isOrderBump": { "type": "boolean" },
        "isUpsell": { "type": "boolean" }
      }
    },
    "timestamp": { "type": "string", "format": "date-time" }
  }`

const schemaOrderCreated = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "checkoutId", "status", "customer", "resource", "items", "createdAt", "updatedAt"],
  "properties": {
    "id": { "$ref": "#/definitions/uuid" },
    "checkoutId": { "$ref": "#/definitions/uuid" },
    "status": { "enum": ["DRAFT", "PENDING_PAYMENT", "PAID", "CANCELLED", "ABANDONED_CART"] },
    "customer": { "$ref": "#/definitions/customer" },
    "resource": {
      "type": "object",
      "required": ["totalItems", "value_total"],
      "properties": {
        "totalItems": { "type": "integer", "minimum": 1 },
        "value_total": { "type": "integer", "minimum": 0 }
      }
    },
    "items": { "type": "array", "minItems": 1, "items": { "$ref": "#/definitions/item" } },
    "createdAt": { "$ref": "#/definitions/timestamp" },
    "updatedAt": { "$ref": "#/definitions/timestamp" }
  },` + schemaDefinitions + `
}`

const schemaOrderPaid = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "checkoutId", "status", "customer", "resource", "items", "createdAt", "updatedAt",
               "paymentId", "paidAt", "paymentMethod"],
  "properties": {
    "id": { "$ref": "#/definitions/uuid" },
    "checkoutId": { "$ref": "#/definitions/uuid" },
    "status": { "const": "PAID" },
    "customer": { "$ref": "#/definitions/customer" },
    "resource": {
      "type": "object",
      "required": ["totalItems", "value_total"],
      "properties": {
        "totalItems": { "type": "integer", "minimum": 1 },
        "value_total": { "type": "integer", "minimum": 0 }
      }
    },
    "items": { "type": "array", "minItems": 1, "items": { "$ref": "#/definitions/item" } },
    "createdAt": { "$ref": "#/definitions/timestamp" },
    "updatedAt": { "$ref": "#/definitions/timestamp" },
    "paymentId": { "type": "string", "minLength": 1 },
    "paidAt": { "$ref": "#/definitions/timestamp" },
    "paymentMethod": { "type": "string" }
  },` + schemaDefinitions + `
}`

const schemaCartReminder = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["orderId", "customer", "items", "createdAt", "updatedAt"],
  "properties": {
    "orderId": { "$ref": "#/definitions/uuid" },
    "customer": { "$ref": "#/definitions/customer" },
    "items": {
      "type": "array",
      "minItems": 1,
      "items": {
        "allOf": [
          { "$ref": "#/definitions/item" },
          { "propertyNames": { "enum": ["id", "productId", "name", "quantity", "price"] } }
        ]
      }
    },
    "createdAt": { "$ref": "#/definitions/timestamp" },
    "updatedAt": { "$ref": "#/definitions/timestamp" }
  },` + schemaDefinitions + `
}`

var (
	schemaOnce sync.Once
	schemas    map[Name]*gojsonschema.Schema
	schemaErr  error
)

func loadSchemas() (map[Name]*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		sources := map[Name]string{
			OrderCreated: schemaOrderCreated,
			OrderPaid:    schemaOrderPaid,
			CartReminder: schemaCartReminder,
		}
		schemas = make(map[Name]*gojsonschema.Schema, len(sources))
		for name, src := range sources {
			s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
			if err != nil {
				schemaErr = fmt.Errorf("compile %s schema: %w", name, err)
				return
			}
			schemas[name] = s
		}
	})
	return schemas, schemaErr
}

// Validate checks a serialized resource against the schema of name.
func Validate(name Name, data []byte) error {
	all, err := loadSchemas()
	if err != nil {
		return err
	}
	schema, ok := all[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, e.String())
	}
	return &SchemaError{Event: name, Violations: violations}
}
