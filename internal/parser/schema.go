package parser

import (
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// invoiceSchema describes the shape accepted from the model. Every field is
// optional; missing values get defaults in DecodeInvoice.
const invoiceSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "invoice_id": {"type": ["string", "number", "null"]},
    "date": {"type": ["string", "null"]},
    "line_items": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "item_name": {"type": ["string", "number", "null"]},
          "total_price": {"type": ["number", "string", "null"]}
        }
      }
    }
  }
}`

var compiledInvoiceSchema = jsonschema.MustCompileString("invoice.schema.json", invoiceSchema)

// ValidateInvoiceShape checks a decoded JSON value against the invoice schema.
// v must come from a decoder with UseNumber enabled.
func ValidateInvoiceShape(v interface{}) error {
	return compiledInvoiceSchema.Validate(v)
}
