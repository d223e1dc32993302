package parser

// BuildInvoicePrompt returns the extraction prompt with the document text appended.
// The literal JSON example fixes the field names the decoder expects.
func BuildInvoicePrompt(text string) string {
	return `Extract the following information from the invoice text and return it as JSON:
1. The invoice ID (a unique identifier, often a number)
2. The date of the invoice
3. A list of line items, each with:
   - Item name
   - Total price

Return the data in this format:
{"invoice_id": "the_extracted_id",
 "date": "YYYY-MM-DD",
 "line_items": [
    {"item_name": "First item", "total_price": 100.0},
    {"item_name": "Second item", "total_price": 200.0}
  ]
}

Text:
` + text + "\n"
}
