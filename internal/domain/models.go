package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NotAvailable is shown for invoice header fields the model did not return.
const NotAvailable = "N/A"

// DateLayout is the invoice date format requested from the model.
const DateLayout = "2006-01-02"

// LineItem is one priced entry on an invoice.
type LineItem struct {
	Name       string          `json:"item_name" yaml:"item_name"`
	TotalPrice decimal.Decimal `json:"total_price" yaml:"total_price"`
}

// Invoice is the structured record extracted from a document.
// LineItems order is the index space used by Allocation.
type Invoice struct {
	InvoiceID string     `json:"invoice_id" yaml:"invoice_id"`
	Date      string     `json:"date" yaml:"date"`
	LineItems []LineItem `json:"line_items" yaml:"line_items"`
}

// IsEmpty reports whether the invoice has no line items.
func (inv *Invoice) IsEmpty() bool {
	return inv == nil || len(inv.LineItems) == 0
}

// Total sums every line item regardless of allocation.
func (inv *Invoice) Total() decimal.Decimal {
	total := decimal.Zero
	if inv == nil {
		return total
	}
	for _, item := range inv.LineItems {
		total = total.Add(item.TotalPrice)
	}
	return total
}

// ParsedDate returns the invoice date when it is in YYYY-MM-DD form.
func (inv *Invoice) ParsedDate() (time.Time, bool) {
	if inv == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, inv.Date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Names holds the display names of both participants.
type Names struct {
	A string `json:"a" yaml:"a"`
	B string `json:"b" yaml:"b"`
}

// Of returns the display name of p.
func (n Names) Of(p Participant) string {
	if p == ParticipantB {
		return n.B
	}
	return n.A
}

// Failure records why the last processing attempt ended in the failed state.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Raw     string `json:"raw,omitempty"`
}

// Session owns one invoice and its allocation for the lifetime of a split.
type Session struct {
	ID           uuid.UUID    `json:"id"`
	State        SessionState `json:"state"`
	DocumentName string       `json:"document_name,omitempty"`
	Invoice      *Invoice     `json:"invoice,omitempty"`
	Allocation   Allocation   `json:"allocation"`
	Names        Names        `json:"names"`
	Failure      *Failure     `json:"failure,omitempty"`
	Warnings     []string     `json:"warnings,omitempty"`
	ModelUsed    string       `json:"model_used,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Allocation = s.Allocation.Clone()
	if s.Invoice != nil {
		inv := *s.Invoice
		inv.LineItems = append([]LineItem(nil), s.Invoice.LineItems...)
		c.Invoice = &inv
	}
	if s.Failure != nil {
		f := *s.Failure
		c.Failure = &f
	}
	c.Warnings = append([]string(nil), s.Warnings...)
	return &c
}

// IsEmptyInvoice reports the ready-but-no-items condition.
func (s *Session) IsEmptyInvoice() bool {
	return s.State == SessionStateReady && s.Invoice.IsEmpty()
}
