// Package settlement turns an invoice and its allocation into per-person
// totals and the single transfer that evens them out.
package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"

	"invoicesplit/internal/domain"
)

// PerfectlySplitMessage is reported when neither participant owes anything.
const PerfectlySplitMessage = "All expenses are perfectly split!"

var two = decimal.NewFromInt(2)

// Totals are the sums derived from one allocation. Like every decimal in this
// package they marshal to JSON as strings ("12.5").
type Totals struct {
	A          decimal.Decimal `json:"a" yaml:"a"`
	B          decimal.Decimal `json:"b" yaml:"b"`
	Unassigned decimal.Decimal `json:"unassigned" yaml:"unassigned"`
	Total      decimal.Decimal `json:"total" yaml:"total"`
	FairShare  decimal.Decimal `json:"fair_share" yaml:"fair_share"`
}

// Settlement is the transfer needed to equalize both totals.
// Payer and Payee are empty when the totals are equal.
type Settlement struct {
	Payer  domain.Participant `json:"payer,omitempty" yaml:"payer,omitempty"`
	Payee  domain.Participant `json:"payee,omitempty" yaml:"payee,omitempty"`
	Amount decimal.Decimal    `json:"amount" yaml:"amount"`
}

// Settled reports whether no transfer is needed.
func (s Settlement) Settled() bool {
	return s.Payer == ""
}

// ComputeTotals sums prices per participant. Indices outside the invoice are ignored.
func ComputeTotals(inv *domain.Invoice, alloc domain.Allocation) Totals {
	t := Totals{
		A:          decimal.Zero,
		B:          decimal.Zero,
		Unassigned: decimal.Zero,
	}
	if inv != nil {
		for idx, item := range inv.LineItems {
			owner, ok := alloc.Owner(idx)
			switch {
			case !ok:
				t.Unassigned = t.Unassigned.Add(item.TotalPrice)
			case owner == domain.ParticipantA:
				t.A = t.A.Add(item.TotalPrice)
			default:
				t.B = t.B.Add(item.TotalPrice)
			}
		}
	}
	t.Total = t.A.Add(t.B)
	t.FairShare = t.Total.Div(two)
	return t
}

// Settle returns who pays whom: amount = |a-b|/2, paid by the lower total.
func Settle(totalA, totalB decimal.Decimal) Settlement {
	diff := totalA.Sub(totalB)
	s := Settlement{Amount: diff.Abs().Div(two)}
	switch diff.Sign() {
	case 1:
		s.Payer, s.Payee = domain.ParticipantB, domain.ParticipantA
	case -1:
		s.Payer, s.Payee = domain.ParticipantA, domain.ParticipantB
	}
	return s
}

// ItemLine is one line item with its current owner.
type ItemLine struct {
	Index   int                `json:"index" yaml:"index"`
	Name    string             `json:"item_name" yaml:"item_name"`
	Price   decimal.Decimal    `json:"total_price" yaml:"total_price"`
	Owner   domain.Participant `json:"owner,omitempty" yaml:"owner,omitempty"`
	Unusual bool               `json:"unusual,omitempty" yaml:"unusual,omitempty"`
}

// Summary is everything the interactive surface shows below the item table.
type Summary struct {
	InvoiceID  string       `json:"invoice_id" yaml:"invoice_id"`
	Date       string       `json:"date" yaml:"date"`
	Names      domain.Names `json:"names" yaml:"names"`
	Currency   string       `json:"currency" yaml:"currency"`
	Items      []ItemLine   `json:"items" yaml:"items"`
	Totals     Totals       `json:"totals" yaml:"totals"`
	Settlement Settlement   `json:"settlement" yaml:"settlement"`
	Empty      bool         `json:"empty" yaml:"empty"`
	Message    string       `json:"message" yaml:"message"`
}

// Summarize builds the display summary for an invoice and allocation.
func Summarize(inv *domain.Invoice, alloc domain.Allocation, names domain.Names, currency string) Summary {
	totals := ComputeTotals(inv, alloc)
	s := Summary{
		Names:      names,
		Currency:   currency,
		Totals:     totals,
		Settlement: Settle(totals.A, totals.B),
		Empty:      inv.IsEmpty(),
		Items:      []ItemLine{},
	}
	if inv != nil {
		s.InvoiceID = inv.InvoiceID
		s.Date = inv.Date
		for idx, item := range inv.LineItems {
			owner, _ := alloc.Owner(idx)
			s.Items = append(s.Items, ItemLine{
				Index:   idx,
				Name:    item.Name,
				Price:   item.TotalPrice,
				Owner:   owner,
				Unusual: item.TotalPrice.IsNegative(),
			})
		}
	}
	s.Message = Describe(s.Settlement, names, currency)
	return s
}

// Describe renders a settlement as a sentence.
func Describe(s Settlement, names domain.Names, currency string) string {
	if s.Settled() {
		return PerfectlySplitMessage
	}
	return fmt.Sprintf("%s owes %s: %s", names.Of(s.Payer), names.Of(s.Payee), FormatMoney(s.Amount, currency))
}

// FormatMoney renders an amount with two decimals and an optional currency suffix.
func FormatMoney(v decimal.Decimal, currency string) string {
	if currency == "" {
		return v.StringFixed(2)
	}
	return v.StringFixed(2) + " " + currency
}
