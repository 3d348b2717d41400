package calc

import (
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/medledger/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/medledger/internal/payment/domain"
	"github.com/smallbiznis/medledger/internal/statement/domain"
)

// GrossCharge sums qty times unit price over an invoice's lines.
func GrossCharge(lines []invoicedomain.InvoiceLine) int64 {
	var total int64
	for _, line := range lines {
		total += line.Qty * line.UnitPrice
	}
	return total
}

// DaysOutstanding is the whole number of days between the invoice date and
// the as-of instant, floored at zero.
func DaysOutstanding(invoiceDate, asOf time.Time) int {
	days := int(asOf.Sub(invoiceDate).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// BucketFor bands days outstanding using closed-open boundaries; exactly
// 30 days is still current, exactly 31 falls into the next band.
func BucketFor(days int) domain.AgingBucket {
	switch {
	case days < 31:
		return domain.BucketCurrent
	case days < 61:
		return domain.Bucket31to60
	case days < 91:
		return domain.Bucket61to90
	default:
		return domain.Bucket90Plus
	}
}

// SumAmounts totals a payment slice.
func SumAmounts(payments []paymentdomain.Payment) int64 {
	var total int64
	for _, p := range payments {
		total += p.Amount
	}
	return total
}

// AllocateUnattributed applies a patient's unattributed payments to their
// invoices oldest-invoice-date-first, ties broken by invoice id. An
// allocation never exceeds an invoice's remaining patient-portion balance;
// any residue left after every invoice is cleared stays unapplied.
func AllocateUnattributed(invoices []invoicedomain.Invoice, attributedTotals map[snowflake.ID]int64, payments []paymentdomain.Payment) map[snowflake.ID]int64 {
	allocations := make(map[snowflake.ID]int64, len(invoices))
	if len(invoices) == 0 || len(payments) == 0 {
		return allocations
	}

	ordered := make([]invoicedomain.Invoice, len(invoices))
	copy(ordered, invoices)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].InvoiceDate.Equal(ordered[j].InvoiceDate) {
			return ordered[i].InvoiceDate.Before(ordered[j].InvoiceDate)
		}
		return ordered[i].ID < ordered[j].ID
	})

	remaining := make(map[snowflake.ID]int64, len(ordered))
	for _, inv := range ordered {
		open := inv.PatientPortion - attributedTotals[inv.ID]
		if open < 0 {
			open = 0
		}
		remaining[inv.ID] = open
	}

	for _, payment := range payments {
		left := payment.Amount
		for _, inv := range ordered {
			if left == 0 {
				break
			}
			open := remaining[inv.ID]
			if open == 0 {
				continue
			}
			applied := left
			if applied > open {
				applied = open
			}
			allocations[inv.ID] += applied
			remaining[inv.ID] = open - applied
			left -= applied
		}
	}

	return allocations
}

// ComputeInvoice derives one invoice's ledger position. Pure: the result is
// a function of its inputs and the as-of instant only. The recorded patient
// portion is authoritative for billing even when the line items disagree;
// the mismatch is surfaced via the Inconsistent flag.
func ComputeInvoice(inv invoicedomain.Invoice, lines []invoicedomain.InvoiceLine, attributed []paymentdomain.Payment, allocated int64, asOf time.Time) domain.InvoiceResult {
	gross := GrossCharge(lines)
	applied := SumAmounts(attributed) + allocated

	balance := inv.PatientPortion - applied
	if balance < 0 {
		balance = 0
	}

	days := 0
	bucket := domain.BucketNA
	if balance > 0 {
		days = DaysOutstanding(inv.InvoiceDate, asOf)
		bucket = BucketFor(days)
	}

	return domain.InvoiceResult{
		InvoiceID:        inv.ID,
		PatientID:        inv.PatientID,
		InvoiceDate:      inv.InvoiceDate,
		StoredStatus:     string(inv.Status),
		GrossCharge:      gross,
		InsurancePortion: inv.InsurancePortion,
		PatientPortion:   inv.PatientPortion,
		TotalPaid:        applied,
		BalanceDue:       balance,
		DaysOutstanding:  days,
		AgingBucket:      bucket,
		Inconsistent:     gross != inv.InsurancePortion+inv.PatientPortion,
	}
}
