package calc

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/medledger/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/medledger/internal/payment/domain"
	"github.com/smallbiznis/medledger/internal/statement/domain"
	"github.com/stretchr/testify/assert"
)

func day(asOf time.Time, daysAgo int) time.Time {
	return asOf.AddDate(0, 0, -daysAgo)
}

func TestBucketBoundaries(t *testing.T) {
	cases := []struct {
		days   int
		bucket domain.AgingBucket
	}{
		{0, domain.BucketCurrent},
		{15, domain.BucketCurrent},
		{30, domain.BucketCurrent},
		{31, domain.Bucket31to60},
		{45, domain.Bucket31to60},
		{60, domain.Bucket31to60},
		{61, domain.Bucket61to90},
		{90, domain.Bucket61to90},
		{91, domain.Bucket90Plus},
		{365, domain.Bucket90Plus},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.bucket, BucketFor(tc.days), "days=%d", tc.days)
	}
}

func TestDaysOutstanding(t *testing.T) {
	asOf := time.Date(2025, 11, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 45, DaysOutstanding(day(asOf, 45), asOf))
	assert.Equal(t, 0, DaysOutstanding(asOf, asOf))
	// invoice dated in the future never goes negative
	assert.Equal(t, 0, DaysOutstanding(asOf.AddDate(0, 0, 3), asOf))
}

func TestGrossCharge(t *testing.T) {
	lines := []invoicedomain.InvoiceLine{
		{Qty: 2, UnitPrice: 1500},
		{Qty: 1, UnitPrice: 5000},
		{Qty: 0, UnitPrice: 9900},
	}
	assert.Equal(t, int64(8000), GrossCharge(lines))
	assert.Equal(t, int64(0), GrossCharge(nil))
}

func TestComputeInvoice_Clamp(t *testing.T) {
	asOf := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)
	inv := invoicedomain.Invoice{
		ID:             1,
		PatientID:      9,
		InvoiceDate:    day(asOf, 10),
		PatientPortion: 5000,
	}
	payments := []paymentdomain.Payment{{Amount: 9000}}

	result := ComputeInvoice(inv, nil, payments, 0, asOf)

	assert.Equal(t, int64(0), result.BalanceDue)
	assert.Equal(t, int64(9000), result.TotalPaid)
	assert.Equal(t, 0, result.DaysOutstanding)
	assert.Equal(t, domain.BucketNA, result.AgingBucket)
}

func TestComputeInvoice_OutstandingAging(t *testing.T) {
	asOf := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)
	inv := invoicedomain.Invoice{
		ID:             2,
		InvoiceDate:    day(asOf, 45),
		PatientPortion: 20000,
	}
	payments := []paymentdomain.Payment{{Amount: 5000}}

	result := ComputeInvoice(inv, nil, payments, 0, asOf)

	assert.Equal(t, int64(15000), result.BalanceDue)
	assert.Equal(t, 45, result.DaysOutstanding)
	assert.Equal(t, domain.Bucket31to60, result.AgingBucket)
}

func TestComputeInvoice_InconsistentSplit(t *testing.T) {
	asOf := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)
	inv := invoicedomain.Invoice{
		ID:               3,
		InvoiceDate:      day(asOf, 1),
		InsurancePortion: 4000,
		PatientPortion:   5000,
	}
	lines := []invoicedomain.InvoiceLine{{Qty: 1, UnitPrice: 10000}}

	result := ComputeInvoice(inv, lines, nil, 0, asOf)

	assert.True(t, result.Inconsistent)
	// the recorded patient portion stays authoritative
	assert.Equal(t, int64(5000), result.BalanceDue)

	consistent := ComputeInvoice(inv, []invoicedomain.InvoiceLine{{Qty: 1, UnitPrice: 9000}}, nil, 0, asOf)
	assert.False(t, consistent.Inconsistent)
}

func TestAllocateUnattributed_OldestFirst(t *testing.T) {
	asOf := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)
	older := invoicedomain.Invoice{ID: 10, InvoiceDate: day(asOf, 60), PatientPortion: 1000}
	newer := invoicedomain.Invoice{ID: 11, InvoiceDate: day(asOf, 20), PatientPortion: 5000}

	allocations := AllocateUnattributed(
		[]invoicedomain.Invoice{newer, older},
		map[snowflake.ID]int64{},
		[]paymentdomain.Payment{{Amount: 3000}},
	)

	assert.Equal(t, int64(1000), allocations[older.ID])
	assert.Equal(t, int64(2000), allocations[newer.ID])
}

func TestAllocateUnattributed_NeverExceedsBalance(t *testing.T) {
	asOf := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)
	inv := invoicedomain.Invoice{ID: 20, InvoiceDate: day(asOf, 5), PatientPortion: 1000}

	allocations := AllocateUnattributed(
		[]invoicedomain.Invoice{inv},
		map[snowflake.ID]int64{},
		[]paymentdomain.Payment{{Amount: 4000}},
	)

	// residue beyond the open balance stays unapplied
	assert.Equal(t, int64(1000), allocations[inv.ID])
}

func TestAllocateUnattributed_RespectsAttributedPayments(t *testing.T) {
	asOf := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)
	inv := invoicedomain.Invoice{ID: 30, InvoiceDate: day(asOf, 5), PatientPortion: 5000}

	allocations := AllocateUnattributed(
		[]invoicedomain.Invoice{inv},
		map[snowflake.ID]int64{inv.ID: 4500},
		[]paymentdomain.Payment{{Amount: 2000}},
	)

	assert.Equal(t, int64(500), allocations[inv.ID])
}

func TestAllocateUnattributed_TieBreaksByInvoiceID(t *testing.T) {
	asOf := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)
	date := day(asOf, 30)
	a := invoicedomain.Invoice{ID: 41, InvoiceDate: date, PatientPortion: 1000}
	b := invoicedomain.Invoice{ID: 40, InvoiceDate: date, PatientPortion: 1000}

	allocations := AllocateUnattributed(
		[]invoicedomain.Invoice{a, b},
		map[snowflake.ID]int64{},
		[]paymentdomain.Payment{{Amount: 1000}},
	)

	assert.Equal(t, int64(1000), allocations[b.ID])
	assert.Equal(t, int64(0), allocations[a.ID])
}
