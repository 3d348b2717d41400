package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/medledger/internal/clock"
	invoicedomain "github.com/smallbiznis/medledger/internal/invoice/domain"
	patientdomain "github.com/smallbiznis/medledger/internal/patient/domain"
	patientservice "github.com/smallbiznis/medledger/internal/patient/service"
	paymentdomain "github.com/smallbiznis/medledger/internal/payment/domain"
	"github.com/smallbiznis/medledger/internal/providers/pdf"
	"github.com/smallbiznis/medledger/internal/statement/domain"
	"github.com/smallbiznis/medledger/internal/statement/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	svc   domain.Service
}

var asOf = time.Date(2025, 11, 15, 9, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T, dsn string) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&patientdomain.Patient{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLine{},
		&paymentdomain.Payment{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(asOf)
	log := zap.NewNop()

	patientSvc := patientservice.New(patientservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fake,
	})

	svc := New(Params{
		Log:        log,
		Reader:     ledger.NewReader(db),
		Clock:      fake,
		PatientSvc: patientSvc,
		PDF:        pdf.New(),
	})

	return &testEnv{db: db, node: node, clock: fake, svc: svc}
}

func (e *testEnv) addPatient(t *testing.T, first, last string) patientdomain.Patient {
	t.Helper()
	now := asOf
	p := patientdomain.Patient{ID: e.node.Generate(), FirstName: first, LastName: last, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, e.db.Create(&p).Error)
	return p
}

func (e *testEnv) addInvoice(t *testing.T, patientID snowflake.ID, daysAgo int, insurance, patient int64, status invoicedomain.Status) invoicedomain.Invoice {
	t.Helper()
	inv := invoicedomain.Invoice{
		ID:               e.node.Generate(),
		PatientID:        patientID,
		InvoiceDate:      asOf.AddDate(0, 0, -daysAgo).Truncate(24 * time.Hour),
		Status:           status,
		InsurancePortion: insurance,
		PatientPortion:   patient,
		CreatedAt:        asOf,
		UpdatedAt:        asOf,
	}
	require.NoError(t, e.db.Create(&inv).Error)
	return inv
}

func (e *testEnv) addLine(t *testing.T, invoiceID snowflake.ID, desc string, qty, unitPrice int64) {
	t.Helper()
	line := invoicedomain.InvoiceLine{
		ID: e.node.Generate(), InvoiceID: invoiceID, LineNo: 1,
		Description: desc, Qty: qty, UnitPrice: unitPrice,
		CreatedAt: asOf, UpdatedAt: asOf,
	}
	require.NoError(t, e.db.Create(&line).Error)
}

func (e *testEnv) addPayment(t *testing.T, patientID snowflake.ID, invoiceID *snowflake.ID, daysAgo int, amount int64) paymentdomain.Payment {
	t.Helper()
	p := paymentdomain.Payment{
		ID: e.node.Generate(), PatientID: patientID, InvoiceID: invoiceID,
		PaymentDate: asOf.AddDate(0, 0, -daysAgo),
		Method:      paymentdomain.MethodCash, Amount: amount,
		CreatedAt: asOf, UpdatedAt: asOf,
	}
	require.NoError(t, e.db.Create(&p).Error)
	return p
}

func findPatient(section domain.Section, id snowflake.ID) (domain.PatientSummary, bool) {
	for _, p := range section.Patients {
		if p.PatientID == id {
			return p, true
		}
	}
	return domain.PatientSummary{}, false
}

func TestGenerate_FullyPaidPatient(t *testing.T) {
	env := newTestEnv(t, "file:stmt_paid?mode=memory&cache=shared")
	ctx := context.Background()

	p1 := env.addPatient(t, "Alice", "Ngoma")
	inv := env.addInvoice(t, p1.ID, 10, 0, 10000, invoicedomain.StatusPaid)
	env.addLine(t, inv.ID, "Consultation", 1, 10000)
	env.addPayment(t, p1.ID, &inv.ID, 8, 10000)

	statement, err := env.svc.Generate(ctx, domain.MonthScope(2025, time.November))
	require.NoError(t, err)

	assert.Equal(t, "2025-11", statement.GeneratedScope)
	summary, ok := findPatient(statement.Paid, p1.ID)
	require.True(t, ok)
	assert.Equal(t, int64(0), summary.Balance)
	assert.Equal(t, int64(10000), summary.TotalInvoiced)
	assert.Equal(t, int64(10000), summary.PaymentsReceived)
	assert.Empty(t, statement.Unpaid.Patients)
	assert.Empty(t, statement.Warnings)
}

func TestGenerate_AgedPartialPayment(t *testing.T) {
	env := newTestEnv(t, "file:stmt_aged?mode=memory&cache=shared")
	ctx := context.Background()

	p2 := env.addPatient(t, "Brian", "Okello")
	inv := env.addInvoice(t, p2.ID, 45, 0, 20000, invoicedomain.StatusPartial)
	env.addLine(t, inv.ID, "Minor surgery", 1, 20000)
	env.addPayment(t, p2.ID, &inv.ID, 30, 5000)

	statement, err := env.svc.Generate(ctx, domain.MonthScope(2025, time.October))
	require.NoError(t, err)

	summary, ok := findPatient(statement.Unpaid, p2.ID)
	require.True(t, ok)
	assert.Equal(t, int64(15000), summary.Balance)
	assert.Equal(t, 45, summary.MaxAgingDays)
	require.Len(t, summary.Invoices, 1)
	assert.Equal(t, domain.Bucket31to60, summary.Invoices[0].AgingBucket)
	assert.Equal(t, 45, summary.Invoices[0].DaysOutstanding)
}

func TestGenerate_AnyOpenInvoiceDisqualifiesPaid(t *testing.T) {
	env := newTestEnv(t, "file:stmt_mixed?mode=memory&cache=shared")
	ctx := context.Background()

	p3 := env.addPatient(t, "Carol", "Mensah")
	paid := env.addInvoice(t, p3.ID, 12, 0, 8000, invoicedomain.StatusPaid)
	env.addLine(t, paid.ID, "Consultation", 1, 8000)
	env.addPayment(t, p3.ID, &paid.ID, 10, 8000)

	open := env.addInvoice(t, p3.ID, 6, 0, 5000, invoicedomain.StatusPartial)
	env.addLine(t, open.ID, "X-ray", 1, 5000)
	env.addPayment(t, p3.ID, &open.ID, 4, 3000)

	statement, err := env.svc.Generate(ctx, domain.MonthScope(2025, time.November))
	require.NoError(t, err)

	summary, ok := findPatient(statement.Unpaid, p3.ID)
	require.True(t, ok)
	assert.Equal(t, int64(2000), summary.Balance)
	assert.Equal(t, int64(13000), summary.TotalInvoiced)
	assert.Equal(t, int64(11000), summary.PaymentsReceived)
	assert.Len(t, summary.Invoices, 2)

	_, inPaid := findPatient(statement.Paid, p3.ID)
	assert.False(t, inPaid)

	assert.Equal(t, int64(13000), statement.Unpaid.Totals.TotalInvoiced)
	assert.Equal(t, int64(11000), statement.Unpaid.Totals.PaymentsReceived)
	assert.Equal(t, int64(2000), statement.Unpaid.Totals.Balance)
}

func TestGenerate_UnattributedAllocationOldestFirst(t *testing.T) {
	env := newTestEnv(t, "file:stmt_alloc?mode=memory&cache=shared")
	ctx := context.Background()

	p := env.addPatient(t, "Dina", "Hassan")
	older := env.addInvoice(t, p.ID, 40, 0, 1000, invoicedomain.StatusPending)
	newer := env.addInvoice(t, p.ID, 5, 0, 5000, invoicedomain.StatusPending)
	env.addPayment(t, p.ID, nil, 2, 3000)

	statement, err := env.svc.Generate(ctx, domain.AllOutstandingScope())
	require.NoError(t, err)

	assert.Equal(t, "all-outstanding", statement.GeneratedScope)
	summary, ok := findPatient(statement.Unpaid, p.ID)
	require.True(t, ok)

	byID := map[snowflake.ID]domain.InvoiceResult{}
	for _, r := range summary.Invoices {
		byID[r.InvoiceID] = r
	}
	assert.Equal(t, int64(0), byID[older.ID].BalanceDue)
	assert.Equal(t, int64(1000), byID[older.ID].TotalPaid)
	assert.Equal(t, int64(3000), byID[newer.ID].BalanceDue)
	assert.Equal(t, int64(2000), byID[newer.ID].TotalPaid)
}

func TestGenerate_ConservationAndPartition(t *testing.T) {
	env := newTestEnv(t, "file:stmt_conserve?mode=memory&cache=shared")
	ctx := context.Background()

	var patientPortionSum, appliedSum int64
	patients := []patientdomain.Patient{
		env.addPatient(t, "Eve", "Kimani"),
		env.addPatient(t, "Femi", "Ade"),
		env.addPatient(t, "Grace", "Tadesse"),
	}
	for i, p := range patients {
		inv := env.addInvoice(t, p.ID, 10+i*30, 0, int64(10000*(i+1)), invoicedomain.StatusPending)
		env.addLine(t, inv.ID, "Consultation", 1, int64(10000*(i+1)))
		amount := int64(4000 * i)
		patientPortionSum += int64(10000 * (i + 1))
		if amount > 0 {
			env.addPayment(t, p.ID, &inv.ID, 5, amount)
			appliedSum += amount
		}
	}

	statement, err := env.svc.Generate(ctx, domain.AllOutstandingScope())
	require.NoError(t, err)

	totalBalance := statement.Paid.Totals.Balance + statement.Unpaid.Totals.Balance
	assert.Equal(t, patientPortionSum-appliedSum, totalBalance)

	seen := map[snowflake.ID]int{}
	for _, p := range statement.Paid.Patients {
		seen[p.PatientID]++
	}
	for _, p := range statement.Unpaid.Patients {
		seen[p.PatientID]++
	}
	for _, p := range patients {
		assert.Equal(t, 1, seen[p.ID], "patient %s must appear in exactly one section", p.ID)
	}
}

func TestGenerate_IdempotentByteIdentical(t *testing.T) {
	env := newTestEnv(t, "file:stmt_idem?mode=memory&cache=shared")
	ctx := context.Background()

	p := env.addPatient(t, "Hawa", "Diallo")
	inv := env.addInvoice(t, p.ID, 20, 1000, 9000, invoicedomain.StatusPending)
	env.addLine(t, inv.ID, "Lab panel", 2, 5000)
	env.addPayment(t, p.ID, &inv.ID, 15, 2500)
	env.addPayment(t, p.ID, nil, 3, 1500)

	first, err := env.svc.Generate(ctx, domain.MonthScope(2025, time.October))
	require.NoError(t, err)
	second, err := env.svc.Generate(ctx, domain.MonthScope(2025, time.October))
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))
}

func TestGenerate_InvalidScope(t *testing.T) {
	env := newTestEnv(t, "file:stmt_scope?mode=memory&cache=shared")
	ctx := context.Background()

	_, err := env.svc.Generate(ctx, domain.MonthScope(2025, time.Month(0)))
	assert.ErrorIs(t, err, domain.ErrInvalidScope)

	_, err = env.svc.Generate(ctx, domain.MonthScope(2025, time.Month(13)))
	assert.ErrorIs(t, err, domain.ErrInvalidScope)
}

func TestGenerate_EmptyScope(t *testing.T) {
	env := newTestEnv(t, "file:stmt_empty?mode=memory&cache=shared")
	ctx := context.Background()

	statement, err := env.svc.Generate(ctx, domain.MonthScope(2031, time.March))
	require.NoError(t, err)
	assert.Empty(t, statement.Paid.Patients)
	assert.Empty(t, statement.Unpaid.Patients)
	assert.Equal(t, "2031-03", statement.GeneratedScope)
}

func TestGenerate_Warnings(t *testing.T) {
	env := newTestEnv(t, "file:stmt_warn?mode=memory&cache=shared")
	ctx := context.Background()

	// invoice for a patient id with no patient row
	ghostID := env.node.Generate()
	inv := env.addInvoice(t, ghostID, 10, 4000, 5000, invoicedomain.StatusPaid)
	// lines total 10000 but recorded split is 9000
	env.addLine(t, inv.ID, "Consultation", 1, 10000)

	statement, err := env.svc.Generate(ctx, domain.MonthScope(2025, time.November))
	require.NoError(t, err)

	summary, ok := findPatient(statement.Unpaid, ghostID)
	require.True(t, ok)
	assert.Equal(t, ghostID.String(), summary.DisplayName)
	require.Len(t, summary.Invoices, 1)
	assert.True(t, summary.Invoices[0].Inconsistent)

	kinds := map[domain.WarningKind]int{}
	for _, w := range statement.Warnings {
		kinds[w.Kind]++
	}
	assert.Equal(t, 1, kinds[domain.WarningMissingPatient])
	assert.Equal(t, 1, kinds[domain.WarningInconsistent])
	// stored "paid" with an open balance
	assert.Equal(t, 1, kinds[domain.WarningStatusDrift])
}

func TestGenerate_ServicesAndPaymentsFlattened(t *testing.T) {
	env := newTestEnv(t, "file:stmt_flat?mode=memory&cache=shared")
	ctx := context.Background()

	p := env.addPatient(t, "Imani", "Said")
	a := env.addInvoice(t, p.ID, 12, 0, 12000, invoicedomain.StatusPending)
	env.addLine(t, a.ID, "Consultation", 1, 7000)
	env.addLine(t, a.ID, "Dressing", 1, 5000)
	b := env.addInvoice(t, p.ID, 4, 0, 7000, invoicedomain.StatusPending)
	env.addLine(t, b.ID, "Consultation", 1, 7000)

	env.addPayment(t, p.ID, &a.ID, 10, 2000)
	env.addPayment(t, p.ID, nil, 1, 1000)

	statement, err := env.svc.Generate(ctx, domain.MonthScope(2025, time.November))
	require.NoError(t, err)

	summary, ok := findPatient(statement.Unpaid, p.ID)
	require.True(t, ok)

	// services aggregated by description, sorted
	require.Len(t, summary.Services, 2)
	assert.Equal(t, "Consultation", summary.Services[0].Description)
	assert.Equal(t, int64(2), summary.Services[0].Qty)
	assert.Equal(t, int64(14000), summary.Services[0].Amount)
	assert.Equal(t, "Dressing", summary.Services[1].Description)

	// payments sorted by date, unattributed included
	require.Len(t, summary.Payments, 2)
	assert.True(t, summary.Payments[0].PaymentDate.Before(summary.Payments[1].PaymentDate))
	assert.Nil(t, summary.Payments[1].InvoiceID)
}

func TestOutstandingBalances(t *testing.T) {
	env := newTestEnv(t, "file:stmt_outstanding?mode=memory&cache=shared")
	ctx := context.Background()

	p := env.addPatient(t, "Joy", "Banda")
	settled := env.addInvoice(t, p.ID, 50, 0, 4000, invoicedomain.StatusPaid)
	env.addPayment(t, p.ID, &settled.ID, 45, 4000)
	open := env.addInvoice(t, p.ID, 95, 0, 9000, invoicedomain.StatusPending)

	rows, err := env.svc.OutstandingBalances(ctx)
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, open.ID, rows[0].InvoiceID)
	assert.Equal(t, "Joy Banda", rows[0].PatientName)
	assert.Equal(t, int64(9000), rows[0].BalanceDue)
	assert.Equal(t, domain.Bucket90Plus, rows[0].AgingBucket)
}

func TestPatientFinancialSummary(t *testing.T) {
	env := newTestEnv(t, "file:stmt_summary?mode=memory&cache=shared")
	ctx := context.Background()

	p := env.addPatient(t, "Kofi", "Owusu")
	inv := env.addInvoice(t, p.ID, 30, 6000, 4000, invoicedomain.StatusPartial)
	env.addLine(t, inv.ID, "Procedure", 1, 10000)
	env.addPayment(t, p.ID, &inv.ID, 20, 2500)
	env.addPayment(t, p.ID, nil, 5, 500)

	summary, err := env.svc.PatientFinancialSummary(ctx, p.ID.String())
	require.NoError(t, err)

	assert.Equal(t, "Kofi Owusu", summary.DisplayName)
	assert.Equal(t, int64(10000), summary.TotalInvoiced)
	assert.Equal(t, int64(6000), summary.InsurancePortion)
	assert.Equal(t, int64(4000), summary.PatientPortion)
	assert.Equal(t, int64(3000), summary.TotalPaid)
	assert.Equal(t, int64(1000), summary.Outstanding)
	assert.Equal(t, 1, summary.InvoiceCount)
	assert.Equal(t, 2, summary.PaymentCount)
	assert.Equal(t, int64(3000), summary.PaymentsByMethod["cash"])

	_, err = env.svc.PatientFinancialSummary(ctx, env.node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrPatientNotFound)
}

func TestRenderPDF(t *testing.T) {
	env := newTestEnv(t, "file:stmt_pdf?mode=memory&cache=shared")
	ctx := context.Background()

	p := env.addPatient(t, "Lena", "Moyo")
	inv := env.addInvoice(t, p.ID, 10, 0, 5000, invoicedomain.StatusPending)
	env.addLine(t, inv.ID, "Consultation", 1, 5000)

	doc, err := env.svc.RenderPDF(ctx, domain.MonthScope(2025, time.November))
	require.NoError(t, err)
	assert.NotNil(t, doc)
}
