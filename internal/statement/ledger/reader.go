package ledger

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/medledger/internal/invoice/domain"
	patientdomain "github.com/smallbiznis/medledger/internal/patient/domain"
	paymentdomain "github.com/smallbiznis/medledger/internal/payment/domain"
	"github.com/smallbiznis/medledger/internal/statement/domain"
	"github.com/smallbiznis/medledger/pkg/db/option"
	"github.com/smallbiznis/medledger/pkg/repository"
	"gorm.io/gorm"
)

// Snapshot is one consistent read of the ledger with prebuilt indexes.
// It is immutable for the duration of a computation.
type Snapshot struct {
	Invoices              []invoicedomain.Invoice
	LinesByInvoice        map[snowflake.ID][]invoicedomain.InvoiceLine
	PaymentsByInvoice     map[snowflake.ID][]paymentdomain.Payment
	UnattributedByPatient map[snowflake.ID][]paymentdomain.Payment
	PatientsByID          map[snowflake.ID]patientdomain.Patient
}

// Empty reports whether the snapshot holds no invoices.
func (s *Snapshot) Empty() bool {
	return len(s.Invoices) == 0
}

// PatientIDs returns the distinct patient ids referenced by invoices in
// snapshot order.
func (s *Snapshot) PatientIDs() []snowflake.ID {
	seen := make(map[snowflake.ID]bool, len(s.Invoices))
	ids := make([]snowflake.ID, 0, len(s.Invoices))
	for _, inv := range s.Invoices {
		if seen[inv.PatientID] {
			continue
		}
		seen[inv.PatientID] = true
		ids = append(ids, inv.PatientID)
	}
	return ids
}

// Reader assembles ledger snapshots. It never writes.
type Reader struct {
	invoices repository.Repository[invoicedomain.Invoice]
	lines    repository.Repository[invoicedomain.InvoiceLine]
	payments repository.Repository[paymentdomain.Payment]
	patients repository.Repository[patientdomain.Patient]
}

func NewReader(db *gorm.DB) *Reader {
	return &Reader{
		invoices: repository.ProvideStore[invoicedomain.Invoice](db),
		lines:    repository.ProvideStore[invoicedomain.InvoiceLine](db),
		payments: repository.ProvideStore[paymentdomain.Payment](db),
		patients: repository.ProvideStore[patientdomain.Patient](db),
	}
}

// Load fetches every invoice in scope, their lines, payments attributed to
// them plus unattributed payments of the scope's patients, and patient rows
// for labeling. Invoices are fetched first; payments recorded strictly
// after that read may be omitted, which is an accepted staleness window.
func (r *Reader) Load(ctx context.Context, scope domain.Scope) (*Snapshot, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		LinesByInvoice:        make(map[snowflake.ID][]invoicedomain.InvoiceLine),
		PaymentsByInvoice:     make(map[snowflake.ID][]paymentdomain.Payment),
		UnattributedByPatient: make(map[snowflake.ID][]paymentdomain.Payment),
		PatientsByID:          make(map[snowflake.ID]patientdomain.Patient),
	}

	opts := []option.QueryOption{option.WithOrder("invoice_date asc, id asc")}
	if !scope.AllOutstanding {
		from, to := scope.Bounds()
		opts = append(opts,
			option.ApplyOperator(option.Condition{Field: "invoice_date", Operator: option.GTE, Value: from}),
			option.ApplyOperator(option.Condition{Field: "invoice_date", Operator: option.LT, Value: to}),
		)
	}

	invoices, err := r.invoices.Find(ctx, &invoicedomain.Invoice{}, opts...)
	if err != nil {
		return nil, upstreamErr("load invoices", err)
	}
	for _, inv := range invoices {
		if inv == nil {
			continue
		}
		snap.Invoices = append(snap.Invoices, *inv)
	}
	if snap.Empty() {
		return snap, nil
	}

	invoiceIDs := make([]snowflake.ID, 0, len(snap.Invoices))
	for _, inv := range snap.Invoices {
		invoiceIDs = append(invoiceIDs, inv.ID)
	}
	patientIDs := snap.PatientIDs()

	lines, err := r.lines.Find(ctx, &invoicedomain.InvoiceLine{},
		option.WhereIn("invoice_id", invoiceIDs),
		option.WithOrder("invoice_id asc, line_no asc"),
	)
	if err != nil {
		return nil, upstreamErr("load invoice lines", err)
	}
	for _, line := range lines {
		if line == nil {
			continue
		}
		snap.LinesByInvoice[line.InvoiceID] = append(snap.LinesByInvoice[line.InvoiceID], *line)
	}

	attributed, err := r.payments.Find(ctx, &paymentdomain.Payment{},
		option.WhereIn("invoice_id", invoiceIDs),
		option.WithOrder("payment_date asc, id asc"),
	)
	if err != nil {
		return nil, upstreamErr("load attributed payments", err)
	}
	for _, p := range attributed {
		if p == nil || p.InvoiceID == nil {
			continue
		}
		snap.PaymentsByInvoice[*p.InvoiceID] = append(snap.PaymentsByInvoice[*p.InvoiceID], *p)
	}

	unattributed, err := r.payments.Find(ctx, &paymentdomain.Payment{},
		option.WhereIn("patient_id", patientIDs),
		option.WhereNull("invoice_id"),
		option.WithOrder("payment_date asc, id asc"),
	)
	if err != nil {
		return nil, upstreamErr("load unattributed payments", err)
	}
	for _, p := range unattributed {
		if p == nil {
			continue
		}
		snap.UnattributedByPatient[p.PatientID] = append(snap.UnattributedByPatient[p.PatientID], *p)
	}

	patients, err := r.patients.Find(ctx, &patientdomain.Patient{},
		option.WhereIn("id", patientIDs),
	)
	if err != nil {
		return nil, upstreamErr("load patients", err)
	}
	for _, p := range patients {
		if p == nil {
			continue
		}
		snap.PatientsByID[p.ID] = *p
	}

	return snap, nil
}

func upstreamErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrUpstreamRead, op, err)
}
