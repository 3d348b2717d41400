package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/medledger/internal/clock"
	invoicedomain "github.com/smallbiznis/medledger/internal/invoice/domain"
	patientdomain "github.com/smallbiznis/medledger/internal/patient/domain"
	paymentdomain "github.com/smallbiznis/medledger/internal/payment/domain"
	"github.com/smallbiznis/medledger/internal/providers/pdf"
	"github.com/smallbiznis/medledger/internal/statement/calc"
	"github.com/smallbiznis/medledger/internal/statement/domain"
	"github.com/smallbiznis/medledger/internal/statement/ledger"
	"github.com/smallbiznis/medledger/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Reader     *ledger.Reader
	Clock      clock.Clock
	PatientSvc patientdomain.Service
	PDF        pdf.Provider
	Metrics    *telemetry.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	reader     *ledger.Reader
	clock      clock.Clock
	patientSvc patientdomain.Service
	pdf        pdf.Provider
	metrics    *telemetry.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("statement.service"),
		reader:     p.Reader,
		clock:      p.Clock,
		patientSvc: p.PatientSvc,
		pdf:        p.PDF,
		metrics:    p.Metrics,
	}
}

// Generate runs the full pipeline: snapshot read, per-invoice balance
// computation, per-patient aggregation, paid/unpaid classification, and
// assembly. It is a pure function of the snapshot and the as-of instant.
func (s *Service) Generate(ctx context.Context, scope domain.Scope) (domain.Statement, error) {
	started := time.Now()

	snap, err := s.reader.Load(ctx, scope)
	if err != nil {
		s.metrics.ObserveStatement(scopeKind(scope), statusLabel(err), 0, time.Since(started))
		return domain.Statement{}, err
	}

	asOf := s.clock.Now()
	statement := s.assemble(scope, snap, asOf)

	for _, w := range statement.Warnings {
		s.metrics.RecordWarning(string(w.Kind))
	}
	s.metrics.ObserveStatement(scopeKind(scope), "ok", len(snap.Invoices), time.Since(started))

	s.log.Info("statement generated",
		zap.String("scope", statement.GeneratedScope),
		zap.Int("invoices", len(snap.Invoices)),
		zap.Int("paid_patients", len(statement.Paid.Patients)),
		zap.Int("unpaid_patients", len(statement.Unpaid.Patients)),
		zap.Int("warnings", len(statement.Warnings)),
	)

	return statement, nil
}

func (s *Service) assemble(scope domain.Scope, snap *ledger.Snapshot, asOf time.Time) domain.Statement {
	statement := domain.Statement{
		GeneratedScope: scope.Label(),
		AsOf:           asOf,
		Paid:           domain.Section{Patients: []domain.PatientSummary{}},
		Unpaid:         domain.Section{Patients: []domain.PatientSummary{}},
	}

	invoicesByPatient := make(map[snowflake.ID][]invoicedomain.Invoice)
	for _, inv := range snap.Invoices {
		invoicesByPatient[inv.PatientID] = append(invoicesByPatient[inv.PatientID], inv)
	}

	patientIDs := make([]snowflake.ID, 0, len(invoicesByPatient))
	for id := range invoicesByPatient {
		patientIDs = append(patientIDs, id)
	}
	sort.Slice(patientIDs, func(i, j int) bool { return patientIDs[i] < patientIDs[j] })

	for _, patientID := range patientIDs {
		summary, warnings := s.summarize(patientID, invoicesByPatient[patientID], snap, asOf)
		statement.Warnings = append(statement.Warnings, warnings...)

		if summary.Balance == 0 {
			statement.Paid.Patients = append(statement.Paid.Patients, summary)
			addTotals(&statement.Paid.Totals, summary)
		} else {
			statement.Unpaid.Patients = append(statement.Unpaid.Patients, summary)
			addTotals(&statement.Unpaid.Totals, summary)
		}
	}

	return statement
}

// summarize builds one patient's drill-down: invoice results with the
// unattributed allocation applied, flattened distinct services, and the
// flattened payment history.
func (s *Service) summarize(patientID snowflake.ID, invoices []invoicedomain.Invoice, snap *ledger.Snapshot, asOf time.Time) (domain.PatientSummary, []domain.Warning) {
	var warnings []domain.Warning

	attributedTotals := make(map[snowflake.ID]int64, len(invoices))
	for _, inv := range invoices {
		attributedTotals[inv.ID] = calc.SumAmounts(snap.PaymentsByInvoice[inv.ID])
	}
	allocations := calc.AllocateUnattributed(invoices, attributedTotals, snap.UnattributedByPatient[patientID])

	summary := domain.PatientSummary{
		PatientID: patientID,
		Services:  []domain.ServiceLine{},
		Invoices:  []domain.InvoiceResult{},
		Payments:  []domain.PaymentRecord{},
	}

	if patient, ok := snap.PatientsByID[patientID]; ok {
		summary.DisplayName = patient.DisplayName()
	} else {
		summary.DisplayName = patientID.String()
		warnings = append(warnings, domain.Warning{
			Kind:      domain.WarningMissingPatient,
			PatientID: patientID,
			Detail:    "no patient record; labeled by raw id",
		})
	}

	serviceTotals := make(map[string]*domain.ServiceLine)
	var payments []paymentdomain.Payment

	for _, inv := range invoices {
		result := calc.ComputeInvoice(inv, snap.LinesByInvoice[inv.ID], snap.PaymentsByInvoice[inv.ID], allocations[inv.ID], asOf)
		summary.Invoices = append(summary.Invoices, result)

		summary.TotalInvoiced += result.PatientPortion
		summary.PaymentsReceived += result.TotalPaid
		summary.Balance += result.BalanceDue
		if result.BalanceDue > 0 && result.DaysOutstanding > summary.MaxAgingDays {
			summary.MaxAgingDays = result.DaysOutstanding
		}

		if result.Inconsistent {
			warnings = append(warnings, domain.Warning{
				Kind:      domain.WarningInconsistent,
				PatientID: patientID,
				InvoiceID: inv.ID,
				Detail: fmt.Sprintf("line items total %d but recorded split is %d",
					result.GrossCharge, inv.InsurancePortion+inv.PatientPortion),
			})
		}
		if drifted(inv.Status, result) {
			warnings = append(warnings, domain.Warning{
				Kind:      domain.WarningStatusDrift,
				PatientID: patientID,
				InvoiceID: inv.ID,
				Detail:    fmt.Sprintf("stored status %q disagrees with computed balance %d", inv.Status, result.BalanceDue),
			})
		}

		for _, line := range snap.LinesByInvoice[inv.ID] {
			key := strings.TrimSpace(line.Description)
			entry, ok := serviceTotals[key]
			if !ok {
				entry = &domain.ServiceLine{Description: key}
				serviceTotals[key] = entry
			}
			entry.Qty += line.Qty
			entry.Amount += line.Amount()
		}

		payments = append(payments, snap.PaymentsByInvoice[inv.ID]...)
	}
	payments = append(payments, snap.UnattributedByPatient[patientID]...)

	for _, entry := range serviceTotals {
		summary.Services = append(summary.Services, *entry)
	}
	sort.Slice(summary.Services, func(i, j int) bool {
		return summary.Services[i].Description < summary.Services[j].Description
	})

	sort.SliceStable(payments, func(i, j int) bool {
		if !payments[i].PaymentDate.Equal(payments[j].PaymentDate) {
			return payments[i].PaymentDate.Before(payments[j].PaymentDate)
		}
		return payments[i].ID < payments[j].ID
	})
	for _, p := range payments {
		summary.Payments = append(summary.Payments, domain.PaymentRecord{
			PaymentID:   p.ID,
			InvoiceID:   p.InvoiceID,
			PaymentDate: p.PaymentDate,
			Method:      string(p.Method),
			Amount:      p.Amount,
		})
	}

	return summary, warnings
}

// OutstandingBalances lists every invoice on the books that still carries a
// balance, oldest debt first.
func (s *Service) OutstandingBalances(ctx context.Context) ([]domain.OutstandingInvoice, error) {
	snap, err := s.reader.Load(ctx, domain.AllOutstandingScope())
	if err != nil {
		return nil, err
	}

	asOf := s.clock.Now()
	statement := s.assemble(domain.AllOutstandingScope(), snap, asOf)

	rows := []domain.OutstandingInvoice{}
	for _, patient := range statement.Unpaid.Patients {
		for _, result := range patient.Invoices {
			if result.BalanceDue == 0 {
				continue
			}
			rows = append(rows, domain.OutstandingInvoice{
				InvoiceID:       result.InvoiceID,
				PatientID:       result.PatientID,
				PatientName:     patient.DisplayName,
				InvoiceDate:     result.InvoiceDate,
				PatientPortion:  result.PatientPortion,
				TotalPaid:       result.TotalPaid,
				BalanceDue:      result.BalanceDue,
				DaysOutstanding: result.DaysOutstanding,
				AgingBucket:     result.AgingBucket,
			})
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].InvoiceDate.Equal(rows[j].InvoiceDate) {
			return rows[i].InvoiceDate.Before(rows[j].InvoiceDate)
		}
		return rows[i].InvoiceID < rows[j].InvoiceID
	})

	return rows, nil
}

// PatientFinancialSummary computes lifetime totals for one patient from the
// same snapshot machinery the statement uses.
func (s *Service) PatientFinancialSummary(ctx context.Context, rawPatientID string) (domain.FinancialSummary, error) {
	patient, err := s.patientSvc.GetByID(ctx, rawPatientID)
	if err != nil {
		if errors.Is(err, patientdomain.ErrNotFound) || errors.Is(err, patientdomain.ErrInvalidID) {
			return domain.FinancialSummary{}, domain.ErrPatientNotFound
		}
		return domain.FinancialSummary{}, err
	}

	snap, err := s.reader.Load(ctx, domain.AllOutstandingScope())
	if err != nil {
		return domain.FinancialSummary{}, err
	}

	asOf := s.clock.Now()
	out := domain.FinancialSummary{
		PatientID:        patient.ID,
		DisplayName:      patient.DisplayName(),
		PaymentsByMethod: map[string]int64{},
	}

	var invoices []invoicedomain.Invoice
	for _, inv := range snap.Invoices {
		if inv.PatientID == patient.ID {
			invoices = append(invoices, inv)
		}
	}

	attributedTotals := make(map[snowflake.ID]int64, len(invoices))
	for _, inv := range invoices {
		attributedTotals[inv.ID] = calc.SumAmounts(snap.PaymentsByInvoice[inv.ID])
	}
	allocations := calc.AllocateUnattributed(invoices, attributedTotals, snap.UnattributedByPatient[patient.ID])

	for _, inv := range invoices {
		result := calc.ComputeInvoice(inv, snap.LinesByInvoice[inv.ID], snap.PaymentsByInvoice[inv.ID], allocations[inv.ID], asOf)
		out.TotalInvoiced += result.GrossCharge
		out.InsurancePortion += inv.InsurancePortion
		out.PatientPortion += inv.PatientPortion
		out.Outstanding += result.BalanceDue
		out.InvoiceCount++

		for _, p := range snap.PaymentsByInvoice[inv.ID] {
			out.TotalPaid += p.Amount
			out.PaymentCount++
			out.PaymentsByMethod[string(p.Method)] += p.Amount
		}
	}
	for _, p := range snap.UnattributedByPatient[patient.ID] {
		out.TotalPaid += p.Amount
		out.PaymentCount++
		out.PaymentsByMethod[string(p.Method)] += p.Amount
	}

	return out, nil
}

// RenderPDF renders the statement for a scope as a PDF document.
func (s *Service) RenderPDF(ctx context.Context, scope domain.Scope) (io.Reader, error) {
	statement, err := s.Generate(ctx, scope)
	if err != nil {
		return nil, err
	}
	return s.pdf.GenerateStatement(ctx, statement)
}

func addTotals(totals *domain.SectionTotals, summary domain.PatientSummary) {
	totals.TotalInvoiced += summary.TotalInvoiced
	totals.PaymentsReceived += summary.PaymentsReceived
	totals.Balance += summary.Balance
}

// drifted reports whether the advisory stored status contradicts the
// computed balance. Zero-portion invoices are left alone.
func drifted(status invoicedomain.Status, result domain.InvoiceResult) bool {
	if result.BalanceDue == 0 {
		return result.PatientPortion > 0 && status != invoicedomain.StatusPaid
	}
	return status == invoicedomain.StatusPaid
}

func scopeKind(scope domain.Scope) string {
	if scope.AllOutstanding {
		return "all-outstanding"
	}
	return "month"
}

func statusLabel(err error) string {
	if errors.Is(err, domain.ErrInvalidScope) {
		return "invalid_scope"
	}
	return "error"
}
