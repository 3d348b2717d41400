package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	// ErrInvalidScope rejects malformed year/month input before any read.
	ErrInvalidScope = errors.New("statement: invalid scope")

	// ErrUpstreamRead wraps ledger read failures. No partial statement is
	// returned because partial billing data is misleading.
	ErrUpstreamRead = errors.New("statement: upstream read failure")

	ErrPatientNotFound = errors.New("statement: patient not found")
)

// Scope is the window a statement is computed over. A zero Year with
// AllOutstanding set covers every invoice on the books.
type Scope struct {
	Year           int
	Month          time.Month
	AllOutstanding bool
}

// MonthScope builds a calendar-month scope.
func MonthScope(year int, month time.Month) Scope {
	return Scope{Year: year, Month: month}
}

// AllOutstandingScope covers every invoice regardless of date.
func AllOutstandingScope() Scope {
	return Scope{AllOutstanding: true}
}

// Validate rejects structurally invalid scopes.
func (s Scope) Validate() error {
	if s.AllOutstanding {
		return nil
	}
	if s.Year < 1 || s.Month < time.January || s.Month > time.December {
		return ErrInvalidScope
	}
	return nil
}

// Label is the generated_scope descriptor, e.g. "2025-11".
func (s Scope) Label() string {
	if s.AllOutstanding {
		return "all-outstanding"
	}
	return fmt.Sprintf("%04d-%02d", s.Year, int(s.Month))
}

// Bounds returns the half-open [from, to) window of a month scope in UTC.
func (s Scope) Bounds() (time.Time, time.Time) {
	from := time.Date(s.Year, s.Month, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

// AgingBucket bands how long a balance has been outstanding.
type AgingBucket string

const (
	BucketNA      AgingBucket = "n/a"
	BucketCurrent AgingBucket = "current"
	Bucket31to60  AgingBucket = "31-60"
	Bucket61to90  AgingBucket = "61-90"
	Bucket90Plus  AgingBucket = "90+"
)

// WarningKind classifies non-fatal data-quality findings.
type WarningKind string

const (
	// WarningInconsistent flags an invoice whose line items do not sum to
	// the recorded insurance/patient split.
	WarningInconsistent WarningKind = "inconsistent"

	// WarningMissingPatient flags records referencing a patient id with no
	// resolvable patient row.
	WarningMissingPatient WarningKind = "missing_patient"

	// WarningStatusDrift flags a stored invoice status that disagrees with
	// the computed balance.
	WarningStatusDrift WarningKind = "status_drift"
)

type Warning struct {
	Kind      WarningKind  `json:"kind"`
	PatientID snowflake.ID `json:"patient_id,omitempty"`
	InvoiceID snowflake.ID `json:"invoice_id,omitempty"`
	Detail    string       `json:"detail"`
}

// ServiceLine is a distinct billed service aggregated by description.
type ServiceLine struct {
	Description string `json:"description"`
	Qty         int64  `json:"qty"`
	Amount      int64  `json:"amount"`
}

type PaymentRecord struct {
	PaymentID   snowflake.ID  `json:"payment_id"`
	InvoiceID   *snowflake.ID `json:"invoice_id,omitempty"`
	PaymentDate time.Time     `json:"payment_date"`
	Method      string        `json:"method"`
	Amount      int64         `json:"amount"`
}

// InvoiceResult is one invoice's computed position in the ledger.
type InvoiceResult struct {
	InvoiceID        snowflake.ID `json:"invoice_id"`
	PatientID        snowflake.ID `json:"patient_id"`
	InvoiceDate      time.Time    `json:"invoice_date"`
	StoredStatus     string       `json:"stored_status"`
	GrossCharge      int64        `json:"gross_charge"`
	InsurancePortion int64        `json:"insurance_portion"`
	PatientPortion   int64        `json:"patient_portion"`
	TotalPaid        int64        `json:"total_paid"`
	BalanceDue       int64        `json:"balance_due"`
	DaysOutstanding  int          `json:"days_outstanding"`
	AgingBucket      AgingBucket  `json:"aging_bucket"`
	Inconsistent     bool         `json:"inconsistent,omitempty"`
}

type PatientSummary struct {
	PatientID        snowflake.ID    `json:"patient_id"`
	DisplayName      string          `json:"display_name"`
	TotalInvoiced    int64           `json:"total_invoiced"`
	PaymentsReceived int64           `json:"payments_received"`
	Balance          int64           `json:"balance"`
	MaxAgingDays     int             `json:"max_aging_days"`
	Services         []ServiceLine   `json:"services"`
	Invoices         []InvoiceResult `json:"invoices"`
	Payments         []PaymentRecord `json:"payments"`
}

type SectionTotals struct {
	TotalInvoiced    int64 `json:"total_invoiced"`
	PaymentsReceived int64 `json:"payments_received"`
	Balance          int64 `json:"balance"`
}

type Section struct {
	Patients []PatientSummary `json:"patients"`
	Totals   SectionTotals    `json:"totals"`
}

// Statement is recomputed from source records on every call and never
// persisted.
type Statement struct {
	GeneratedScope string    `json:"generated_scope"`
	AsOf           time.Time `json:"as_of"`
	Paid           Section   `json:"paid"`
	Unpaid         Section   `json:"unpaid"`
	Warnings       []Warning `json:"warnings,omitempty"`
}

// OutstandingInvoice is one row of the outstanding-balances report.
type OutstandingInvoice struct {
	InvoiceID       snowflake.ID `json:"invoice_id"`
	PatientID       snowflake.ID `json:"patient_id"`
	PatientName     string       `json:"patient_name"`
	InvoiceDate     time.Time    `json:"invoice_date"`
	PatientPortion  int64        `json:"patient_portion"`
	TotalPaid       int64        `json:"total_paid"`
	BalanceDue      int64        `json:"balance_due"`
	DaysOutstanding int          `json:"days_outstanding"`
	AgingBucket     AgingBucket  `json:"aging_bucket"`
}

// FinancialSummary is a lifetime view of one patient's account.
type FinancialSummary struct {
	PatientID        snowflake.ID     `json:"patient_id"`
	DisplayName      string           `json:"display_name"`
	TotalInvoiced    int64            `json:"total_invoiced"`
	InsurancePortion int64            `json:"insurance_portion"`
	PatientPortion   int64            `json:"patient_portion"`
	TotalPaid        int64            `json:"total_paid"`
	Outstanding      int64            `json:"outstanding"`
	InvoiceCount     int              `json:"invoice_count"`
	PaymentCount     int              `json:"payment_count"`
	PaymentsByMethod map[string]int64 `json:"payments_by_method"`
}
