package domain

import (
	"context"
	"io"
)

type Service interface {
	// Generate recomputes the paid/unpaid statement for a scope from the
	// source records. Nothing is cached between calls.
	Generate(ctx context.Context, scope Scope) (Statement, error)

	// OutstandingBalances lists every invoice carrying a balance, newest
	// debt last.
	OutstandingBalances(ctx context.Context) ([]OutstandingInvoice, error)

	// PatientFinancialSummary computes lifetime account totals for one
	// patient.
	PatientFinancialSummary(ctx context.Context, patientID string) (FinancialSummary, error)

	// RenderPDF renders the statement for a scope as a PDF document.
	RenderPDF(ctx context.Context, scope Scope) (io.Reader, error)
}
