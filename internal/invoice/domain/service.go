package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidID      = errors.New("invoice: invalid id")
	ErrInvalidPatient = errors.New("invoice: patient id is required")
	ErrInvalidAmount  = errors.New("invoice: amounts must be non-negative")
	ErrInvalidLine    = errors.New("invoice: line qty and unit price must be non-negative")
	ErrInvalidStatus  = errors.New("invoice: unknown status")
	ErrNotFound       = errors.New("invoice: not found")
	ErrLineNotFound   = errors.New("invoice: line not found")
)

type CreateLineRequest struct {
	ItemRefID   *snowflake.ID `json:"item_ref_id"`
	Description string        `json:"description"`
	Qty         int64         `json:"qty"`
	UnitPrice   int64         `json:"unit_price"`
}

type CreateInvoiceRequest struct {
	PatientID        string              `json:"patient_id"`
	VisitID          *string             `json:"visit_id"`
	InvoiceDate      time.Time           `json:"invoice_date"`
	InsurancePortion int64               `json:"insurance_portion"`
	PatientPortion   int64               `json:"patient_portion"`
	Lines            []CreateLineRequest `json:"lines"`
}

type UpdateStatusRequest struct {
	ID     string
	Status Status `json:"status"`
}

type Service interface {
	Create(context.Context, CreateInvoiceRequest) (Invoice, error)
	GetByID(ctx context.Context, id string) (Invoice, error)
	ListByPatient(ctx context.Context, patientID string) ([]Invoice, error)
	AddLine(ctx context.Context, invoiceID string, req CreateLineRequest) (InvoiceLine, error)
	RemoveLine(ctx context.Context, invoiceID, lineID string) error
	UpdateStatus(context.Context, UpdateStatusRequest) (Invoice, error)

	// RefreshStatus recomputes the advisory status from attributed payments.
	RefreshStatus(ctx context.Context, invoiceID snowflake.ID) (Status, error)
}
