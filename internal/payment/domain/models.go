package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

var (
	ErrInvalidID       = errors.New("payment: invalid id")
	ErrInvalidPatient  = errors.New("payment: patient id is required")
	ErrInvalidAmount   = errors.New("payment: amount must be positive")
	ErrInvalidMethod   = errors.New("payment: unknown method")
	ErrPatientMismatch = errors.New("payment: invoice belongs to a different patient")
	ErrNotFound        = errors.New("payment: not found")
)

// Method is the tender type recorded with each payment.
type Method string

const (
	MethodCash       Method = "cash"
	MethodCard       Method = "card"
	MethodInsurance  Method = "insurance"
	MethodGovernment Method = "government"
)

// Valid reports whether the method is one of the accepted tender types.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodInsurance, MethodGovernment:
		return true
	}
	return false
}

// Payment is a ledger entry. A nil InvoiceID means the payment is
// unattributed and is allocated to open invoices at report time.
type Payment struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	PatientID   snowflake.ID  `gorm:"not null;index" json:"patient_id"`
	InvoiceID   *snowflake.ID `gorm:"index" json:"invoice_id,omitempty"`
	PaymentDate time.Time         `gorm:"not null;index" json:"payment_date"`
	Method      Method            `gorm:"not null" json:"method"`
	Amount      int64             `gorm:"not null;default:0" json:"amount"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null" json:"updated_at"`
}

type RecordPaymentRequest struct {
	PatientID   string         `json:"patient_id"`
	InvoiceID   *string        `json:"invoice_id"`
	PaymentDate time.Time      `json:"payment_date"`
	Method      Method         `json:"method"`
	Amount      int64          `json:"amount"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type Service interface {
	Record(context.Context, RecordPaymentRequest) (Payment, error)
	GetByID(ctx context.Context, id string) (Payment, error)
	ListByPatient(ctx context.Context, patientID string) ([]Payment, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]Payment, error)
	Delete(ctx context.Context, id string) error
}
