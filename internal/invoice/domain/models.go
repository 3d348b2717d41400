package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status is advisory bookkeeping maintained by the payment trigger.
// Reports never consult it; they recompute from the ledger.
type Status string

const (
	StatusPending Status = "pending"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
)

type Invoice struct {
	ID               snowflake.ID  `gorm:"primaryKey" json:"id"`
	PatientID        snowflake.ID  `gorm:"not null;index" json:"patient_id"`
	VisitID          *snowflake.ID `json:"visit_id,omitempty"`
	InvoiceDate      time.Time     `gorm:"not null;index" json:"invoice_date"`
	Status           Status        `gorm:"not null;default:pending" json:"status"`
	InsurancePortion int64         `gorm:"not null;default:0" json:"insurance_portion"`
	PatientPortion   int64         `gorm:"not null;default:0" json:"patient_portion"`
	CreatedAt        time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"not null" json:"updated_at"`

	Lines []InvoiceLine `gorm:"-" json:"lines,omitempty"`
}

type InvoiceLine struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID  `gorm:"not null;index" json:"invoice_id"`
	LineNo      int           `gorm:"not null" json:"line_no"`
	ItemRefID   *snowflake.ID `json:"item_ref_id,omitempty"`
	Description string        `gorm:"not null" json:"description"`
	Qty         int64         `gorm:"not null;default:0" json:"qty"`
	UnitPrice   int64         `gorm:"not null;default:0" json:"unit_price"`
	CreatedAt   time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null" json:"updated_at"`
}

// Amount is the extended line amount in minor units.
func (l InvoiceLine) Amount() int64 {
	return l.Qty * l.UnitPrice
}

// GrossTotal sums the extended amounts of the attached lines.
func (i Invoice) GrossTotal() int64 {
	var total int64
	for _, line := range i.Lines {
		total += line.Amount()
	}
	return total
}
