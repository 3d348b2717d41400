package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	insurerdomain "github.com/smallbiznis/medledger/internal/insurer/domain"
	invoicedomain "github.com/smallbiznis/medledger/internal/invoice/domain"
	patientdomain "github.com/smallbiznis/medledger/internal/patient/domain"
	paymentdomain "github.com/smallbiznis/medledger/internal/payment/domain"
	"gorm.io/gorm"
)

// EnsureDemoData seeds a small demo ledger for local runs: two patients,
// an insurer, three invoices in mixed states, and a few payments including
// one unattributed. Idempotent: skipped when any patient already exists.
func EnsureDemoData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&patientdomain.Patient{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		day := 24 * time.Hour

		alice := patientdomain.Patient{
			ID:          node.Generate(),
			FirstName:   "Alice",
			LastName:    "Ngoma",
			Phone:       "+255700000001",
			InsuranceNo: "NHIF-114422",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		brian := patientdomain.Patient{
			ID:        node.Generate(),
			FirstName: "Brian",
			LastName:  "Okello",
			Phone:     "+255700000002",
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create([]*patientdomain.Patient{&alice, &brian}).Error; err != nil {
			return err
		}

		insurer := insurerdomain.Insurer{
			ID:           node.Generate(),
			Name:         "National Health Fund",
			ContactEmail: "claims@nhf.example",
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.Create(&insurer).Error; err != nil {
			return err
		}

		paidInvoice := invoicedomain.Invoice{
			ID:               node.Generate(),
			PatientID:        alice.ID,
			InvoiceDate:      now.Add(-10 * day),
			Status:           invoicedomain.StatusPaid,
			InsurancePortion: 7000,
			PatientPortion:   10000,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		agedInvoice := invoicedomain.Invoice{
			ID:               node.Generate(),
			PatientID:        brian.ID,
			InvoiceDate:      now.Add(-45 * day),
			Status:           invoicedomain.StatusPartial,
			InsurancePortion: 0,
			PatientPortion:   20000,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		freshInvoice := invoicedomain.Invoice{
			ID:               node.Generate(),
			PatientID:        brian.ID,
			InvoiceDate:      now.Add(-5 * day),
			Status:           invoicedomain.StatusPending,
			InsurancePortion: 2500,
			PatientPortion:   5000,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		invoices := []*invoicedomain.Invoice{&paidInvoice, &agedInvoice, &freshInvoice}
		if err := tx.Create(invoices).Error; err != nil {
			return err
		}

		lines := []*invoicedomain.InvoiceLine{
			{ID: node.Generate(), InvoiceID: paidInvoice.ID, LineNo: 1, Description: "General consultation", Qty: 1, UnitPrice: 12000, CreatedAt: now, UpdatedAt: now},
			{ID: node.Generate(), InvoiceID: paidInvoice.ID, LineNo: 2, Description: "Full blood count", Qty: 1, UnitPrice: 5000, CreatedAt: now, UpdatedAt: now},
			{ID: node.Generate(), InvoiceID: agedInvoice.ID, LineNo: 1, Description: "Minor surgery", Qty: 1, UnitPrice: 20000, CreatedAt: now, UpdatedAt: now},
			{ID: node.Generate(), InvoiceID: freshInvoice.ID, LineNo: 1, Description: "General consultation", Qty: 1, UnitPrice: 7500, CreatedAt: now, UpdatedAt: now},
		}
		if err := tx.Create(lines).Error; err != nil {
			return err
		}

		payments := []*paymentdomain.Payment{
			{ID: node.Generate(), PatientID: alice.ID, InvoiceID: &paidInvoice.ID, PaymentDate: now.Add(-8 * day), Method: paymentdomain.MethodCard, Amount: 10000, CreatedAt: now, UpdatedAt: now},
			{ID: node.Generate(), PatientID: brian.ID, InvoiceID: &agedInvoice.ID, PaymentDate: now.Add(-30 * day), Method: paymentdomain.MethodCash, Amount: 5000, CreatedAt: now, UpdatedAt: now},
			{ID: node.Generate(), PatientID: brian.ID, PaymentDate: now.Add(-2 * day), Method: paymentdomain.MethodCash, Amount: 3000, CreatedAt: now, UpdatedAt: now},
		}
		return tx.Create(payments).Error
	})
}
