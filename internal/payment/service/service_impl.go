package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/medledger/internal/clock"
	invoicedomain "github.com/smallbiznis/medledger/internal/invoice/domain"
	"github.com/smallbiznis/medledger/internal/payment/domain"
	"github.com/smallbiznis/medledger/pkg/db/option"
	"github.com/smallbiznis/medledger/pkg/repository"
	"github.com/smallbiznis/medledger/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	InvoiceSvc invoicedomain.Service
	Metrics    *telemetry.Metrics `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	store      repository.Repository[domain.Payment]
	invoices   repository.Repository[invoicedomain.Invoice]
	invoiceSvc invoicedomain.Service
	metrics    *telemetry.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		store:      repository.ProvideStore[domain.Payment](p.DB),
		invoices:   repository.ProvideStore[invoicedomain.Invoice](p.DB),
		invoiceSvc: p.InvoiceSvc,
		metrics:    p.Metrics,
	}
}

func (s *Service) Record(ctx context.Context, req domain.RecordPaymentRequest) (domain.Payment, error) {
	patientID, err := parseID(req.PatientID)
	if err != nil {
		return domain.Payment{}, domain.ErrInvalidPatient
	}
	if req.Amount <= 0 {
		return domain.Payment{}, domain.ErrInvalidAmount
	}
	if !req.Method.Valid() {
		return domain.Payment{}, domain.ErrInvalidMethod
	}

	var invoiceID *snowflake.ID
	if req.InvoiceID != nil && strings.TrimSpace(*req.InvoiceID) != "" {
		id, err := parseID(*req.InvoiceID)
		if err != nil {
			return domain.Payment{}, domain.ErrInvalidID
		}

		invoice, err := s.invoices.FindOne(ctx, &invoicedomain.Invoice{ID: id})
		if err != nil {
			return domain.Payment{}, err
		}
		if invoice == nil {
			return domain.Payment{}, invoicedomain.ErrNotFound
		}
		if invoice.PatientID != patientID {
			return domain.Payment{}, domain.ErrPatientMismatch
		}
		invoiceID = &id
	}

	now := s.clock.Now()
	paymentDate := req.PaymentDate.UTC()
	if paymentDate.IsZero() {
		paymentDate = now
	}

	payment := domain.Payment{
		ID:          s.genID.Generate(),
		PatientID:   patientID,
		InvoiceID:   invoiceID,
		PaymentDate: paymentDate,
		Method:      req.Method,
		Amount:      req.Amount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if len(req.Metadata) > 0 {
		payment.Metadata = datatypes.JSONMap(req.Metadata)
	}

	if err := s.store.Create(ctx, &payment); err != nil {
		return domain.Payment{}, err
	}

	if invoiceID != nil {
		if _, err := s.invoiceSvc.RefreshStatus(ctx, *invoiceID); err != nil {
			s.log.Warn("refresh invoice status after payment",
				zap.String("invoice_id", invoiceID.String()),
				zap.Error(err),
			)
		}
	}

	s.metrics.RecordPayment(string(payment.Method))

	return payment, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.Payment, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.Payment{}, domain.ErrInvalidID
	}

	item, err := s.store.FindOne(ctx, &domain.Payment{ID: id})
	if err != nil {
		return domain.Payment{}, err
	}
	if item == nil {
		return domain.Payment{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) ListByPatient(ctx context.Context, rawPatientID string) ([]domain.Payment, error) {
	patientID, err := parseID(rawPatientID)
	if err != nil {
		return nil, domain.ErrInvalidPatient
	}

	return s.list(ctx, &domain.Payment{PatientID: patientID})
}

func (s *Service) ListByInvoice(ctx context.Context, rawInvoiceID string) ([]domain.Payment, error) {
	invoiceID, err := parseID(rawInvoiceID)
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	return s.list(ctx, &domain.Payment{InvoiceID: &invoiceID})
}

func (s *Service) Delete(ctx context.Context, rawID string) error {
	id, err := parseID(rawID)
	if err != nil {
		return domain.ErrInvalidID
	}

	item, err := s.store.FindOne(ctx, &domain.Payment{ID: id})
	if err != nil {
		return err
	}
	if item == nil {
		return domain.ErrNotFound
	}

	if err := s.store.Delete(ctx, id.String()); err != nil {
		return err
	}

	if item.InvoiceID != nil {
		if _, err := s.invoiceSvc.RefreshStatus(ctx, *item.InvoiceID); err != nil {
			s.log.Warn("refresh invoice status after payment delete",
				zap.String("invoice_id", item.InvoiceID.String()),
				zap.Error(err),
			)
		}
	}

	return nil
}

func (s *Service) list(ctx context.Context, filter *domain.Payment) ([]domain.Payment, error) {
	items, err := s.store.Find(ctx, filter, option.WithOrder("payment_date asc, id asc"))
	if err != nil {
		return nil, err
	}

	payments := make([]domain.Payment, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		payments = append(payments, *item)
	}

	return payments, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
