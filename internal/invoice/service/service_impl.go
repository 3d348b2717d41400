package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/medledger/internal/clock"
	"github.com/smallbiznis/medledger/internal/invoice/domain"
	"github.com/smallbiznis/medledger/pkg/db/option"
	"github.com/smallbiznis/medledger/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	invoices repository.Repository[domain.Invoice]
	lines    repository.Repository[domain.InvoiceLine]
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("invoice.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		invoices: repository.ProvideStore[domain.Invoice](p.DB),
		lines:    repository.ProvideStore[domain.InvoiceLine](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateInvoiceRequest) (domain.Invoice, error) {
	patientID, err := parseID(req.PatientID)
	if err != nil {
		return domain.Invoice{}, domain.ErrInvalidPatient
	}
	if req.InsurancePortion < 0 || req.PatientPortion < 0 {
		return domain.Invoice{}, domain.ErrInvalidAmount
	}

	var visitID *snowflake.ID
	if req.VisitID != nil && strings.TrimSpace(*req.VisitID) != "" {
		id, err := parseID(*req.VisitID)
		if err != nil {
			return domain.Invoice{}, domain.ErrInvalidID
		}
		visitID = &id
	}

	now := s.clock.Now()
	invoiceDate := req.InvoiceDate.UTC()
	if invoiceDate.IsZero() {
		invoiceDate = now
	}

	invoice := domain.Invoice{
		ID:               s.genID.Generate(),
		PatientID:        patientID,
		VisitID:          visitID,
		InvoiceDate:      invoiceDate,
		Status:           domain.StatusPending,
		InsurancePortion: req.InsurancePortion,
		PatientPortion:   req.PatientPortion,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	lines := make([]*domain.InvoiceLine, 0, len(req.Lines))
	for i, lr := range req.Lines {
		if lr.Qty < 0 || lr.UnitPrice < 0 {
			return domain.Invoice{}, domain.ErrInvalidLine
		}
		lines = append(lines, &domain.InvoiceLine{
			ID:          s.genID.Generate(),
			InvoiceID:   invoice.ID,
			LineNo:      i + 1,
			ItemRefID:   lr.ItemRefID,
			Description: strings.TrimSpace(lr.Description),
			Qty:         lr.Qty,
			UnitPrice:   lr.UnitPrice,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.invoices.WithTrx(tx).Create(ctx, &invoice); err != nil {
			return err
		}
		return s.lines.WithTrx(tx).BatchCreate(ctx, lines)
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	for _, line := range lines {
		invoice.Lines = append(invoice.Lines, *line)
	}

	return invoice, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.Invoice, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.Invoice{}, domain.ErrInvalidID
	}

	item, err := s.invoices.FindOne(ctx, &domain.Invoice{ID: id})
	if err != nil {
		return domain.Invoice{}, err
	}
	if item == nil {
		return domain.Invoice{}, domain.ErrNotFound
	}

	invoice := *item
	if err := s.attachLines(ctx, &invoice); err != nil {
		return domain.Invoice{}, err
	}

	return invoice, nil
}

func (s *Service) ListByPatient(ctx context.Context, rawPatientID string) ([]domain.Invoice, error) {
	patientID, err := parseID(rawPatientID)
	if err != nil {
		return nil, domain.ErrInvalidPatient
	}

	items, err := s.invoices.Find(ctx, &domain.Invoice{PatientID: patientID},
		option.WithOrder("invoice_date asc, id asc"))
	if err != nil {
		return nil, err
	}

	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoice := *item
		if err := s.attachLines(ctx, &invoice); err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}

	return invoices, nil
}

func (s *Service) AddLine(ctx context.Context, rawInvoiceID string, req domain.CreateLineRequest) (domain.InvoiceLine, error) {
	invoiceID, err := parseID(rawInvoiceID)
	if err != nil {
		return domain.InvoiceLine{}, domain.ErrInvalidID
	}
	if req.Qty < 0 || req.UnitPrice < 0 {
		return domain.InvoiceLine{}, domain.ErrInvalidLine
	}

	invoice, err := s.invoices.FindOne(ctx, &domain.Invoice{ID: invoiceID})
	if err != nil {
		return domain.InvoiceLine{}, err
	}
	if invoice == nil {
		return domain.InvoiceLine{}, domain.ErrNotFound
	}

	count, err := s.lines.Count(ctx, &domain.InvoiceLine{InvoiceID: invoiceID})
	if err != nil {
		return domain.InvoiceLine{}, err
	}

	now := s.clock.Now()
	line := domain.InvoiceLine{
		ID:          s.genID.Generate(),
		InvoiceID:   invoiceID,
		LineNo:      int(count) + 1,
		ItemRefID:   req.ItemRefID,
		Description: strings.TrimSpace(req.Description),
		Qty:         req.Qty,
		UnitPrice:   req.UnitPrice,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.lines.Create(ctx, &line); err != nil {
		return domain.InvoiceLine{}, err
	}

	return line, nil
}

func (s *Service) RemoveLine(ctx context.Context, rawInvoiceID, rawLineID string) error {
	invoiceID, err := parseID(rawInvoiceID)
	if err != nil {
		return domain.ErrInvalidID
	}
	lineID, err := parseID(rawLineID)
	if err != nil {
		return domain.ErrInvalidID
	}

	line, err := s.lines.FindOne(ctx, &domain.InvoiceLine{ID: lineID, InvoiceID: invoiceID})
	if err != nil {
		return err
	}
	if line == nil {
		return domain.ErrLineNotFound
	}

	return s.lines.Delete(ctx, lineID.String())
}

func (s *Service) UpdateStatus(ctx context.Context, req domain.UpdateStatusRequest) (domain.Invoice, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.Invoice{}, domain.ErrInvalidID
	}

	switch req.Status {
	case domain.StatusPending, domain.StatusPartial, domain.StatusPaid:
	default:
		return domain.Invoice{}, domain.ErrInvalidStatus
	}

	item, err := s.invoices.FindOne(ctx, &domain.Invoice{ID: id})
	if err != nil {
		return domain.Invoice{}, err
	}
	if item == nil {
		return domain.Invoice{}, domain.ErrNotFound
	}

	if err := s.invoices.Update(ctx, id.String(), map[string]any{
		"status":     req.Status,
		"updated_at": s.clock.Now(),
	}); err != nil {
		return domain.Invoice{}, err
	}

	invoice := *item
	invoice.Status = req.Status
	return invoice, nil
}

// RefreshStatus recomputes the advisory status from the sum of payments
// attributed to the invoice. Paid when the patient portion is covered,
// partial when anything has been received, pending otherwise.
func (s *Service) RefreshStatus(ctx context.Context, invoiceID snowflake.ID) (domain.Status, error) {
	item, err := s.invoices.FindOne(ctx, &domain.Invoice{ID: invoiceID})
	if err != nil {
		return "", err
	}
	if item == nil {
		return "", domain.ErrNotFound
	}

	var paid int64
	err = s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = ?`,
		invoiceID,
	).Scan(&paid).Error
	if err != nil {
		return "", err
	}

	status := domain.StatusPending
	switch {
	case paid >= item.PatientPortion && paid > 0:
		status = domain.StatusPaid
	case paid > 0:
		status = domain.StatusPartial
	}

	if status == item.Status {
		return status, nil
	}

	if err := s.invoices.Update(ctx, invoiceID.String(), map[string]any{
		"status":     status,
		"updated_at": s.clock.Now(),
	}); err != nil {
		return "", err
	}

	s.log.Info("invoice status refreshed",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("from", string(item.Status)),
		zap.String("to", string(status)),
	)

	return status, nil
}

func (s *Service) attachLines(ctx context.Context, invoice *domain.Invoice) error {
	items, err := s.lines.Find(ctx, &domain.InvoiceLine{InvoiceID: invoice.ID},
		option.WithOrder("line_no asc"))
	if err != nil {
		return err
	}
	for _, item := range items {
		if item == nil {
			continue
		}
		invoice.Lines = append(invoice.Lines, *item)
	}
	return nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
