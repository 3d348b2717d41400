package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/medledger/internal/clock"
	"github.com/smallbiznis/medledger/internal/patient/domain"
	"github.com/smallbiznis/medledger/pkg/db/option"
	"github.com/smallbiznis/medledger/pkg/db/pagination"
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
	store repository.Repository[domain.Patient]
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("patient.service"),
		genID: p.GenID,
		clock: p.Clock,
		store: repository.ProvideStore[domain.Patient](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreatePatientRequest) (domain.Patient, error) {
	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)
	if firstName == "" || lastName == "" {
		return domain.Patient{}, domain.ErrInvalidName
	}

	now := s.clock.Now()
	patient := domain.Patient{
		ID:          s.genID.Generate(),
		FirstName:   firstName,
		LastName:    lastName,
		DateOfBirth: req.DateOfBirth,
		Phone:       strings.TrimSpace(req.Phone),
		Email:       strings.TrimSpace(req.Email),
		GovCardNo:   strings.TrimSpace(req.GovCardNo),
		InsuranceNo: strings.TrimSpace(req.InsuranceNo),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Create(ctx, &patient); err != nil {
		return domain.Patient{}, err
	}

	return patient, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.Patient, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.Patient{}, err
	}

	item, err := s.store.FindOne(ctx, &domain.Patient{ID: id})
	if err != nil {
		return domain.Patient{}, err
	}
	if item == nil {
		return domain.Patient{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListPatientRequest) (domain.ListPatientResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	filter := &domain.Patient{LastName: strings.TrimSpace(req.LastName)}
	items, err := s.store.Find(ctx, filter,
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  int(pageSize) + 1,
		}),
		option.WithOrder("created_at desc, id desc"),
	)
	if err != nil {
		return domain.ListPatientResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(patient *domain.Patient) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        patient.ID.String(),
			CreatedAt: patient.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	patients := make([]domain.Patient, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		patients = append(patients, *item)
	}

	resp := domain.ListPatientResponse{Patients: patients}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdatePatientRequest) (domain.Patient, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.Patient{}, err
	}

	existing, err := s.store.FindOne(ctx, &domain.Patient{ID: id})
	if err != nil {
		return domain.Patient{}, err
	}
	if existing == nil {
		return domain.Patient{}, domain.ErrNotFound
	}

	changes := map[string]any{"updated_at": s.clock.Now()}
	if req.Phone != nil {
		changes["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		changes["email"] = strings.TrimSpace(*req.Email)
	}
	if req.InsuranceNo != nil {
		changes["insurance_no"] = strings.TrimSpace(*req.InsuranceNo)
	}

	if err := s.store.Update(ctx, id.String(), changes); err != nil {
		return domain.Patient{}, err
	}

	updated, err := s.store.FindOne(ctx, &domain.Patient{ID: id})
	if err != nil {
		return domain.Patient{}, err
	}
	if updated == nil {
		return domain.Patient{}, domain.ErrNotFound
	}

	return *updated, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
