package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/medledger/internal/clock"
	"github.com/smallbiznis/medledger/internal/insurer/domain"
	"github.com/smallbiznis/medledger/pkg/db"
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
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	store repository.Repository[domain.Insurer]
}

func New(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("insurer.service"),
		genID: p.GenID,
		clock: p.Clock,
		store: repository.ProvideStore[domain.Insurer](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateInsurerRequest) (domain.Insurer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Insurer{}, domain.ErrInvalidName
	}

	now := s.clock.Now()
	insurer := domain.Insurer{
		ID:           s.genID.Generate(),
		Name:         name,
		ContactEmail: strings.TrimSpace(req.ContactEmail),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Create(ctx, &insurer); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Insurer{}, domain.ErrDuplicateName
		}
		return domain.Insurer{}, err
	}

	return insurer, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Insurer, error) {
	items, err := s.store.Find(ctx, &domain.Insurer{}, option.WithOrder("name asc"))
	if err != nil {
		return nil, err
	}

	insurers := make([]domain.Insurer, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		insurers = append(insurers, *item)
	}

	return insurers, nil
}
