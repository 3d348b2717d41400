package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidName   = errors.New("insurer: name is required")
	ErrDuplicateName = errors.New("insurer: name already registered")
	ErrNotFound      = errors.New("insurer: not found")
)

type Insurer struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Name         string       `gorm:"not null;uniqueIndex" json:"name"`
	ContactEmail string       `json:"contact_email,omitempty"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

type CreateInsurerRequest struct {
	Name         string `json:"name"`
	ContactEmail string `json:"contact_email"`
}

type Service interface {
	Create(context.Context, CreateInsurerRequest) (Insurer, error)
	List(context.Context) ([]Insurer, error)
}
