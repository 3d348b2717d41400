package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/medledger/pkg/db/pagination"
)

var (
	ErrInvalidID   = errors.New("patient: invalid id")
	ErrInvalidName = errors.New("patient: first and last name are required")
	ErrNotFound    = errors.New("patient: not found")
)

type CreatePatientRequest struct {
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Phone       string     `json:"phone"`
	Email       string     `json:"email"`
	GovCardNo   string     `json:"gov_card_no"`
	InsuranceNo string     `json:"insurance_no"`
}

type UpdatePatientRequest struct {
	ID          string
	Phone       *string `json:"phone"`
	Email       *string `json:"email"`
	InsuranceNo *string `json:"insurance_no"`
}

type ListPatientRequest struct {
	PageToken string
	PageSize  int32
	LastName  string
}

type ListPatientResponse struct {
	pagination.PageInfo
	Patients []Patient `json:"patients"`
}

type Service interface {
	Create(context.Context, CreatePatientRequest) (Patient, error)
	GetByID(ctx context.Context, id string) (Patient, error)
	List(context.Context, ListPatientRequest) (ListPatientResponse, error)
	Update(context.Context, UpdatePatientRequest) (Patient, error)
}
