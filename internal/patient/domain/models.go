package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Patient struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	FirstName   string       `gorm:"not null" json:"first_name"`
	LastName    string       `gorm:"not null;index" json:"last_name"`
	DateOfBirth *time.Time   `json:"date_of_birth,omitempty"`
	Phone       string       `json:"phone,omitempty"`
	Email       string       `json:"email,omitempty"`
	GovCardNo   string       `json:"gov_card_no,omitempty"`
	InsuranceNo string       `json:"insurance_no,omitempty"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

// DisplayName is the label used on statements and reports.
func (p Patient) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
