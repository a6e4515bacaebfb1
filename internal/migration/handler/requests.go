package handler

import (
	"strings"

	"eligo/internal/migration/models"
	dErrors "eligo/pkg/domain-errors"
)

// RegistrationFields mirrors the registration form.
type RegistrationFields struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	Username        string `json:"username"`
	CompanyName     string `json:"company_name"`
	Phone           string `json:"phone_number"`
	Address         string `json:"address"`
	City            string `json:"city"`
	PostalCode      string `json:"postal_code"`
	SIREN           string `json:"siren"`
	Sector          string `json:"sector"`
	EmployeeCount   int    `json:"employee_count"`
	AnnualRevenue   int64  `json:"annual_revenue"`
	CompanyAgeYears int    `json:"company_age_years"`
}

// MigrateRequest is the body for POST /accounts/migrate. The access token may
// also be sent as a bearer token.
type MigrateRequest struct {
	AccessToken  string              `json:"access_token"`
	Registration *RegistrationFields `json:"registration"`
}

// Validate implements httputil.Validatable. Field rules live in the
// service so every caller gets them.
func (r *MigrateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.AccessToken = strings.TrimSpace(r.AccessToken)
	if r.Registration == nil {
		return dErrors.New(dErrors.CodeValidation, "registration is required")
	}
	return nil
}

func (r *MigrateRequest) toRegistration() models.Registration {
	f := r.Registration
	return models.Registration{
		Email:           f.Email,
		Password:        f.Password,
		Username:        f.Username,
		CompanyName:     f.CompanyName,
		Phone:           f.Phone,
		Address:         f.Address,
		City:            f.City,
		PostalCode:      f.PostalCode,
		SIREN:           f.SIREN,
		Sector:          f.Sector,
		EmployeeCount:   f.EmployeeCount,
		AnnualRevenue:   f.AnnualRevenue,
		CompanyAgeYears: f.CompanyAgeYears,
	}
}
