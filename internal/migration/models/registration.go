package models

import (
	"net/mail"
	"strings"
	"unicode"

	dErrors "eligo/pkg/domain-errors"
	"eligo/pkg/email"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72 // bcrypt input limit
	maxFieldLength    = 255
)

// Registration carries the fields a visitor submits when creating an account.
// Company fields left at zero are filled from the simulation answers.
type Registration struct {
	Email           string
	Password        string
	Username        string
	CompanyName     string
	Phone           string
	Address         string
	City            string
	PostalCode      string
	SIREN           string
	Sector          string
	EmployeeCount   int
	AnnualRevenue   int64
	CompanyAgeYears int
}

// Normalize trims free-text fields and lowercases the email.
func (r *Registration) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Username = strings.TrimSpace(r.Username)
	r.CompanyName = strings.TrimSpace(r.CompanyName)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Address = strings.TrimSpace(r.Address)
	r.City = strings.TrimSpace(r.City)
	r.PostalCode = strings.TrimSpace(r.PostalCode)
	r.SIREN = strings.ReplaceAll(strings.TrimSpace(r.SIREN), " ", "")
	r.Sector = strings.TrimSpace(r.Sector)
}

func (r *Registration) Validate() error {
	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	if len(r.Password) < minPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	if len(r.Password) > maxPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password is too long")
	}
	for _, f := range []struct{ name, value string }{
		{"username", r.Username},
		{"company_name", r.CompanyName},
		{"phone", r.Phone},
		{"address", r.Address},
		{"city", r.City},
		{"sector", r.Sector},
	} {
		if len(f.value) > maxFieldLength {
			return dErrors.New(dErrors.CodeValidation, f.name+" is too long")
		}
	}
	if r.PostalCode != "" && !digits(r.PostalCode, 5) {
		return dErrors.New(dErrors.CodeValidation, "postal_code must be 5 digits")
	}
	if r.SIREN != "" && !digits(r.SIREN, 9) {
		return dErrors.New(dErrors.CodeValidation, "siren must be 9 digits")
	}
	if r.EmployeeCount < 0 || r.AnnualRevenue < 0 || r.CompanyAgeYears < 0 {
		return dErrors.New(dErrors.CodeValidation, "company figures must not be negative")
	}
	return nil
}

// DisplayName is the username, or a name derived from the email local part.
func (r *Registration) DisplayName() string {
	if r.Username != "" {
		return r.Username
	}
	return email.DisplayName(r.Email)
}

func digits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, c := range s {
		if !unicode.IsDigit(c) {
			return false
		}
	}
	return true
}
