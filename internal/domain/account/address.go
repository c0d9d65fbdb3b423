package account

import (
	"fmt"
	"strings"

	"github.com/example/ec-storefront/internal/apperr"
	"github.com/google/uuid"
)

type AddressType string

const (
	AddressHome  AddressType = "home"
	AddressWork  AddressType = "work"
	AddressOther AddressType = "other"
)

var (
	ErrIncompleteAddress  = apperr.New(apperr.KindValidation, "address is incomplete")
	ErrInvalidAddressType = apperr.New(apperr.KindValidation, "address type must be one of home, work, other")
)

// Valid reports whether t is one of the closed set of address types.
func (t AddressType) Valid() bool {
	switch t {
	case AddressHome, AddressWork, AddressOther:
		return true
	}
	return false
}

type Address struct {
	ID         string      `json:"id"`
	Country    string      `json:"country"`
	City       string      `json:"city"`
	Line1      string      `json:"address1"`
	Line2      string      `json:"address2,omitempty"`
	PostalCode string      `json:"postal_code"`
	Type       AddressType `json:"type"`
}

// IncompleteAddressError lists the required fields that are empty.
type IncompleteAddressError struct {
	Missing []string
}

func (e *IncompleteAddressError) Error() string {
	return fmt.Sprintf("address is missing required fields: %s", strings.Join(e.Missing, ", "))
}

func (e *IncompleteAddressError) Kind() apperr.Kind { return apperr.KindValidation }

func (e *IncompleteAddressError) Unwrap() error { return ErrIncompleteAddress }

// MissingFields returns the names of required fields that are blank.
func (a Address) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(a.Country) == "" {
		missing = append(missing, "country")
	}
	if strings.TrimSpace(a.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(a.Line1) == "" {
		missing = append(missing, "address1")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		missing = append(missing, "postal_code")
	}
	if a.Type == "" {
		missing = append(missing, "type")
	}
	return missing
}

// Validate checks completeness and the address type.
func (a Address) Validate() error {
	if missing := a.MissingFields(); len(missing) > 0 {
		return &IncompleteAddressError{Missing: missing}
	}
	if !a.Type.Valid() {
		return ErrInvalidAddressType
	}
	return nil
}

// NewAddress validates the fields and assigns a fresh identifier.
func NewAddress(fields Address) (Address, error) {
	fields.Country = strings.TrimSpace(fields.Country)
	fields.City = strings.TrimSpace(fields.City)
	fields.Line1 = strings.TrimSpace(fields.Line1)
	fields.Line2 = strings.TrimSpace(fields.Line2)
	fields.PostalCode = strings.TrimSpace(fields.PostalCode)
	fields.Type = AddressType(strings.ToLower(string(fields.Type)))

	if err := fields.Validate(); err != nil {
		return Address{}, err
	}
	fields.ID = uuid.New().String()
	return fields, nil
}
