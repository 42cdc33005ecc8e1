package types

import (
	"fmt"
	"strings"
)

// Address is a shipping destination plus the contact details carriers and
// order emails need. It is embedded into order rows as flat columns rather
// than stored as its own entity.
type Address struct {
	FullName   string  `json:"full_name" gorm:"column:ship_full_name"`
	Email      string  `json:"email" gorm:"column:ship_email"`
	Phone      string  `json:"phone" gorm:"column:ship_phone"`
	Line1      string  `json:"line1" gorm:"column:ship_line1"`
	Line2      *string `json:"line2,omitempty" gorm:"column:ship_line2"`
	City       string  `json:"city" gorm:"column:ship_city"`
	PostalCode string  `json:"postal_code" gorm:"column:ship_postal_code"`
	Country    string  `json:"country" gorm:"column:ship_country"`
}

// Validate checks the required destination and contact fields.
func (a Address) Validate() error {
	if strings.TrimSpace(a.FullName) == "" {
		return fmt.Errorf("address: missing full_name")
	}
	if strings.TrimSpace(a.Email) == "" {
		return fmt.Errorf("address: missing email")
	}
	if !strings.Contains(a.Email, "@") {
		return fmt.Errorf("address: invalid email")
	}
	if strings.TrimSpace(a.Phone) == "" {
		return fmt.Errorf("address: missing phone")
	}
	if strings.TrimSpace(a.Line1) == "" {
		return fmt.Errorf("address: missing line1")
	}
	if strings.TrimSpace(a.City) == "" {
		return fmt.Errorf("address: missing city")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		return fmt.Errorf("address: missing postal_code")
	}
	if strings.TrimSpace(a.Country) == "" {
		return fmt.Errorf("address: missing country")
	}
	return nil
}
