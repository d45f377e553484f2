package provider

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/go-playground/validator/v10"
)

// CardFields are the raw card fields collected at checkout
type CardFields struct {
	Number      string `json:"number" validate:"required,numeric,min=13,max=19,luhn_checksum"`
	HolderName  string `json:"holder_name" validate:"required,max=100"`
	ExpiryMonth int    `json:"expiry_month" validate:"required,min=1,max=12"`
	ExpiryYear  int    `json:"expiry_year" validate:"required,min=2000,max=2099"`
	CVV         string `json:"cvv" validate:"required,numeric,min=3,max=4"`
	// HolderTaxID is the card holder CPF, digits only
	HolderTaxID string `json:"holder_tax_id,omitempty" validate:"omitempty,numeric,len=11"`
}

// LastFour returns the last four digits of the card number
func (c *CardFields) LastFour() string {
	if len(c.Number) < 4 {
		return c.Number
	}
	return c.Number[len(c.Number)-4:]
}

// CardToken is a provider-issued single-use card reference
type CardToken struct {
	Token     string     `json:"token"`
	LastFour  string     `json:"last_four"`
	Brand     string     `json:"brand,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

var cardValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateCard checks number length and checksum, expiry range and CVV
// length. Failures are ValidationErrors wrapping ErrInvalidCard.
func ValidateCard(card *CardFields, now time.Time) error {
	if card == nil {
		return invalidCard("card", "card is required")
	}
	card.Number = strings.ReplaceAll(strings.ReplaceAll(card.Number, " ", ""), "-", "")

	if err := cardValidator.Struct(card); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return invalidCard(fe.Field(), fmt.Sprintf("failed %s validation", fe.Tag()))
		}
		return invalidCard("card", err.Error())
	}

	// A card is valid through the last day of its expiry month.
	y, m, _ := now.Date()
	if card.ExpiryYear < y || (card.ExpiryYear == y && card.ExpiryMonth < int(m)) {
		return invalidCard("ExpiryYear", "card is expired")
	}
	if card.ExpiryYear > y+20 {
		return invalidCard("ExpiryYear", "expiry too far in the future")
	}
	return nil
}

// ParseExpiry parses "MM/YY" or "MM/YYYY"
func ParseExpiry(value string) (month, year int, err error) {
	parts := strings.Split(strings.TrimSpace(value), "/")
	if len(parts) != 2 {
		return 0, 0, invalidCard("expiry", "expected MM/YY")
	}
	month, err = strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, invalidCard("expiry", "invalid month")
	}
	year, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, invalidCard("expiry", "invalid year")
	}
	switch len(parts[1]) {
	case 2:
		year += 2000
	case 4:
	default:
		return 0, 0, invalidCard("expiry", "invalid year")
	}
	return month, year, nil
}

func invalidCard(field, message string) error {
	return &domainErrors.ValidationError{Field: field, Message: message, Err: domainErrors.ErrInvalidCard}
}
