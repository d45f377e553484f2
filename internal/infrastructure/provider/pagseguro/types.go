package pagseguro

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

type money struct {
	Value    int64  `json:"value"`
	Currency string `json:"currency"`
}

type planRef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Amount    money  `json:"amount"`
	Frequency string `json:"frequency"`
}

type customer struct {
	ReferenceID string `json:"reference_id,omitempty"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	TaxID       string `json:"tax_id,omitempty"`
}

type holder struct {
	Name  string `json:"name"`
	TaxID string `json:"tax_id,omitempty"`
}

type cardRef struct {
	ID     string  `json:"id,omitempty"`
	Holder *holder `json:"holder,omitempty"`
}

type boletoOptions struct {
	DueDays int `json:"due_days,omitempty"`
}

type pixOptions struct {
	ExpiresInMinutes int `json:"expires_in_minutes,omitempty"`
}

type paymentMethod struct {
	Type   string         `json:"type"`
	Card   *cardRef       `json:"card,omitempty"`
	Boleto *boletoOptions `json:"boleto,omitempty"`
	Pix    *pixOptions    `json:"pix,omitempty"`
}

type discountStep struct {
	Cycles int    `json:"cycles"`
	Value  int    `json:"value"`
	Type   string `json:"type"`
}

type subscriptionRequest struct {
	ReferenceID         string         `json:"reference_id"`
	Plan                planRef        `json:"plan"`
	Customer            customer       `json:"customer"`
	PaymentMethod       paymentMethod  `json:"payment_method"`
	DiscountProgression []discountStep `json:"discount_progression,omitempty"`
	StartDate           string         `json:"start_date"`
}

type link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type subscriptionResponse struct {
	ID          string `json:"id"`
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
	Links       []link `json:"links"`
}

type cardTokenRequest struct {
	Number       string `json:"number"`
	ExpMonth     int    `json:"exp_month"`
	ExpYear      int    `json:"exp_year"`
	SecurityCode string `json:"security_code"`
	Holder       holder `json:"holder"`
}

type cardTokenResponse struct {
	ID          string `json:"id"`
	LastDigits  string `json:"last_digits"`
	Brand       string `json:"brand"`
	ExpiresAt   string `json:"expires_at"`
	FirstDigits string `json:"first_digits"`
}

type errorResponse struct {
	ErrorMessages []struct {
		Code          string `json:"code"`
		Description   string `json:"description"`
		ParameterName string `json:"parameter_name"`
	} `json:"error_messages"`
}

func decodeError(body []byte) (string, string) {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.ErrorMessages) == 0 {
		return "", ""
	}
	first := resp.ErrorMessages[0]
	msg := first.Description
	if first.ParameterName != "" {
		msg = first.ParameterName + ": " + msg
	}
	return first.Code, msg
}

type notification struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	CreatedAt string `json:"created_at"`
	Data      struct {
		ID             string `json:"id"`
		ReferenceID    string `json:"reference_id"`
		SubscriptionID string `json:"subscription_id"`
		Status         string `json:"status"`
		Amount         *money `json:"amount"`
		Cycle          int    `json:"cycle"`
		PaymentDate    string `json:"payment_date"`
		FailureReason  string `json:"failure_reason"`
	} `json:"data"`
}

func cents(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func fromCents(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}

func isCancelled(status string) bool {
	s := strings.ToUpper(status)
	return s == "CANCELED" || s == "CANCELLED"
}
