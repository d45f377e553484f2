package mercadopago

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

type autoRecurring struct {
	Frequency         int     `json:"frequency,omitempty"`
	FrequencyType     string  `json:"frequency_type,omitempty"`
	StartDate         string  `json:"start_date,omitempty"`
	TransactionAmount float64 `json:"transaction_amount,omitempty"`
	CurrencyID        string  `json:"currency_id,omitempty"`
}

type preapprovalRequest struct {
	Reason            string         `json:"reason,omitempty"`
	ExternalReference string         `json:"external_reference,omitempty"`
	PayerEmail        string         `json:"payer_email,omitempty"`
	CardTokenID       string         `json:"card_token_id,omitempty"`
	BackURL           string         `json:"back_url,omitempty"`
	PreapprovalPlanID string         `json:"preapproval_plan_id,omitempty"`
	AutoRecurring     *autoRecurring `json:"auto_recurring,omitempty"`
	Status            string         `json:"status,omitempty"`
}

type preapprovalResponse struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	InitPoint         string `json:"init_point"`
	ExternalReference string `json:"external_reference"`
	PayerID           int64  `json:"payer_id"`
	NextPaymentDate   string `json:"next_payment_date"`
}

type preapprovalPlanRequest struct {
	Reason        string         `json:"reason"`
	AutoRecurring *autoRecurring `json:"auto_recurring"`
	BackURL       string         `json:"back_url,omitempty"`
}

type preapprovalPlanResponse struct {
	ID string `json:"id"`
}

type cardTokenRequest struct {
	CardNumber      string     `json:"card_number"`
	SecurityCode    string     `json:"security_code"`
	ExpirationMonth int        `json:"expiration_month"`
	ExpirationYear  int        `json:"expiration_year"`
	Cardholder      cardholder `json:"cardholder"`
}

type cardholder struct {
	Name           string          `json:"name"`
	Identification *identification `json:"identification,omitempty"`
}

type identification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type cardTokenResponse struct {
	ID             string `json:"id"`
	LastFourDigits string `json:"last_four_digits"`
	FirstSixDigits string `json:"first_six_digits"`
	DateDue        string `json:"date_due"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Status  int    `json:"status"`
	Cause   []struct {
		Code        json.RawMessage `json:"code"`
		Description string          `json:"description"`
	} `json:"cause"`
}

func decodeError(body []byte) (string, string) {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", ""
	}
	code := resp.Error
	if len(resp.Cause) > 0 && len(resp.Cause[0].Code) > 0 {
		code = string(bytes.Trim(resp.Cause[0].Code, `"`))
	}
	return code, resp.Message
}

// flexibleID accepts ids sent as JSON numbers or strings
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

type notification struct {
	ID          flexibleID `json:"id"`
	Type        string     `json:"type"`
	Action      string     `json:"action"`
	DateCreated string     `json:"date_created"`
	Data        struct {
		ID                flexibleID      `json:"id"`
		Status            string          `json:"status"`
		PreapprovalID     string          `json:"preapproval_id"`
		ExternalReference string          `json:"external_reference"`
		TransactionAmount decimal.Decimal `json:"transaction_amount"`
		Cycle             int             `json:"cycle"`
	} `json:"data"`
}

func amount(d decimal.Decimal) float64 {
	f, _ := strconv.ParseFloat(d.StringFixed(2), 64)
	return f
}
