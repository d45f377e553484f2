package mercadopago

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/internal/domain/provider"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	g := NewGateway(Config{
		BaseURL:       server.URL,
		AccessToken:   "test-token",
		PublicKey:     "test-public-key",
		WebhookSecret: "",
		BackURL:       "https://app.example.com/checkout/done",
		Timeout:       5 * time.Second,
	}, zap.NewNop())
	g.now = func() time.Time { return time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC) }
	return g
}

func createRequest(method provider.PaymentMethod) *provider.CreateSubscriptionRequest {
	plans := model.DefaultPlans()
	return &provider.CreateSubscriptionRequest{
		SubscriptionID:    "5f0c3d2e-0000-4000-8000-000000000001",
		Customer:          provider.Customer{ID: "user-1", Email: "payer@example.com", Name: "Ana"},
		Plan:              &plans[0],
		Cadence:           model.CadenceMonthly,
		FirstChargeDate:   time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC),
		FirstChargeAmount: decimal.RequireFromString("3.75"),
		PaymentMethod:     method,
	}
}

func TestCreateSubscription_CreditCard(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/preapproval", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "5f0c3d2e-0000-4000-8000-000000000001", body["external_reference"])
		assert.Equal(t, "card-token-1", body["card_token_id"])
		assert.Equal(t, "authorized", body["status"])

		recurring := body["auto_recurring"].(map[string]interface{})
		assert.Equal(t, float64(1), recurring["frequency"])
		assert.Equal(t, "months", recurring["frequency_type"])
		assert.Equal(t, 3.75, recurring["transaction_amount"])
		assert.Equal(t, "2024-10-01T00:00:00Z", recurring["start_date"])
		assert.Equal(t, "BRL", recurring["currency_id"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "2c938084", "status": "authorized", "init_point": "https://mp/init"})
	})

	resp, err := g.CreateSubscription(context.Background(), createRequest(provider.CreditCard{Token: "card-token-1", HolderName: "ANA"}))
	require.NoError(t, err)
	assert.Equal(t, "2c938084", resp.ProviderSubscriptionID)
	assert.Equal(t, "authorized", resp.Status)
}

func TestCreateSubscription_PixIsPending(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pending", body["status"])
		assert.NotContains(t, body, "card_token_id")

		json.NewEncoder(w).Encode(map[string]interface{}{"id": "2c938085", "status": "pending", "init_point": "https://mp/init/pix"})
	})

	resp, err := g.CreateSubscription(context.Background(), createRequest(provider.Pix{ExpiresInMinutes: 30}))
	require.NoError(t, err)
	assert.Equal(t, "https://mp/init/pix", resp.CheckoutURL)
}

func TestCreateSubscription_ErrorClassification(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Invalid card token","error":"bad_request","status":400,"cause":[{"code":"cc_rejected_bad_filled_security_code","description":"bad cvv"}]}`))
	})

	_, err := g.CreateSubscription(context.Background(), createRequest(provider.CreditCard{Token: "t"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrProviderRejected)

	var perr *provider.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "cc_rejected_bad_filled_security_code", perr.Code)
	assert.Equal(t, "Invalid card token", perr.Message)

	g = newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err = g.CreateSubscription(context.Background(), createRequest(provider.CreditCard{Token: "t"}))
	assert.ErrorIs(t, err, domainErrors.ErrProviderUnavailable)
}

func TestCancelSubscription_Idempotent(t *testing.T) {
	puts := 0
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/preapproval/pre-1", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			status := "authorized"
			if puts > 0 {
				status = "cancelled"
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "pre-1", "status": status})
		case http.MethodPut:
			puts++
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "cancelled", body["status"])
			json.NewEncoder(w).Encode(map[string]string{"id": "pre-1", "status": "cancelled"})
		}
	})

	require.NoError(t, g.CancelSubscription(context.Background(), "pre-1"))
	require.NoError(t, g.CancelSubscription(context.Background(), "pre-1"))
	assert.Equal(t, 1, puts)
}

func TestUpdateChargeAmount(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		recurring := body["auto_recurring"].(map[string]interface{})
		assert.Equal(t, 7.5, recurring["transaction_amount"])
		assert.NotContains(t, body, "status")
		w.Write([]byte(`{}`))
	})

	require.NoError(t, g.UpdateChargeAmount(context.Background(), "pre-1", decimal.RequireFromString("7.50")))
}

func TestTokenizeCard(t *testing.T) {
	calls := 0
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/v1/card_tokens", r.URL.Path)
		assert.Equal(t, "test-public-key", r.URL.Query().Get("public_key"))

		var body cardTokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "4235647728025682", body.CardNumber)
		assert.Equal(t, 11, body.ExpirationMonth)

		json.NewEncoder(w).Encode(map[string]string{"id": "tok-1", "last_four_digits": "5682"})
	})

	token, err := g.TokenizeCard(context.Background(), &provider.CardFields{
		Number: "4235 6477 2802 5682", HolderName: "APRO", ExpiryMonth: 11, ExpiryYear: 2030, CVV: "123",
	})
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token.Token)
	assert.Equal(t, "5682", token.LastFour)

	_, err = g.TokenizeCard(context.Background(), &provider.CardFields{
		Number: "4235647728025682", HolderName: "APRO", ExpiryMonth: 11, ExpiryYear: 2030, CVV: "1",
	})
	assert.ErrorIs(t, err, domainErrors.ErrInvalidCard)
	assert.Equal(t, 1, calls)
}

func TestTranslateWebhook(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})

	tests := []struct {
		name    string
		payload string
		kind    provider.EventKind
		subID   string
		payment string
	}{
		{"preapproval created", `{"id":1,"action":"preapproval.created","data":{"id":"pre-1"}}`, provider.EventSubscriptionCreated, "pre-1", ""},
		{"preapproval cancelled via update", `{"id":2,"type":"subscription_preapproval","action":"updated","data":{"id":"pre-1","status":"cancelled"}}`, provider.EventSubscriptionCancelled, "pre-1", ""},
		{"preapproval updated", `{"id":3,"action":"preapproval.updated","data":{"id":"pre-1","status":"authorized"}}`, provider.EventSubscriptionUpdated, "pre-1", ""},
		{"payment approved", `{"id":"4","action":"payment.created","data":{"id":998,"status":"approved","preapproval_id":"pre-1","transaction_amount":3.75,"cycle":5}}`, provider.EventPaymentSucceeded, "pre-1", "998"},
		{"payment rejected", `{"id":5,"action":"payment.updated","data":{"id":"999","status":"rejected","preapproval_id":"pre-1"}}`, provider.EventPaymentFailed, "pre-1", "999"},
		{"payment in process", `{"id":6,"action":"payment.updated","data":{"id":"1000","status":"in_process","preapproval_id":"pre-1"}}`, provider.EventUnknown, "pre-1", "1000"},
		{"unmapped", `{"id":7,"action":"merchant_order.created","data":{"id":"1"}}`, provider.EventUnknown, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := g.TranslateWebhook([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, event.Kind)
			assert.Equal(t, tt.subID, event.ProviderSubscriptionID)
			assert.Equal(t, tt.payment, event.ProviderPaymentID)
			assert.NotEmpty(t, event.EventID)
		})
	}

	event, err := g.TranslateWebhook([]byte(`{"id":4,"action":"payment.created","data":{"id":1,"status":"approved","transaction_amount":3.75,"cycle":5}}`))
	require.NoError(t, err)
	assert.Equal(t, 5, event.CycleIndex)
	assert.Equal(t, "3.75", event.Amount.StringFixed(2))

	_, err = g.TranslateWebhook([]byte(`not json`))
	assert.Error(t, err)
}
