package pagseguro

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
	"github.com/clinicore/billing-engine/internal/domain/schedule"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	g := NewGateway(Config{BaseURL: server.URL, Token: "ps-token", Timeout: 5 * time.Second}, zap.NewNop())
	g.now = func() time.Time { return time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC) }
	return g
}

func TestCreateSubscription_SendsDiscountProgression(t *testing.T) {
	plans := model.DefaultPlans()
	plan := &plans[0]
	start := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	s, err := schedule.Compute(plan, model.CadenceMonthly, &model.RedemptionResult{Code: "WELCOME3", FreePeriodMonths: 3}, start)
	require.NoError(t, err)
	first := s.FirstCharge()

	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/subscriptions", r.URL.Path)
		assert.Equal(t, "Bearer ps-token", r.Header.Get("Authorization"))
		assert.Equal(t, "4.0", r.Header.Get("x-api-version"))

		var body subscriptionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sub-1", body.ReferenceID)
		assert.Equal(t, int64(1500), body.Plan.Amount.Value)
		assert.Equal(t, "MONTHLY", body.Plan.Frequency)
		assert.Equal(t, "CREDIT_CARD", body.PaymentMethod.Type)
		assert.Equal(t, "tok-1", body.PaymentMethod.Card.ID)
		assert.Equal(t, "2024-06-01", body.StartDate)
		assert.Equal(t, []discountStep{
			{Cycles: 4, Value: 100, Type: "PERCENTAGE"},
			{Cycles: 1, Value: 75, Type: "PERCENTAGE"},
			{Cycles: 1, Value: 50, Type: "PERCENTAGE"},
			{Cycles: 1, Value: 25, Type: "PERCENTAGE"},
		}, body.DiscountProgression)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "SUBS_1", "status": "ACTIVE", "reference_id": "sub-1"})
	})

	resp, err := g.CreateSubscription(context.Background(), &provider.CreateSubscriptionRequest{
		SubscriptionID:    "sub-1",
		Customer:          provider.Customer{ID: "user-1", Email: "a@example.com", Name: "Ana"},
		Plan:              plan,
		Cadence:           model.CadenceMonthly,
		FirstChargeDate:   first.DueDate,
		FirstChargeAmount: first.Amount,
		PaymentMethod:     provider.CreditCard{Token: "tok-1", HolderName: "ANA"},
		Schedule:          s,
	})
	require.NoError(t, err)
	assert.Equal(t, "SUBS_1", resp.ProviderSubscriptionID)
}

func TestCreateSubscription_BoletoNeedsTaxID(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called")
	})
	plans := model.DefaultPlans()

	_, err := g.CreateSubscription(context.Background(), &provider.CreateSubscriptionRequest{
		SubscriptionID: "sub-1",
		Plan:           &plans[1],
		Cadence:        model.CadenceAnnual,
		PaymentMethod:  provider.Boleto{DueDays: 3},
	})
	var verr *domainErrors.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCreateSubscription_Rejected(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error_messages":[{"code":"40002","description":"invalid_parameter","parameter_name":"payment_method.card.id"}]}`))
	})
	plans := model.DefaultPlans()

	_, err := g.CreateSubscription(context.Background(), &provider.CreateSubscriptionRequest{
		SubscriptionID: "sub-1",
		Plan:           &plans[0],
		Cadence:        model.CadenceMonthly,
		PaymentMethod:  provider.CreditCard{Token: "bad"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrProviderRejected)

	var perr *provider.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "40002", perr.Code)
	assert.Equal(t, "payment_method.card.id: invalid_parameter", perr.Message)
}

func TestCancelSubscription_AlreadyCancelled(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode(map[string]string{"id": "SUBS_1", "status": "CANCELED"})
	})
	assert.NoError(t, g.CancelSubscription(context.Background(), "SUBS_1"))
}

func TestSuspendAndActivate(t *testing.T) {
	var paths []string
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, g.PauseSubscription(context.Background(), "SUBS_1"))
	require.NoError(t, g.ResumeSubscription(context.Background(), "SUBS_1"))
	assert.Equal(t, []string{"/subscriptions/SUBS_1/suspend", "/subscriptions/SUBS_1/activate"}, paths)
	assert.NoError(t, g.UpdateChargeAmount(context.Background(), "SUBS_1", decimal.RequireFromString("10")))
}

func TestTranslateWebhook(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})

	event, err := g.TranslateWebhook([]byte(`{"id":"EVT_1","event":"PAYMENT.SUCCEEDED","data":{"id":"PAY_1","subscription_id":"SUBS_1","amount":{"value":375,"currency":"BRL"},"cycle":5}}`))
	require.NoError(t, err)
	assert.Equal(t, provider.EventPaymentSucceeded, event.Kind)
	assert.Equal(t, "SUBS_1", event.ProviderSubscriptionID)
	assert.Equal(t, "PAY_1", event.ProviderPaymentID)
	assert.Equal(t, "3.75", event.Amount.StringFixed(2))
	assert.Equal(t, 5, event.CycleIndex)

	event, err = g.TranslateWebhook([]byte(`{"id":"EVT_2","event":"PAYMENT.FAILED","data":{"id":"PAY_2","subscription_id":"SUBS_1","failure_reason":"insufficient funds"}}`))
	require.NoError(t, err)
	assert.Equal(t, provider.EventPaymentFailed, event.Kind)

	event, err = g.TranslateWebhook([]byte(`{"id":"EVT_3","event":"SUBSCRIPTION.CANCELLED","data":{"id":"SUBS_1"}}`))
	require.NoError(t, err)
	assert.Equal(t, provider.EventSubscriptionCancelled, event.Kind)

	event, err = g.TranslateWebhook([]byte(`{"id":"EVT_4","event":"SUBSCRIPTION.UPDATED","data":{"id":"SUBS_1","status":"CANCELED"}}`))
	require.NoError(t, err)
	assert.Equal(t, provider.EventSubscriptionCancelled, event.Kind)

	event, err = g.TranslateWebhook([]byte(`{"id":"EVT_5","event":"CHARGE.REFUNDED","data":{"id":"X"}}`))
	require.NoError(t, err)
	assert.Equal(t, provider.EventUnknown, event.Kind)
}
