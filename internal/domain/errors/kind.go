package errors

import "errors"

// Kind groups errors by how callers should react to them.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindDomainRule          Kind = "domain_rule"
	KindProviderRejected    Kind = "provider_rejected"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindConcurrency         Kind = "concurrency_conflict"
	KindNotFound            Kind = "not_found"
	KindUnauthorized        Kind = "unauthorized"
	KindInternal            Kind = "internal"
)

var domainRuleErrors = []error{
	ErrCouponNotFound,
	ErrCouponExpired,
	ErrCouponExhausted,
	ErrCouponInactive,
	ErrPlanNotEligible,
	ErrAlreadyRedeemed,
	ErrCouponCodeTaken,
	ErrSubscriptionCancelled,
	ErrInvalidTransition,
}

// KindOf classifies err. Unrecognized errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr), errors.Is(err, ErrInvalidCard), errors.Is(err, ErrUnsupportedProvider):
		return KindValidation
	case errors.Is(err, ErrInvalidSignature):
		return KindUnauthorized
	case errors.Is(err, ErrConcurrencyConflict):
		return KindConcurrency
	case errors.Is(err, ErrProviderUnavailable):
		return KindProviderUnavailable
	case errors.Is(err, ErrProviderRejected):
		return KindProviderRejected
	case errors.Is(err, ErrSubscriptionNotFound), errors.Is(err, ErrPlanNotFound):
		return KindNotFound
	}

	for _, target := range domainRuleErrors {
		if errors.Is(err, target) {
			return KindDomainRule
		}
	}
	return KindInternal
}

var userMessages = map[error]string{
	ErrCouponNotFound:      "Cupom não encontrado.",
	ErrCouponExpired:       "Este cupom expirou.",
	ErrCouponExhausted:     "Este cupom atingiu o limite de usos.",
	ErrCouponInactive:      "Este cupom não está mais ativo.",
	ErrPlanNotEligible:     "Este cupom não é válido para o plano escolhido.",
	ErrAlreadyRedeemed:     "Este cupom já foi aplicado a esta assinatura.",
	ErrInvalidCard:         "Verifique os dados do cartão e tente novamente.",
	ErrProviderRejected:    "O pagamento foi recusado. Verifique os dados ou use outro meio de pagamento.",
	ErrProviderUnavailable: "Não foi possível contatar o processador de pagamentos. Tente novamente em instantes.",
	ErrConcurrencyConflict: "Não foi possível concluir a operação. Tente novamente.",
	ErrPlanNotFound:        "Plano não encontrado.",
}

// UserMessage returns the customer-facing checkout message for err.
func UserMessage(err error) string {
	for target, msg := range userMessages {
		if errors.Is(err, target) {
			return msg
		}
	}

	switch KindOf(err) {
	case KindValidation:
		return "Dados inválidos. Revise as informações e tente novamente."
	case KindNotFound:
		return "Registro não encontrado."
	default:
		return "Ocorreu um erro inesperado. Tente novamente mais tarde."
	}
}
