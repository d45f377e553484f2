package provider

// PaymentMethodKind names a PaymentMethod variant
type PaymentMethodKind string

const (
	PaymentMethodCreditCard PaymentMethodKind = "credit_card"
	PaymentMethodBoleto     PaymentMethodKind = "boleto"
	PaymentMethodPix        PaymentMethodKind = "pix"
)

// PaymentMethod is one of CreditCard, Boleto or Pix. Adapters switch on the
// concrete type.
type PaymentMethod interface {
	Kind() PaymentMethodKind
	paymentMethod()
}

// CreditCard charges a card previously tokenized with the same provider
type CreditCard struct {
	Token      string `json:"token"`
	HolderName string `json:"holder_name"`
	LastFour   string `json:"last_four,omitempty"`
}

// Boleto issues a bank slip per cycle
type Boleto struct {
	DueDays int `json:"due_days"`
}

// Pix issues an instant-payment QR code per cycle
type Pix struct {
	ExpiresInMinutes int `json:"expires_in_minutes"`
}

func (CreditCard) Kind() PaymentMethodKind { return PaymentMethodCreditCard }
func (Boleto) Kind() PaymentMethodKind     { return PaymentMethodBoleto }
func (Pix) Kind() PaymentMethodKind        { return PaymentMethodPix }

func (CreditCard) paymentMethod() {}
func (Boleto) paymentMethod()     {}
func (Pix) paymentMethod()        {}
