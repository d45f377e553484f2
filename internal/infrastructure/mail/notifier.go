// Package mail sends customer notifications about subscription status changes.
package mail

import (
	"context"
	"fmt"
	"html"

	"github.com/clinicore/billing-engine/internal/config"
	"github.com/clinicore/billing-engine/internal/domain/model"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Notifier tells a customer that their subscription changed status
type Notifier interface {
	NotifyStatusChange(ctx context.Context, sub *model.Subscription, status model.SubscriptionStatus) error
}

// Sender delivers a composed message
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier sends notifications over SMTP. Only past_due and cancelled
// produce mail.
type SMTPNotifier struct {
	sender   Sender
	from     string
	fromName string
	logger   *zap.Logger
}

// NewSMTPNotifier creates a notifier from mail configuration
func NewSMTPNotifier(cfg config.MailConfig, logger *zap.Logger) *SMTPNotifier {
	return NewNotifierWithSender(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From, cfg.FromName, logger)
}

// NewNotifierWithSender creates a notifier over an arbitrary sender
func NewNotifierWithSender(sender Sender, from, fromName string, logger *zap.Logger) *SMTPNotifier {
	if fromName == "" {
		fromName = "Clinicore"
	}
	return &SMTPNotifier{sender: sender, from: from, fromName: fromName, logger: logger}
}

func (n *SMTPNotifier) NotifyStatusChange(ctx context.Context, sub *model.Subscription, status model.SubscriptionStatus) error {
	if sub.CustomerEmail == "" {
		return nil
	}
	m := n.compose(sub, status)
	if m == nil {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send %s notification: %w", status, err)
	}

	n.logger.Info("Status notification sent",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("status", string(status)))
	return nil
}

func (n *SMTPNotifier) compose(sub *model.Subscription, status model.SubscriptionStatus) *gomail.Message {
	var subject, body string
	name := html.EscapeString(sub.CustomerName)
	if name == "" {
		name = "cliente"
	}

	switch status {
	case model.SubscriptionStatusPastDue:
		subject = "Pagamento da sua assinatura não aprovado"
		body = fmt.Sprintf(`<p>Olá, %s.</p>
<p>Não conseguimos processar o pagamento da sua assinatura do plano <strong>%s</strong>.</p>
<p>Atualize sua forma de pagamento para continuar usando o sistema sem interrupções.</p>`,
			name, html.EscapeString(sub.PlanID))
	case model.SubscriptionStatusCancelled:
		subject = "Sua assinatura foi cancelada"
		body = fmt.Sprintf(`<p>Olá, %s.</p>
<p>Sua assinatura do plano <strong>%s</strong> foi cancelada. Nenhuma nova cobrança será realizada.</p>`,
			name, html.EscapeString(sub.PlanID))
	default:
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(n.from, n.fromName))
	m.SetHeader("To", sub.CustomerEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return m
}

type nopNotifier struct{}

// NewNopNotifier returns a notifier that sends nothing
func NewNopNotifier() Notifier {
	return nopNotifier{}
}

func (nopNotifier) NotifyStatusChange(context.Context, *model.Subscription, model.SubscriptionStatus) error {
	return nil
}
