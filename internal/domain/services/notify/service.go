// Package notify delivers operator notifications for reconciliation
// events that need a human: completed large transfers, exhausted queue
// entries, unhealthy ledger transitions. Nothing here is user-facing.
package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/shopspring/decimal"
	"github.com/vortex-market/tola-sync/internal/infrastructure/config"
	"github.com/vortex-market/tola-sync/pkg/logger"
)

// Notifier is the operator notification channel
type Notifier interface {
	LargeTransferComplete(ctx context.Context, from, to string, total decimal.Decimal, batches uint32, txHash string)
	Anomaly(ctx context.Context, subject, detail string)
}

// Service sends operator email through SendGrid. When no API key is
// configured every notification degrades to a log line so the
// reconciliation path never depends on email availability.
type Service struct {
	client *sendgrid.Client
	from   *mail.Email
	to     *mail.Email
	logger *logger.Logger
}

// NewService creates a notifier from config
func NewService(cfg config.NotifyConfig, log *logger.Logger) *Service {
	s := &Service{logger: log}
	if cfg.SendGridAPIKey != "" && cfg.OperatorEmail != "" {
		s.client = sendgrid.NewSendClient(cfg.SendGridAPIKey)
		s.from = mail.NewEmail("TOLA Sync", cfg.FromEmail)
		s.to = mail.NewEmail("Operator", cfg.OperatorEmail)
	}
	return s
}

// LargeTransferComplete reports that every batch of a split transfer has
// landed.
func (s *Service) LargeTransferComplete(ctx context.Context, from, to string, total decimal.Decimal, batches uint32, txHash string) {
	subject := "Large Token Transfer Completed"
	body := fmt.Sprintf(
		"A large token transfer of %s TOLA from %s to %s has been processed in %d batches. Transaction hash: %s",
		total.StringFixed(2), from, to, batches, txHash,
	)
	s.send(ctx, subject, body)
}

// Anomaly reports a condition an operator should look at
func (s *Service) Anomaly(ctx context.Context, subject, detail string) {
	s.send(ctx, subject, detail)
}

func (s *Service) send(ctx context.Context, subject, body string) {
	if s.client == nil {
		s.logger.Warn("Operator notification (email not configured)", "subject", subject, "detail", body)
		return
	}

	message := mail.NewSingleEmail(s.from, subject, s.to, body, body)
	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		s.logger.Error("Failed to send operator notification", "error", err, "subject", subject)
		return
	}
	if resp.StatusCode >= 400 {
		s.logger.Error("Operator notification rejected", "status_code", resp.StatusCode, "subject", subject)
		return
	}
	s.logger.Info("Operator notification sent", "subject", subject)
}
