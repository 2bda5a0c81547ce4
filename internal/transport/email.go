package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/notification-campaigns/internal/config"
)

const emailSubject = "Notification"

// SimulatedEmailSender stands in for a real mail provider: it waits a fixed
// latency and always succeeds.
type SimulatedEmailSender struct {
	Latency time.Duration
	Logger  *zap.Logger
}

func NewSimulatedEmailSender(latency time.Duration, log *zap.Logger) *SimulatedEmailSender {
	return &SimulatedEmailSender{Latency: latency, Logger: log}
}

func (s *SimulatedEmailSender) SendEmail(ctx context.Context, address, text string) error {
	if s.Latency > 0 {
		timer := time.NewTimer(s.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if s.Logger != nil {
		s.Logger.Debug("email sent (simulated)", zap.String("to", address), zap.Int("length", len(text)))
	}
	return nil
}

// SMTPEmailSender sends plain text mail over implicit TLS (port 465).
type SMTPEmailSender struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewSMTPEmailSender(cfg config.SMTPConfig) *SMTPEmailSender {
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &SMTPEmailSender{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.User,
		password: cfg.Password,
		from:     from,
	}
}

func (e *SMTPEmailSender) SendEmail(ctx context.Context, address, text string) error {
	if e.host == "" {
		return errors.New("smtp host not configured")
	}

	msg := []byte(
		fmt.Sprintf("From: %s\r\n", e.from) +
			fmt.Sprintf("To: %s\r\n", address) +
			fmt.Sprintf("Subject: %s\r\n", emailSubject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=\"utf-8\"\r\n" +
			"\r\n" +
			text,
	)

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: 10 * time.Second},
		Config:    &tls.Config{ServerName: e.host},
	}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(e.host, e.port))
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, e.host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Quit()

	if e.username != "" {
		auth := smtp.PlainAuth("", e.username, e.password, e.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(e.from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(address); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	return w.Close()
}

var (
	_ EmailSender = (*SimulatedEmailSender)(nil)
	_ EmailSender = (*SMTPEmailSender)(nil)
)
