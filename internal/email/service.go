package email

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/hms/config"
	"github.com/jwalitptl/hms/pkg/metrics"
)

// Service sends account lifecycle mail.
type Service interface {
	SendVerification(ctx context.Context, email, name, code string) error
	SendPasswordReset(ctx context.Context, email, code string) error
	SendWelcome(ctx context.Context, email, name string) error
}

// Message is a rendered email.
type Message struct {
	Template string
	To       string
	Subject  string
	Text     string
	HTML     string
	// Code is the one-time code carried by verification and reset mail.
	Code string
}

func verification(to, name, code string) Message {
	return Message{
		Template: "verification",
		To:       to,
		Subject:  "Verify your email",
		Code:     code,
		Text:     fmt.Sprintf("Hello %s,\n\nYour verification code is %s. It expires in 10 minutes.\n", name, code),
		HTML:     fmt.Sprintf("<p>Hello %s,</p><p>Your verification code is <strong>%s</strong>. It expires in 10 minutes.</p>", name, code),
	}
}

func passwordReset(to, code string) Message {
	return Message{
		Template: "password_reset",
		To:       to,
		Subject:  "Reset your password",
		Code:     code,
		Text:     fmt.Sprintf("Your password reset code is %s. Ignore this email if you did not ask for it.\n", code),
		HTML:     fmt.Sprintf("<p>Your password reset code is <strong>%s</strong>.</p><p>Ignore this email if you did not ask for it.</p>", code),
	}
}

func welcome(to, name string) Message {
	return Message{
		Template: "welcome",
		To:       to,
		Subject:  "Welcome",
		Text:     fmt.Sprintf("Hello %s,\n\nYour account is verified. You can sign in now.\n", name),
		HTML:     fmt.Sprintf("<p>Hello %s,</p><p>Your account is verified. You can sign in now.</p>", name),
	}
}

// transport delivers a rendered message.
type transport func(ctx context.Context, msg Message) error

type service struct {
	send    transport
	metrics *metrics.Metrics
}

func (s *service) deliver(ctx context.Context, msg Message) error {
	err := s.send(ctx, msg)
	if s.metrics != nil {
		s.metrics.EmailsSent.WithLabelValues(msg.Template, metrics.Result(err)).Inc()
	}
	if err != nil {
		return fmt.Errorf("failed to send %s email: %w", msg.Template, err)
	}
	return nil
}

func (s *service) SendVerification(ctx context.Context, email, name, code string) error {
	return s.deliver(ctx, verification(email, name, code))
}

func (s *service) SendPasswordReset(ctx context.Context, email, code string) error {
	return s.deliver(ctx, passwordReset(email, code))
}

func (s *service) SendWelcome(ctx context.Context, email, name string) error {
	return s.deliver(ctx, welcome(email, name))
}

// Dialer is satisfied by *gomail.Dialer.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// NewSMTPService sends mail through d from the given address.
func NewSMTPService(d Dialer, from string, m *metrics.Metrics) Service {
	return &service{
		metrics: m,
		send: func(ctx context.Context, msg Message) error {
			gm := gomail.NewMessage()
			gm.SetHeader("From", from)
			gm.SetHeader("To", msg.To)
			gm.SetHeader("Subject", msg.Subject)
			gm.SetBody("text/plain", msg.Text)
			gm.AddAlternative("text/html", msg.HTML)
			return d.DialAndSend(gm)
		},
	}
}

// NewLogService writes mail to the logger instead of sending it.
func NewLogService(logger zerolog.Logger) Service {
	return &service{
		send: func(ctx context.Context, msg Message) error {
			logger.Info().
				Str("template", msg.Template).
				Str("to", msg.To).
				Str("code", msg.Code).
				Msg("email not sent, no SMTP host configured")
			return nil
		},
	}
}

// New picks the SMTP or log transport from cfg.
func New(cfg config.SMTPConfig, logger zerolog.Logger, m *metrics.Metrics) Service {
	if cfg.Host == "" {
		return NewLogService(logger)
	}
	return NewSMTPService(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From, m)
}

// Recorder keeps sent messages in memory.
type Recorder struct {
	Service
	mu   sync.Mutex
	sent []Message
}

func NewRecorder() *Recorder {
	r := &Recorder{}
	r.Service = &service{send: func(ctx context.Context, msg Message) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.sent = append(r.sent, msg)
		return nil
	}}
	return r
}

// Last returns the most recent message sent to addr.
func (r *Recorder) Last(addr string) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].To == addr {
			return r.sent[i], true
		}
	}
	return Message{}, false
}
