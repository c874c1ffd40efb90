package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/smtp"
	"strconv"
	"time"

	"ir-stock-service/src/logger"
	"ir-stock-service/src/models"

	"github.com/emersion/go-message/mail"
)

const defaultSMTPPort = 587

// SendMailFunc matches net/smtp.SendMail.
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// AdminNotifier emails an operator when a scheduled job fails. With alerts
// disabled it does nothing; without SMTP settings it only logs.
type AdminNotifier struct {
	Config   models.MAlertConfig
	Logger   *logger.Logger
	SendMail SendMailFunc
	Clock    func() time.Time
}

// -----------------------------------------------------------------------------

func NewAdminNotifier(cfg models.MAlertConfig, log *logger.Logger) *AdminNotifier {
	return &AdminNotifier{
		Config:   cfg,
		Logger:   log,
		SendMail: smtp.SendMail,
		Clock:    time.Now,
	}
}

// -----------------------------------------------------------------------------

func (n *AdminNotifier) NotifyFailure(ctx context.Context, subject string, body string) error {
	if !n.Config.Enabled {
		return nil
	}
	if n.Config.AdminEmail == "" {
		n.Logger.Warning("Admin alerts enabled but ADMIN_EMAIL is not set; dropping alert %q", subject)
		return nil
	}
	if n.Config.SMTPHost == "" {
		n.Logger.Warning("SMTP not configured; alert for %s: %s", n.Config.AdminEmail, subject)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	from := n.Config.From
	if from == "" {
		from = n.Config.AdminEmail
	}

	msg, err := BuildMessage(from, n.Config.AdminEmail, subject, body, n.Clock())
	if err != nil {
		return err
	}

	port := n.Config.SMTPPort
	if port == 0 {
		port = defaultSMTPPort
	}
	addr := n.Config.SMTPHost + ":" + strconv.Itoa(port)

	var auth smtp.Auth
	if n.Config.SMTPUsername != "" {
		auth = smtp.PlainAuth("", n.Config.SMTPUsername, n.Config.SMTPPassword, n.Config.SMTPHost)
	}

	if err := n.SendMail(addr, auth, from, []string{n.Config.AdminEmail}, msg); err != nil {
		return fmt.Errorf("send admin alert via %s: %w", addr, err)
	}
	n.Logger.Info("Admin alert sent to %s", n.Config.AdminEmail)
	return nil
}

// -----------------------------------------------------------------------------

// BuildMessage renders a single-part text/plain RFC 5322 message.
func BuildMessage(from, to, subject, body string, date time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create alert message: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return nil, fmt.Errorf("write alert body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close alert message: %w", err)
	}
	return buf.Bytes(), nil
}
