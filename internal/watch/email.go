package watch

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

type EmailSender struct {
	Host     string
	Port     int
	From     string
	To       []string
	Username string
	Password string

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailSender returns nil when host, from or to is missing, so callers
// can treat email as optional.
func NewEmailSender(host string, port int, from, to, username, password string) *EmailSender {
	if host == "" || from == "" || to == "" {
		return nil
	}
	var recipients []string
	for _, r := range strings.Split(to, ",") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	if len(recipients) == 0 {
		return nil
	}
	return &EmailSender{
		Host:     host,
		Port:     port,
		From:     from,
		To:       recipients,
		Username: username,
		Password: password,
		sendMail: smtp.SendMail,
	}
}

func (es *EmailSender) SendAlert(ctx context.Context, hostname string, failures int, detail string) error {
	subject := fmt.Sprintf("Certificate Alert: %s", hostname)
	body := fmt.Sprintf("%s\n\n%d consecutive failed checks.", detail, failures)
	return es.send(ctx, subject, body)
}

func (es *EmailSender) SendRecovery(ctx context.Context, hostname string) error {
	subject := fmt.Sprintf("Certificate Recovered: %s", hostname)
	body := fmt.Sprintf("The certificate of %s is fresh again.", hostname)
	return es.send(ctx, subject, body)
}

// net/smtp takes no context, so ctx is only checked up front.
func (es *EmailSender) send(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		es.From, strings.Join(es.To, ", "), subject, body)

	addr := fmt.Sprintf("%s:%d", es.Host, es.Port)

	var auth smtp.Auth
	if es.Username != "" {
		auth = smtp.PlainAuth("", es.Username, es.Password, es.Host)
	}

	send := es.sendMail
	if send == nil {
		send = smtp.SendMail
	}
	if err := send(addr, auth, es.From, es.To, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", strings.Join(es.To, ", "), err)
	}
	return nil
}
