// Package email sends maintenance alert mails through Resend.
//
// Callers depend on the Sender interface; NewResendSender is wired in by the
// maintenance CLI when RESEND_API_KEY is set.
package email

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/resend/resend-go/v3"
)

// Alert is one alert mail.
type Alert struct {
	Subject string
	// Heading is the first line of the body.
	Heading string
	// Lines are rendered as a list, one entry per failed check.
	Lines []string
	// ReportPath points at the JSON report on the maintenance host.
	ReportPath string
}

// Sender sends alert mails.
type Sender interface {
	SendAlert(ctx context.Context, to string, alert Alert) error
}

type resendSender struct {
	client    *resend.Client
	fromEmail string
}

// NewResendSender returns a Sender backed by the Resend API.
// fromEmail must belong to a domain verified in Resend.
func NewResendSender(apiKey, fromEmail string) Sender {
	return &resendSender{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
	}
}

func (s *resendSender) SendAlert(ctx context.Context, to string, alert Alert) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("khakishop <%s>", s.fromEmail),
		To:      []string{to},
		Subject: alert.Subject,
		Html:    RenderAlertHTML(alert),
		Text:    RenderAlertText(alert),
	}

	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	return nil
}

// RenderAlertHTML renders the HTML body of an alert.
func RenderAlertHTML(alert Alert) string {
	var items strings.Builder
	for _, line := range alert.Lines {
		fmt.Fprintf(&items, `<li style="margin:0 0 6px 0;">%s</li>`, html.EscapeString(line))
	}

	report := ""
	if alert.ReportPath != "" {
		report = fmt.Sprintf(`<p style="color:#6b6453;font-size:13px;margin:16px 0 0 0;">Report: <code>%s</code></p>`,
			html.EscapeString(alert.ReportPath))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
</head>
<body style="margin:0;padding:24px;background-color:#f4f1ea;font-family:Arial,Helvetica,sans-serif;">
  <table width="560" cellpadding="0" cellspacing="0" style="background-color:#ffffff;border-radius:8px;padding:32px;">
    <tr>
      <td>
        <h1 style="color:#4b4a3a;font-size:20px;margin:0 0 16px 0;">%s</h1>
        <ul style="color:#333333;font-size:14px;line-height:1.5;padding-left:20px;margin:0;">%s</ul>
        %s
      </td>
    </tr>
  </table>
</body>
</html>`, html.EscapeString(alert.Heading), items.String(), report)
}

// RenderAlertText renders the plain-text body of an alert.
func RenderAlertText(alert Alert) string {
	var b strings.Builder
	b.WriteString(alert.Heading)
	b.WriteString("\n\n")
	for _, line := range alert.Lines {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	if alert.ReportPath != "" {
		b.WriteString("\nReport: ")
		b.WriteString(alert.ReportPath)
		b.WriteString("\n")
	}
	return b.String()
}
