package notify

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridMailer is the email fallback channel.
type SendgridMailer struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
	client     *rest.Client
}

func NewSendgridMailer(apiKey, fromName, fromAddress string) *SendgridMailer {
	return &SendgridMailer{
		key:        apiKey,
		host:       sendgridHost,
		from:       sgmail.NewEmail(fromName, fromAddress),
		subjPrefix: "[" + fromName + "] ",
		client:     &rest.Client{HTTPClient: &http.Client{Timeout: 10 * time.Second}},
	}
}

func (m *SendgridMailer) prepare(toName, toAddress, subject, body string) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + subject
	p.AddTos(sgmail.NewEmail(toName, toAddress))

	msg := sgmail.NewV3Mail()
	msg.SetFrom(m.from)
	msg.AddPersonalizations(p)
	msg.AddContent(
		sgmail.NewContent("text/plain", body),
		sgmail.NewContent("text/html", "<p>"+strings.ReplaceAll(html.EscapeString(body), "\n", "<br>")+"</p>"),
	)
	return msg
}

func (m *SendgridMailer) Mail(ctx context.Context, toName, toAddress, subject, body string) error {
	req := sendgrid.GetRequest(m.key, sendgridEndpoint, m.host)
	req.Method = rest.Post
	req.Body = sgmail.GetRequestBody(m.prepare(toName, toAddress, subject, body))

	res, err := m.client.SendWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sending email: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
