package services

import (
	"strings"

	"github.com/sirupsen/logrus"
	gomail "gopkg.in/gomail.v2"

	"github.com/finvault/trading-backend/shared"
)

// EmailPayload is one outbound report email. To overrides the configured
// default recipients when set.
type EmailPayload struct {
	Subject string
	HTML    string
	Text    string
	To      []string
}

// Mailer is the external mail transport boundary
type Mailer interface {
	Send(from string, to []string, subject, html, text string) error
}

// SMTPMailer sends mail through an SMTP relay via gomail
type SMTPMailer struct {
	dialer *gomail.Dialer
}

func NewSMTPMailer(host string, port int, username, password string) *SMTPMailer {
	return &SMTPMailer{dialer: gomail.NewDialer(host, port, username, password)}
}

func (m *SMTPMailer) Send(from string, to []string, subject, html, text string) error {
	message := gomail.NewMessage()
	message.SetHeader("From", from)
	message.SetHeader("To", to...)
	message.SetHeader("Subject", subject)
	if text != "" {
		message.SetBody("text/plain", text)
		message.AddAlternative("text/html", html)
	} else {
		message.SetBody("text/html", html)
	}
	return m.dialer.DialAndSend(message)
}

// EmailDeliveryService sends rendered reports to the configured recipient
// list. Absence of any recipient is a hard error and delivery is not
// attempted.
type EmailDeliveryService struct {
	mailer            Mailer
	from              string
	defaultRecipients []string
}

func NewEmailDeliveryService(mailer Mailer, from string, defaultRecipients []string) *EmailDeliveryService {
	return &EmailDeliveryService{
		mailer:            mailer,
		from:              from,
		defaultRecipients: defaultRecipients,
	}
}

// SendReport delivers the payload, using the default recipients unless the
// payload carries an override
func (eds *EmailDeliveryService) SendReport(payload EmailPayload) error {
	recipients := payload.To
	if len(recipients) == 0 {
		recipients = eds.defaultRecipients
	}
	if len(recipients) == 0 {
		logrus.Error("No recipients specified for report email")
		return shared.NewValidationError("NO_RECIPIENTS", "no recipients specified for report email", "email-delivery", "send_report")
	}

	if err := eds.mailer.Send(eds.from, recipients, payload.Subject, payload.HTML, payload.Text); err != nil {
		logrus.Errorf("Failed to send report email to %s: %v", strings.Join(recipients, ","), err)
		return shared.WrapError(err, shared.ErrorCategoryNetwork, "EMAIL_SEND_FAILED", "email-delivery", "send_report", true)
	}

	logrus.Infof("Report email sent to %s", strings.Join(recipients, ","))
	return nil
}
