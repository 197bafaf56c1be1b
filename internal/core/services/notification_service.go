package services

import (
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"edhub/internal/config"
)

// NotificationService sends transactional email through SendGrid. Every
// send is best effort: a failed email is logged and swallowed, it never
// fails the payment or enrollment flow that triggered it.
type NotificationService struct {
	client   *sendgrid.Client
	from     *mail.Email
	disabled bool
}

// NewNotificationService creates a notification service. Without an API
// key the service stays up but silently drops every send, so local
// development needs no SendGrid account.
func NewNotificationService(cfg config.EmailConfig) *NotificationService {
	if cfg.SendGridKey == "" {
		log.Println("⚠️ SENDGRID_API_KEY not set, email notifications disabled")
		return &NotificationService{disabled: true}
	}
	return &NotificationService{
		client: sendgrid.NewSendClient(cfg.SendGridKey),
		from:   mail.NewEmail(cfg.FromName, cfg.FromEmail),
	}
}

// SendEnrollmentActivated notifies the student that payment cleared and
// the course or package is unlocked
func (n *NotificationService) SendEnrollmentActivated(toName, toEmail, itemName string, amount float64) {
	subject := "Your enrollment is active"
	body := fmt.Sprintf(
		"Hi %s,\n\nYour payment of %.2f EGP was received and \"%s\" is now unlocked on your account. Happy learning!\n",
		toName, amount, itemName,
	)
	n.send(toName, toEmail, subject, body)
}

// SendPaymentFailed notifies the student that the gateway rejected the
// payment attempt
func (n *NotificationService) SendPaymentFailed(toName, toEmail, itemName string) {
	subject := "Payment failed"
	body := fmt.Sprintf(
		"Hi %s,\n\nYour payment attempt for \"%s\" did not go through. No money was taken; you can retry from your account at any time.\n",
		toName, itemName,
	)
	n.send(toName, toEmail, subject, body)
}

// SendRefundProcessed notifies the student that a refund was issued
func (n *NotificationService) SendRefundProcessed(toName, toEmail, itemName string, amount float64, full bool) {
	subject := "Refund processed"
	scope := "A partial refund"
	if full {
		scope = "A full refund"
	}
	body := fmt.Sprintf(
		"Hi %s,\n\n%s of %.2f EGP for \"%s\" has been issued. Depending on your bank it may take a few days to appear.\n",
		toName, scope, amount, itemName,
	)
	n.send(toName, toEmail, subject, body)
}

func (n *NotificationService) send(toName, toEmail, subject, body string) {
	if n.disabled || toEmail == "" {
		return
	}
	message := mail.NewSingleEmail(n.from, subject, mail.NewEmail(toName, toEmail), body, "")
	resp, err := n.client.Send(message)
	if err != nil {
		log.Printf("❌ Failed to send email to %s: %v", toEmail, err)
		return
	}
	if resp.StatusCode >= 400 {
		log.Printf("❌ SendGrid rejected email to %s: %d %s", toEmail, resp.StatusCode, resp.Body)
	}
}
