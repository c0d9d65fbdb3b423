package email

import (
	"fmt"
	"net/smtp"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service handles email sending via SMTP
type Service struct {
	host     string
	port     string
	from     string
	sendMail sendMailFunc
}

// NewService creates a new email service
func NewService(host, port, from string) *Service {
	return &Service{
		host:     host,
		port:     port,
		from:     from,
		sendMail: smtp.SendMail,
	}
}

// SendOrderConfirmation sends an order confirmation email
func (s *Service) SendOrderConfirmation(to string, summary OrderSummary) error {
	body, err := BuildOrderConfirmationBody(summary)
	if err != nil {
		return fmt.Errorf("render confirmation: %w", err)
	}
	subject := fmt.Sprintf("Order confirmation (order %s)", summary.ShortID())
	return s.send(to, subject, body)
}

// SendOrderCancellation sends an order cancellation email
func (s *Service) SendOrderCancellation(to string, summary OrderSummary) error {
	body, err := BuildOrderCancellationBody(summary)
	if err != nil {
		return fmt.Errorf("render cancellation: %w", err)
	}
	subject := fmt.Sprintf("Order cancelled (order %s)", summary.ShortID())
	return s.send(to, subject, body)
}

func (s *Service) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return s.sendMail(addr, nil, s.from, []string{to}, []byte(msg))
}
