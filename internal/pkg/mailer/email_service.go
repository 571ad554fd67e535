package mailer

import (
	"fmt"
	"html"
	"time"

	"bchat-be/internal/pkg/logger"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendOTP(toEmail, otp string) error
	SendRoomDetails(toEmail string, details RoomDetails) error
}

type RoomDetails struct {
	RoomName  string
	RoomCode  string
	Secret    string
	ExpiresAt *time.Time
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	senderName  string
	logger      logger.ILogger
}

func NewEmailService(host string, port int, username, password, senderName string, log logger.ILogger) IEmailService {
	return &emailService{
		dialer:      gomail.NewDialer(host, port, username, password),
		senderEmail: username,
		senderName:  senderName,
		logger:      log,
	}
}

func (s *emailService) newMessage(toEmail, subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.senderEmail, s.senderName)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return m
}

func (s *emailService) send(kind, toEmail string, m *gomail.Message) error {
	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error("MAILER", "Failed to send "+kind, map[string]interface{}{"to": toEmail, "error": err})
		return err
	}
	s.logger.Info("MAILER", kind+" sent", map[string]interface{}{"to": toEmail})
	return nil
}

func (s *emailService) SendOTP(toEmail, otp string) error {
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Welcome to BChat!</h2>
			<p>Your verification code is:</p>
			<h1 style="color: #4CAF50; letter-spacing: 5px;">%s</h1>
			<p>This code will expire in 10 minutes.</p>
			<p>If you didn't request this, please ignore this email.</p>
		</div>
	`, otp)

	return s.send("OTP", toEmail, s.newMessage(toEmail, "Your Verification Code", body))
}

func (s *emailService) SendRoomDetails(toEmail string, details RoomDetails) error {
	expiry := "Never expires"
	if details.ExpiresAt != nil {
		expiry = details.ExpiresAt.Format("Mon Jan 02 2006")
	}

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Room Created Successfully!</h2>
			<p>Your secure chat room is ready to use.</p>
			<p><strong>Room Name:</strong> %s</p>
			<p><strong>Room ID:</strong> <span style="letter-spacing: 2px;">%s</span></p>
			<p><strong>Password:</strong> %s</p>
			<p><strong>Expires:</strong> %s</p>
			<p>Share the Room ID and password only with people you trust.</p>
		</div>
	`, html.EscapeString(details.RoomName), details.RoomCode, html.EscapeString(details.Secret), expiry)

	return s.send("Room details", toEmail, s.newMessage(toEmail, "Your BChat Room Details", body))
}
