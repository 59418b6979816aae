package services

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"time"

	"github.com/mtaa-app/mtaa-backend/internal/config"
	"github.com/mtaa-app/mtaa-backend/internal/database"
	"github.com/mtaa-app/mtaa-backend/internal/models"
)

// EmailOTPSender delivers codes over SMTP.
type EmailOTPSender struct {
	Host     string
	Port     int
	User     string
	Password string
	AppName  string
	TTL      time.Duration
}

func NewEmailOTPSender(cfg *config.Config) *EmailOTPSender {
	return &EmailOTPSender{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		AppName:  cfg.AppName,
		TTL:      cfg.OTPTTL,
	}
}

func (e *EmailOTPSender) SendOTP(ctx context.Context, identity, purpose, code string) error {
	subject := fmt.Sprintf("%s - Your Verification Code", e.AppName)
	if purpose == models.OTPPurposeLogin {
		subject = fmt.Sprintf("%s - Your Login Code", e.AppName)
	}

	body := fmt.Sprintf(
		"Hello,\n\n"+
			"Your %s verification code is:\n\n"+
			"%s\n\n"+
			"This code expires in %d minutes. If you did not request it, you can ignore this email.\n\n"+
			"Karibu,\nThe %s Team",
		e.AppName, code, int(e.TTL.Minutes()), e.AppName)

	// RFC 822 headers joined with CRLF
	headers := []string{
		fmt.Sprintf("From: %s", e.User),
		fmt.Sprintf("To: %s", identity),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		body,
	}
	message := strings.Join(headers, "\r\n")

	auth := smtp.PlainAuth("", e.User, e.Password, e.Host)
	addr := fmt.Sprintf("%s:%d", e.Host, e.Port)
	return smtp.SendMail(addr, auth, e.User, []string{identity}, []byte(message))
}

// LogOTPSender writes codes to the server log. Used for phone identities
// until an SMS gateway is configured, and for all identities in
// development when SMTP is not set up.
type LogOTPSender struct{}

func (LogOTPSender) SendOTP(ctx context.Context, identity, purpose, code string) error {
	log.Printf("📨 OTP for %s (%s): %s", identity, purpose, code)
	return nil
}

// ChannelOTPSender routes email identities to the email sender and
// everything else (phone numbers) to the SMS sender.
type ChannelOTPSender struct {
	Email OTPSender
	SMS   OTPSender
}

func (c *ChannelOTPSender) SendOTP(ctx context.Context, identity, purpose, code string) error {
	if strings.Contains(identity, "@") {
		return c.Email.SendOTP(ctx, identity, purpose, code)
	}
	return c.SMS.SendOTP(ctx, identity, purpose, code)
}

// NewOTPSender builds the delivery chain from config. Without SMTP
// credentials every code goes to the log.
func NewOTPSender(cfg *config.Config) OTPSender {
	if cfg.SMTPHost == "" {
		return LogOTPSender{}
	}
	return &ChannelOTPSender{
		Email: NewEmailOTPSender(cfg),
		SMS:   LogOTPSender{},
	}
}

const otpCooldownKeyPrefix = "otp_cooldown:"

// OTPResendAllowed enforces the resend cooldown per (identity, purpose)
// using a Redis key with TTL. Fails open when Redis is unavailable.
func OTPResendAllowed(ctx context.Context, identity, purpose string, wait time.Duration) bool {
	if database.RedisClient == nil {
		return true
	}
	key := otpCooldownKeyPrefix + purpose + ":" + identity
	ok, err := database.RedisClient.SetNX(ctx, key, "1", wait).Result()
	if err != nil {
		return true
	}
	return ok
}
