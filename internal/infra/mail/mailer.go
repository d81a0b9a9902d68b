package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/taskvault/taskvault-api/internal/core/domain"
	"github.com/taskvault/taskvault-api/internal/core/port"
	"github.com/taskvault/taskvault-api/internal/infra/config"
	"github.com/taskvault/taskvault-api/internal/infra/logger"
)

var subjects = map[domain.OTPPurpose]string{
	domain.PurposeRegistration: "Verify your account",
	domain.PurposeLogin:        "Your login code",
	domain.PurposeReset:        "Reset your password",
}

var otpTemplate = template.Must(template.New("otp").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .header {
            background-color: #4F46E5;
            color: white;
            padding: 20px;
            text-align: center;
            border-radius: 5px 5px 0 0;
        }
        .content {
            background-color: #f9f9f9;
            padding: 30px;
            border-radius: 0 0 5px 5px;
        }
        .code {
            display: inline-block;
            font-size: 32px;
            letter-spacing: 8px;
            font-weight: bold;
            background-color: #eef;
            padding: 12px 30px;
            border-radius: 5px;
            margin: 20px 0;
        }
        .footer {
            margin-top: 30px;
            font-size: 12px;
            color: #666;
            text-align: center;
        }
    </style>
</head>
<body>
    <div class="header">
        <h1>TaskVault</h1>
    </div>
    <div class="content">
        <h2>{{.Subject}}</h2>
        <p>Use the code below to continue. It expires in 5 minutes.</p>

        <div class="code">{{.Code}}</div>

        <p style="margin-top: 30px;">If you didn't request this code, you can safely ignore this email.</p>
    </div>
    <div class="footer">
        <p>&copy; 2026 TaskVault. All rights reserved.</p>
    </div>
</body>
</html>
`))

// SMTPMailer delivers one-time passcodes over SMTP.
type SMTPMailer struct {
	cfg    config.SMTPSettings
	logger *zap.Logger
}

func NewSMTPMailer(cfg config.SMTPSettings, log *zap.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, logger: log}
}

func (m *SMTPMailer) Configured() bool {
	return m.cfg.Host != ""
}

// SendOTP renders the passcode email and sends it. Designed to be called in
// a goroutine by callers that treat delivery as best effort.
func (m *SMTPMailer) SendOTP(ctx context.Context, to, code string, purpose domain.OTPPurpose) error {
	subject, ok := subjects[purpose]
	if !ok {
		return fmt.Errorf("unknown otp purpose %q", purpose)
	}

	var buf bytes.Buffer
	data := struct {
		Subject string
		Code    string
	}{Subject: subject, Code: code}
	if err := otpTemplate.Execute(&buf, data); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}

	from := m.cfg.From
	if from == "" {
		from = m.cfg.Username
	}

	msg := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		from, to, subject, buf.String(),
	))

	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	if err := smtp.SendMail(addr, auth, from, []string{to}, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	m.logger.Info("otp email sent",
		zap.String("email", logger.MaskEmail(to)),
		zap.String("purpose", string(purpose)),
	)
	return nil
}

// DevMailer logs codes instead of delivering them. Used when SMTP is not
// configured; handlers surface the code in the response for local testing.
type DevMailer struct {
	logger *zap.Logger
}

func NewDevMailer(log *zap.Logger) *DevMailer {
	return &DevMailer{logger: log}
}

func (m *DevMailer) Configured() bool { return false }

func (m *DevMailer) SendOTP(_ context.Context, to, code string, purpose domain.OTPPurpose) error {
	m.logger.Info("development mode, otp not emailed",
		zap.String("email", logger.MaskEmail(to)),
		zap.String("purpose", string(purpose)),
		zap.String("code", code),
	)
	return nil
}

var (
	_ port.Mailer = (*SMTPMailer)(nil)
	_ port.Mailer = (*DevMailer)(nil)
)
