package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"strings"

	"github.com/BradenHooton/ipguard/internal/models"
	pkglogger "github.com/BradenHooton/ipguard/pkg/logger"
	"github.com/go-playground/validator/v10"
)

const defaultEmailBody = "Default email body"

var notificationSubjects = map[models.NotificationKind]string{
	models.NotificationWarn:       "Warning: You are reaching the threshold limit",
	models.NotificationLock:       "Your account has been locked",
	models.NotificationUnlock:     "Your account has been unlocked",
	models.NotificationAutoUnlock: "Your account has been automatically unlocked",
}

var emailTemplate = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { text-align: center; padding: 20px; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        {{- if .LogoURL}}
        <div class="header"><img src="{{.LogoURL}}" alt="Logo" height="48"></div>
        {{- end}}
        <div class="content">
            {{- range .Paragraphs}}
            <p>{{.}}</p>
            {{- end}}
        </div>
        {{- if .Copyright}}
        <div class="footer"><p>{{.Copyright}}</p></div>
        {{- end}}
    </div>
</body>
</html>
`))

// NotificationUserRepository resolves the recipient of a notification
type NotificationUserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// NotificationSettings supplies the configured bodies and branding
type NotificationSettings interface {
	Get(ctx context.Context) (*models.IPGuardSettings, error)
}

// NotificationService renders and sends account notifications
type NotificationService struct {
	users    NotificationUserRepository
	settings NotificationSettings
	mailer   Mailer
	validate *validator.Validate
	logger   *slog.Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(users NotificationUserRepository, settings NotificationSettings, mailer Mailer, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		users:    users,
		settings: settings,
		mailer:   mailer,
		validate: validator.New(),
		logger:   logger,
	}
}

type emailContent struct {
	LogoURL    string
	Paragraphs []string
	Copyright  string
}

// Notify sends the message for kind to the account holder. Accounts that no
// longer exist or have no valid address are skipped without error.
func (s *NotificationService) Notify(ctx context.Context, kind models.NotificationKind, accountID string) error {
	subject, ok := notificationSubjects[kind]
	if !ok {
		return fmt.Errorf("unknown notification kind %q", kind)
	}

	user, err := s.users.GetByID(ctx, accountID)
	if errors.Is(err, models.ErrNotFound) {
		s.logger.Info("notification skipped: account not found", slog.String("user_id", accountID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve notification recipient: %w", err)
	}

	if err := s.validate.Var(user.Email, "required,email"); err != nil {
		s.logger.Info("notification skipped: no valid email address", slog.String("user_id", accountID))
		return nil
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load notification settings: %w", err)
	}

	body := strings.TrimSpace(settings.BodyFor(kind))
	if body == "" {
		body = defaultEmailBody
	}

	content := emailContent{
		LogoURL:    settings.LogoURL,
		Paragraphs: splitParagraphs(body),
		Copyright:  settings.CopyrightText,
	}

	htmlBody, err := renderHTML(content)
	if err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, user.Email, subject, htmlBody, renderText(content)); err != nil {
		return err
	}

	s.logger.Info("ip guard notification sent",
		slog.String("user_id", accountID),
		slog.String("kind", string(kind)),
		slog.String("email", pkglogger.SanitizedEmail(user.Email)))
	return nil
}

func renderHTML(content emailContent) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, content); err != nil {
		return "", fmt.Errorf("failed to render email: %w", err)
	}
	return buf.String(), nil
}

func renderText(content emailContent) string {
	text := strings.Join(content.Paragraphs, "\n\n")
	if content.Copyright != "" {
		text += "\n\n" + content.Copyright
	}
	return text + "\n"
}

// splitParagraphs breaks a body on blank lines
func splitParagraphs(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")

	var paragraphs []string
	for _, block := range strings.Split(body, "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			paragraphs = append(paragraphs, block)
		}
	}
	return paragraphs
}
