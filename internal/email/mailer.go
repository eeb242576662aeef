package email

import (
	"context"
	"fmt"

	"github.com/mailgun/mailgun-go/v4"
)

// ReminderData feeds the daily check-in reminder template.
type ReminderData struct {
	DisplayName string
	TeamName    string
	CheckInURL  string
}

// DigestData feeds the team digest template.
type DigestData struct {
	DisplayName       string
	TeamName          string
	Period            string
	ParticipationRate float64
	ActiveMembers     int
	TotalMembers      int
	TeamURL           string
}

// WelcomeData feeds the first-sign-in welcome template.
type WelcomeData struct {
	DisplayName  string
	DashboardURL string
}

// Mailer renders and sends outbound email. Delivery is best-effort: callers
// log failures and never surface them on the primary operation.
type Mailer interface {
	SendWelcome(ctx context.Context, recipient string, data WelcomeData) error
	SendReminder(ctx context.Context, recipient string, data ReminderData) error
	SendDigest(ctx context.Context, recipient string, data DigestData) error
}

type mailgunMailer struct {
	mg     *mailgun.MailgunImpl
	sender string
}

func NewMailgunMailer(domain, apiKey, sender string) Mailer {
	return &mailgunMailer{
		mg:     mailgun.NewMailgun(domain, apiKey),
		sender: sender,
	}
}

func (m *mailgunMailer) SendWelcome(ctx context.Context, recipient string, data WelcomeData) error {
	subject := "Welcome to Team Pulse!"
	body := fmt.Sprintf(
		"Hi %s,\n\nWelcome to Team Pulse. Create a team or join one with an invite code to start checking in.\n\n%s\n",
		data.DisplayName, data.DashboardURL,
	)
	return m.send(ctx, recipient, subject, body)
}

func (m *mailgunMailer) SendReminder(ctx context.Context, recipient string, data ReminderData) error {
	subject := fmt.Sprintf("Daily Check-in Reminder - %s", data.TeamName)
	body := fmt.Sprintf(
		"Hi %s,\n\nYou haven't checked in with %s today yet.\n\n%s\n",
		data.DisplayName, data.TeamName, data.CheckInURL,
	)
	return m.send(ctx, recipient, subject, body)
}

func (m *mailgunMailer) SendDigest(ctx context.Context, recipient string, data DigestData) error {
	subject := fmt.Sprintf("%s - %s Digest", data.TeamName, data.Period)
	body := fmt.Sprintf(
		"Hi %s,\n\n%s participation this %s: %.2f%% (%d of %d members checked in).\n\n%s\n",
		data.DisplayName, data.TeamName, data.Period,
		data.ParticipationRate, data.ActiveMembers, data.TotalMembers, data.TeamURL,
	)
	return m.send(ctx, recipient, subject, body)
}

func (m *mailgunMailer) send(ctx context.Context, recipient, subject, body string) error {
	msg := m.mg.NewMessage(m.sender, subject, body, recipient)
	_, _, err := m.mg.Send(ctx, msg)
	return err
}

// NoopMailer drops every message. Used when mailgun is not configured.
type NoopMailer struct{}

func (NoopMailer) SendWelcome(context.Context, string, WelcomeData) error   { return nil }
func (NoopMailer) SendReminder(context.Context, string, ReminderData) error { return nil }
func (NoopMailer) SendDigest(context.Context, string, DigestData) error     { return nil }
