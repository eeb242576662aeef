package model

import "time"

type DigestFrequency string

const (
	DigestOff    DigestFrequency = "OFF"
	DigestDaily  DigestFrequency = "DAILY"
	DigestWeekly DigestFrequency = "WEEKLY"
)

const (
	DefaultReminderTime    = "09:00"
	DefaultDigestFrequency = DigestDaily
)

type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type NotificationPreference struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	TeamID          string          `json:"team_id"`
	ReminderEnabled bool            `json:"reminder_enabled"`
	ReminderTime    string          `json:"reminder_time"`
	DigestFrequency DigestFrequency `json:"digest_frequency"`
}
