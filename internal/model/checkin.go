package model

import "time"

type Mood string

const (
	MoodGreat      Mood = "GREAT"
	MoodGood       Mood = "GOOD"
	MoodOkay       Mood = "OKAY"
	MoodLow        Mood = "LOW"
	MoodStruggling Mood = "STRUGGLING"
)

// MoodOrdinal maps the five mood levels onto 1..5 for averaging.
var MoodOrdinal = map[Mood]int{
	MoodGreat:      5,
	MoodGood:       4,
	MoodOkay:       3,
	MoodLow:        2,
	MoodStruggling: 1,
}

const (
	EnergyMin = 1
	EnergyMax = 5

	MaxYesterdayLen = 1000
	MaxTodayLen     = 1000
	MaxBlockersLen  = 500

	MaxAttachments = 3
)

type CheckIn struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	TeamID      string       `json:"team_id"`
	Yesterday   string       `json:"yesterday"`
	Today       string       `json:"today"`
	Blockers    *string      `json:"blockers,omitempty"`
	Mood        Mood         `json:"mood"`
	Energy      int          `json:"energy"`
	CheckInDate time.Time    `json:"check_in_date"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	User        *UserRef     `json:"user,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Attachment struct {
	ID          string    `json:"id"`
	CheckInID   string    `json:"check_in_id"`
	URL         string    `json:"url"`
	Filename    string    `json:"filename"`
	StoragePath string    `json:"storage_path"`
	CreatedAt   time.Time `json:"created_at"`
}

// CheckInPage is a filtered page of check-ins with pagination counters.
type CheckInPage struct {
	Data       []*CheckIn `json:"data"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	Total      int        `json:"total"`
	TotalPages int        `json:"total_pages"`
}
