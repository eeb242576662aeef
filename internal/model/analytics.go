package model

// Participation summarizes check-in coverage over a trailing window.
type Participation struct {
	ParticipationRate float64 `json:"participation_rate"`
	TotalMembers      int     `json:"total_members"`
	ActiveMembers     int     `json:"active_members"`
	Trend             string  `json:"trend"`
}

// TrendPoint is one dated average in a mood or energy series.
type TrendPoint struct {
	Date    string  `json:"date"`
	Average float64 `json:"average"`
}

type KeywordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

type MemberStreak struct {
	User   UserRef `json:"user"`
	Streak int     `json:"streak"`
}
