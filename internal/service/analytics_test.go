package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mkravets/team-pulse/internal/model"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestParticipationRate(t *testing.T) {
	tests := []struct {
		name     string
		active   int
		total    int
		expected float64
	}{
		{name: "three of four members", active: 3, total: 4, expected: 75},
		{name: "everyone checked in", active: 5, total: 5, expected: 100},
		{name: "nobody checked in", active: 0, total: 4, expected: 0},
		{name: "empty team", active: 0, total: 0, expected: 0},
		{name: "rounds to two decimals", active: 1, total: 3, expected: 33.33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, participationRate(tt.active, tt.total))
		})
	}
}

func TestParticipationTrend(t *testing.T) {
	midpoint := day("2025-06-04")

	tests := []struct {
		name     string
		points   []*checkInPoint
		expected string
	}{
		{
			name: "more authors recently",
			points: []*checkInPoint{
				{UserID: "u1", Date: day("2025-06-01")},
				{UserID: "u1", Date: day("2025-06-05")},
				{UserID: "u2", Date: day("2025-06-06")},
			},
			expected: "up",
		},
		{
			name: "fewer authors recently",
			points: []*checkInPoint{
				{UserID: "u1", Date: day("2025-06-01")},
				{UserID: "u2", Date: day("2025-06-02")},
				{UserID: "u1", Date: day("2025-06-05")},
			},
			expected: "down",
		},
		{
			name: "same authors both halves",
			points: []*checkInPoint{
				{UserID: "u1", Date: day("2025-06-01")},
				{UserID: "u1", Date: day("2025-06-05")},
			},
			expected: "stable",
		},
		{
			name:     "no check-ins",
			points:   nil,
			expected: "stable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, participationTrend(tt.points, midpoint))
		})
	}
}

func TestAverageByDate(t *testing.T) {
	points := []*checkInPoint{
		{Date: day("2025-06-01"), Value: 5},
		{Date: day("2025-06-01"), Value: 4},
		{Date: day("2025-06-02"), Value: 2},
	}

	series := averageByDate(points)

	assert.Equal(t, []model.TrendPoint{
		{Date: "2025-06-01", Average: 4.5},
		{Date: "2025-06-02", Average: 2},
	}, series)
}

func TestAverageByDate_Empty(t *testing.T) {
	assert.Empty(t, averageByDate(nil))
}

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name     string
		blockers []string
		expected []model.KeywordCount
	}{
		{
			name:     "strips short tokens and stop words",
			blockers: []string{"Blocked on API integration"},
			expected: []model.KeywordCount{
				{Word: "blocked", Count: 1},
				{Word: "integration", Count: 1},
			},
		},
		{
			name:     "counts across texts and sorts by frequency",
			blockers: []string{"waiting for review", "still waiting on deploy", "deploy failed, waiting again"},
			expected: []model.KeywordCount{
				{Word: "waiting", Count: 3},
				{Word: "deploy", Count: 2},
				{Word: "review", Count: 1},
				{Word: "still", Count: 1},
				{Word: "failed", Count: 1},
				{Word: "again", Count: 1},
			},
		},
		{
			name:     "punctuation splits tokens",
			blockers: []string{"database;migration...database"},
			expected: []model.KeywordCount{
				{Word: "database", Count: 2},
				{Word: "migration", Count: 1},
			},
		},
		{
			name:     "no blockers",
			blockers: nil,
			expected: []model.KeywordCount{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractKeywords(tt.blockers))
		})
	}
}

func TestExtractKeywords_CapsAtTop20(t *testing.T) {
	blockers := []string{
		"alpha bravo charlie delta echoes foxtrot golfs hotel india juliett " +
			"kilos limas mikes november oscar papas quebec romeo sierra tango " +
			"uniform victor whiskey xrays yankee zulus",
	}

	keywords := extractKeywords(blockers)
	assert.Len(t, keywords, 20)
}

func TestComputeStreak(t *testing.T) {
	today := day("2025-06-10")

	tests := []struct {
		name     string
		dates    []time.Time
		expected int
	}{
		{
			name:     "three consecutive days",
			dates:    []time.Time{day("2025-06-10"), day("2025-06-09"), day("2025-06-08")},
			expected: 3,
		},
		{
			name:     "gap breaks the streak",
			dates:    []time.Time{day("2025-06-10"), day("2025-06-08")},
			expected: 1,
		},
		{
			name:     "no check-in today",
			dates:    []time.Time{day("2025-06-09"), day("2025-06-08")},
			expected: 0,
		},
		{
			name:     "no check-ins at all",
			dates:    nil,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, computeStreak(tt.dates, today))
		})
	}
}
