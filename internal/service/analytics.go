package service

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/mkravets/team-pulse/internal/dates"
	"github.com/mkravets/team-pulse/internal/model"
)

const topKeywords = 20

// minKeywordLen is exclusive: tokens must be longer than this to count.
const minKeywordLen = 3

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {}, "will": {},
	"would": {}, "could": {}, "should": {}, "may": {}, "might": {}, "must": {}, "can": {},
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// participationRate is (distinct authors / member count) * 100, 2 decimals.
func participationRate(activeMembers, totalMembers int) float64 {
	if totalMembers == 0 {
		return 0
	}
	return round2(float64(activeMembers) / float64(totalMembers) * 100)
}

// participationTrend splits the window at its midpoint and compares distinct
// author counts between the recent and older halves.
func participationTrend(checkIns []*checkInPoint, midpoint time.Time) string {
	recent := map[string]struct{}{}
	older := map[string]struct{}{}
	for _, c := range checkIns {
		if c.Date.Before(midpoint) {
			older[c.UserID] = struct{}{}
		} else {
			recent[c.UserID] = struct{}{}
		}
	}

	switch {
	case len(recent) > len(older):
		return "up"
	case len(recent) < len(older):
		return "down"
	default:
		return "stable"
	}
}

type checkInPoint struct {
	UserID string
	Date   time.Time
	Value  int
}

// averageByDate groups points by calendar date and averages their values.
// Dates with no check-ins are omitted. Input order is preserved per date,
// so series built from date-ordered rows come out date-ordered.
func averageByDate(points []*checkInPoint) []model.TrendPoint {
	var order []string
	sums := map[string]int{}
	counts := map[string]int{}

	for _, p := range points {
		key := dates.FormatDay(p.Date)
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		sums[key] += p.Value
		counts[key]++
	}

	series := make([]model.TrendPoint, 0, len(order))
	for _, key := range order {
		series = append(series, model.TrendPoint{
			Date:    key,
			Average: float64(sums[key]) / float64(counts[key]),
		})
	}
	return series
}

// extractKeywords tokenizes blocker texts and returns the most frequent
// tokens. Punctuation is stripped, tokens of length <= 3 and stop words are
// discarded; ties keep first-seen order.
func extractKeywords(blockers []string) []model.KeywordCount {
	counts := map[string]int{}
	firstSeen := map[string]int{}

	for _, text := range blockers {
		for _, word := range tokenize(text) {
			if len(word) <= minKeywordLen {
				continue
			}
			if _, stop := stopWords[word]; stop {
				continue
			}
			if _, seen := counts[word]; !seen {
				firstSeen[word] = len(firstSeen)
			}
			counts[word]++
		}
	}

	keywords := make([]model.KeywordCount, 0, len(counts))
	for word, count := range counts {
		keywords = append(keywords, model.KeywordCount{Word: word, Count: count})
	}

	sort.Slice(keywords, func(i, j int) bool {
		if keywords[i].Count != keywords[j].Count {
			return keywords[i].Count > keywords[j].Count
		}
		return firstSeen[keywords[i].Word] < firstSeen[keywords[j].Word]
	})

	if len(keywords) > topKeywords {
		keywords = keywords[:topKeywords]
	}
	return keywords
}

func tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)
	return strings.Fields(cleaned)
}

// computeStreak counts consecutive calendar days with a check-in, walking
// backward from today. checkInDates must be sorted newest first.
func computeStreak(checkInDates []time.Time, today time.Time) int {
	streak := 0
	for i, d := range checkInDates {
		expected := today.AddDate(0, 0, -i)
		if !sameDay(d, expected) {
			break
		}
		streak++
	}
	return streak
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
