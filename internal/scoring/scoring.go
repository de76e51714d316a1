// Package scoring grades reading and listening submissions against the
// canonical answers stored on skill items.
package scoring

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/stemsi/ielts-backend/internal/model"
)

// MaxBand is the top of the IELTS band scale.
const MaxBand = 9

// AnswerGroup is a learner's submitted answers for one skill item.
type AnswerGroup struct {
	SkillID int      `json:"skillId"`
	Answers []string `json:"answers"`
}

// Result is the outcome of one evaluation.
type Result struct {
	Score   float64 `json:"score"`
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
}

// DecodeList parses a JSON array. Empty or malformed input yields an empty,
// non-nil slice and false; it never fails.
func DecodeList[T any](raw string) ([]T, bool) {
	if strings.TrimSpace(raw) == "" {
		return []T{}, false
	}
	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return []T{}, false
	}
	return out, true
}

// Evaluate scores rawAnswerText against items in item order. Items without a
// matching answer group are skipped entirely. Each submitted answer that
// equals any canonical answer of its item, ignoring case and surrounding
// whitespace, counts once; duplicates count again and extras are free.
func Evaluate(items []model.SkillItem, rawAnswerText string) Result {
	groups, _ := DecodeList[AnswerGroup](rawAnswerText)

	// First group wins when a skill id repeats.
	byID := make(map[int][]string, len(groups))
	for _, g := range groups {
		if _, seen := byID[g.SkillID]; !seen {
			byID[g.SkillID] = g.Answers
		}
	}

	var res Result
	for _, it := range items {
		submitted, ok := byID[it.ID]
		if !ok {
			continue
		}

		var canonical []string
		if it.CorrectAnswer != nil {
			canonical, _ = DecodeList[string](*it.CorrectAnswer)
		}
		res.Total += len(canonical)

		for _, ans := range submitted {
			if matchesAny(ans, canonical) {
				res.Correct++
			}
		}
	}

	res.Score = BandScore(res.Correct, res.Total)
	return res
}

func matchesAny(answer string, canonical []string) bool {
	a := strings.TrimSpace(answer)
	for _, c := range canonical {
		if strings.EqualFold(a, strings.TrimSpace(c)) {
			return true
		}
	}
	return false
}

// BandScore returns correct/total scaled to the band range and rounded to two
// decimals, half to even on the exact quotient. Zero when total is not
// positive; never above MaxBand.
func BandScore(correct, total int) float64 {
	if total <= 0 || correct <= 0 {
		return 0
	}

	n := int64(correct) * MaxBand * 100
	d := int64(total)
	q, r := n/d, n%d
	switch {
	case 2*r > d:
		q++
	case 2*r == d && q%2 == 1:
		q++
	}

	if q > MaxBand*100 {
		q = MaxBand * 100
	}
	return float64(q) / 100
}

// RoundHalfBand rounds a band to the nearest half band, halves rounding up,
// clamped to [0, MaxBand].
func RoundHalfBand(band float64) float64 {
	if band <= 0 {
		return 0
	}
	r := math.Floor(band*2+0.5) / 2
	if r > MaxBand {
		return MaxBand
	}
	return r
}

// AverageBand is the mean of the given bands rounded to the nearest half
// band. Zero for no bands.
func AverageBand(bands []float64) float64 {
	if len(bands) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bands {
		sum += b
	}
	return RoundHalfBand(sum / float64(len(bands)))
}
