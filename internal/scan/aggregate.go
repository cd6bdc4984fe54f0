package scan

import (
	"github.com/provmon/provmon/internal/checks"
)

// RiskBands maps a composite score onto a risk level. Bands are monotonic:
// a higher score never yields a worse level.
type RiskBands struct {
	LowMin      int
	ModerateMin int
}

// DefaultRiskBands returns the standard thresholds.
func DefaultRiskBands() RiskBands {
	return RiskBands{LowMin: 75, ModerateMin: 50}
}

// Level returns the risk level for a composite score.
func (b RiskBands) Level(score int) string {
	switch {
	case score >= b.LowMin:
		return "low"
	case score >= b.ModerateMin:
		return "moderate"
	default:
		return "high"
	}
}

// Summary is the aggregate view of one scan's check results.
type Summary struct {
	// CompositeScore is nil when every check was inconclusive; an absent
	// score is not a zero score.
	CompositeScore *int
	RiskLevel      string
	CategoryScores map[string]int
	Passed         int
	Failed         int
	Warned         int
	Inconclusive   int
}

// Aggregate computes the composite score, category sub-scores and status
// counts for a result set. Inconclusive results are excluded from every
// mean; they neither help nor hurt.
func Aggregate(results []checks.Result, bands RiskBands) Summary {
	summary := Summary{}

	sum := 0
	count := 0
	catSum := map[string]int{}
	catCount := map[string]int{}

	for _, res := range results {
		switch res.Status {
		case checks.StatusPass:
			summary.Passed++
		case checks.StatusFail:
			summary.Failed++
		case checks.StatusWarn:
			summary.Warned++
		case checks.StatusInconclusive:
			summary.Inconclusive++
			continue
		}
		sum += res.Score
		count++
		catSum[res.Category] += res.Score
		catCount[res.Category]++
	}

	if count == 0 {
		summary.RiskLevel = "unknown"
		return summary
	}

	composite := roundDiv(sum, count)
	summary.CompositeScore = &composite
	summary.RiskLevel = bands.Level(composite)

	summary.CategoryScores = make(map[string]int, len(catSum))
	for category, total := range catSum {
		summary.CategoryScores[category] = roundDiv(total, catCount[category])
	}

	return summary
}

func roundDiv(sum, count int) int {
	return int(float64(sum)/float64(count) + 0.5)
}
