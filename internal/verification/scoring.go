package verification

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Recommendation templates, selected by rounded score.
const (
	RecommendApprove              = "APPROVE - High confidence for verification. Project demonstrates strong potential for blue carbon impact."
	RecommendConditionalMinor     = "CONDITIONAL_APPROVAL - Good project fundamentals with minor concerns. Recommend additional verification steps."
	RecommendConditionalDocuments = "CONDITIONAL_APPROVAL - Requires additional documentation and verification to address identified risk factors."
	RecommendReview               = "REVIEW_REQUIRED - Significant concerns about project viability. Detailed review and additional information needed before approval."
	RecommendReject               = "REJECT - High risk factors present. Project does not meet minimum criteria for blue carbon verification."
)

// Risk factor messages.
const (
	RiskSmallArea     = "Small project area may limit carbon sequestration impact"
	RiskVerySmallArea = "Very small project area - insufficient for meaningful carbon impact"
	RiskLocation      = "Location not identified as suitable coastal area for blue carbon projects"
)

const (
	baseScore      = 0.5
	baseConfidence = 0.8
)

var ecosystemScores = map[string]float64{
	"mangrove":        0.20,
	"seagrass":        0.15,
	"saltmarsh":       0.10,
	"coastal_wetland": 0.08,
}

var coastalRegions = []string{
	"gujarat", "maharashtra", "goa", "karnataka", "kerala",
	"tamil nadu", "andhra pradesh", "odisha", "west bengal",
	"puducherry", "daman", "diu", "lakshadweep", "andaman", "nicobar",
}

var priorityRegions = []string{"sundarbans", "kerala backwaters", "chilika", "pulicat"}

var descriptionTerms = []string{
	"restoration", "conservation", "monitoring", "community",
	"sustainable", "biodiversity", "carbon sequestration",
	"ecosystem services", "coastal protection", "climate change",
	"mrv", "verification", "baseline", "stakeholder",
}

var nameKeywords = []string{"mangrove", "restoration", "conservation", "blue carbon", "coastal", "marine"}

// ProjectAttributes are the declared fields the heuristic looks at.
type ProjectAttributes struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Location      string  `json:"location"`
	EcosystemType string  `json:"ecosystemType"`
	Area          float64 `json:"area"`
}

// ScoreResult is the output of Score.
type ScoreResult struct {
	Score          float64  `json:"score"`
	Confidence     float64  `json:"confidence"`
	RiskFactors    []string `json:"riskFactors"`
	Recommendation string   `json:"recommendation"`
}

// Score rates a project's suitability for blue carbon verification. It is a
// pure function of its input.
func Score(p ProjectAttributes) ScoreResult {
	risks := make([]string, 0, 3)

	score := baseScore
	score += ecosystemScores[p.EcosystemType]

	area, areaRisks := scoreArea(p.Area)
	score += area
	risks = append(risks, areaRisks...)

	loc, coastal := scoreLocation(p.Location)
	score += loc
	if !coastal {
		risks = append(risks, RiskLocation)
	}

	score += scoreDescription(p.Description)
	score += scoreName(p.Name)

	score = clamp(score, 0, 1)

	confidence := baseConfidence
	if len(risks) > 3 {
		confidence -= 0.1
	}
	confidence = clamp(confidence, 0.3, 1)

	rounded := round2(score)
	return ScoreResult{
		Score:          rounded,
		Confidence:     round2(confidence),
		RiskFactors:    risks,
		Recommendation: recommend(rounded, len(risks)),
	}
}

// scoreArea stacks the small-area penalties: below 50 ha both apply.
func scoreArea(area float64) (float64, []string) {
	switch {
	case area > 1000:
		return 0.10, nil
	case area < 50:
		return -0.15, []string{RiskSmallArea, RiskVerySmallArea}
	case area < 100:
		return -0.05, []string{RiskSmallArea}
	}
	return 0, nil
}

func scoreLocation(location string) (float64, bool) {
	lower := strings.ToLower(location)
	if !containsAny(lower, coastalRegions) {
		return -0.15, false
	}
	if containsAny(lower, priorityRegions) {
		return 0.15, true
	}
	return 0.10, true
}

func scoreDescription(description string) float64 {
	if utf8.RuneCountInString(description) < 50 {
		return -0.05
	}
	lower := strings.ToLower(description)
	matches := 0
	for _, term := range descriptionTerms {
		if strings.Contains(lower, term) {
			matches++
		}
	}
	return float64(matches) / float64(len(descriptionTerms)) * 0.10
}

func scoreName(name string) float64 {
	if utf8.RuneCountInString(name) < 10 {
		return -0.02
	}
	if containsAny(strings.ToLower(name), nameKeywords) {
		return 0.02
	}
	return 0
}

func recommend(score float64, riskCount int) string {
	switch {
	case score >= 0.8:
		return RecommendApprove
	case score >= 0.6:
		if riskCount <= 2 {
			return RecommendConditionalMinor
		}
		return RecommendConditionalDocuments
	case score >= 0.4:
		return RecommendReview
	default:
		return RecommendReject
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
