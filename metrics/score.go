package metrics

import (
	"strconv"
	"strings"
)

// Weight is one term of the overall score.
type Weight struct {
	Metric string  `json:"metric"`
	Weight float64 `json:"weight"`
}

// Weights is the scoring formula, in reporting order.
var Weights = []Weight{
	{"attention", 0.25},
	{"confidence", 0.15},
	{"posture", 0.2},
	{"engagement", 0.2},
	{"movement", 0.1},
	{"eye_contact", 0.1},
}

const (
	AbsentPenalty  = 0.3
	CrowdedPenalty = 0.8
	// CrowdedAbove is the average person count beyond which the crowded
	// penalty applies.
	CrowdedAbove = 1.5
)

// NoteNoVideo is reported when the session had no video to analyse.
const NoteNoVideo = "No video analysis performed."

type SessionAnalysis struct {
	AttentionScore         float64 `json:"attention_score"`
	ConfidenceScore        float64 `json:"confidence_score"`
	PostureScore           float64 `json:"posture_score"`
	EngagementScore        float64 `json:"engagement_score"`
	MovementStabilityScore float64 `json:"movement_stability_score"`
	EyeContactQualityScore float64 `json:"eye_contact_quality_score"`
	OverallScore           float64 `json:"overall_score"`
	FramesAnalyzed         int     `json:"frames_analyzed"`
	AvgPersonCount         float64 `json:"avg_person_count"`
	PresencePenalty        float64 `json:"presence_penalty"`
	Note                   string  `json:"note,omitempty"`
}

type SessionScore struct {
	SessionAnalysis SessionAnalysis   `json:"session_analysis"`
	ScoringFormula  map[string]string `json:"scoring_formula"`
}

type FormulaInfo struct {
	Formula         map[string]string  `json:"formula"`
	Weights         []Weight           `json:"weights"`
	PresencePenalty map[string]float64 `json:"presence_penalty"`
	Metrics         []string           `json:"metrics"`
}

// Formula describes the weights used by Aggregate.
func Formula() FormulaInfo {
	terms := make([]string, 0, len(Weights))
	names := make([]string, 0, len(Weights))
	for _, w := range Weights {
		terms = append(terms, strconv.FormatFloat(w.Weight, 'g', -1, 64)+" × "+w.Metric)
		names = append(names, w.Metric)
	}
	weights := make([]Weight, len(Weights))
	copy(weights, Weights)
	return FormulaInfo{
		Formula: map[string]string{"overall_score": strings.Join(terms, " + ")},
		Weights: weights,
		PresencePenalty: map[string]float64{
			"no_person":       AbsentPenalty,
			"multiple_people": CrowdedPenalty,
			"single_person":   1.0,
		},
		Metrics: names,
	}
}

// PresencePenalty dampens the score when nobody, or a crowd, is in view.
func PresencePenalty(avgPersonCount float64) float64 {
	switch {
	case avgPersonCount == 0:
		return AbsentPenalty
	case avgPersonCount > CrowdedAbove:
		return CrowdedPenalty
	default:
		return 1.0
	}
}

// Aggregate averages per-frame metrics into a session score. An empty input
// yields the zero score.
func Aggregate(frames []FrameMetrics) SessionScore {
	if len(frames) == 0 {
		return EmptyScore("No frames analyzed.")
	}

	var att, conf, post, eng, move, eye, persons float64
	for _, f := range frames {
		att += f.Attention
		conf += f.Confidence
		post += f.Posture
		eng += f.Engagement
		move += f.MovementStability
		eye += f.EyeContactQuality
		persons += float64(f.PersonCount)
	}
	n := float64(len(frames))
	att, conf, post, eng, move, eye, persons = att/n, conf/n, post/n, eng/n, move/n, eye/n, persons/n

	penalty := PresencePenalty(persons)
	values := map[string]float64{
		"attention":   att,
		"confidence":  conf,
		"posture":     post,
		"engagement":  eng,
		"movement":    move,
		"eye_contact": eye,
	}
	base := 0.0
	for _, w := range Weights {
		base += values[w.Metric] * w.Weight
	}

	return SessionScore{
		SessionAnalysis: SessionAnalysis{
			AttentionScore:         round2(att),
			ConfidenceScore:        round2(conf),
			PostureScore:           round2(post),
			EngagementScore:        round2(eng),
			MovementStabilityScore: round2(move),
			EyeContactQualityScore: round2(eye),
			OverallScore:           round2(base * penalty),
			FramesAnalyzed:         len(frames),
			AvgPersonCount:         round2(persons),
			PresencePenalty:        penalty,
		},
		ScoringFormula: Formula().Formula,
	}
}

// EmptyScore is the all-zero score used when no frames were analysed.
func EmptyScore(note string) SessionScore {
	return SessionScore{
		SessionAnalysis: SessionAnalysis{Note: note},
		ScoringFormula:  Formula().Formula,
	}
}
