package grading

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// ScoreSet holds one student's recorded scores. A component missing from the
// map is absent, which is not the same as a recorded zero.
type ScoreSet map[Component]float64

// GradeResult holds computed grade information
type GradeResult struct {
	Mode                  Mode        `json:"mode"`
	RawWeightedPercentage float64     `json:"raw_weighted_percentage"`
	RoundedPercentage     float64     `json:"rounded_percentage"`
	GraceApplied          bool        `json:"grace_applied"`
	GraceAmount           float64     `json:"grace_amount"`
	FinalPercentage       float64     `json:"final_percentage"`
	LetterGrade           string      `json:"letter_grade"`
	GradePoint            float64     `json:"grade_point"`
	DisplayGrade          string      `json:"display_grade"`
	Passed                bool        `json:"passed"`
	MissingComponents     []Component `json:"missing_components"`
	ComputationReason     string      `json:"computation_reason"`
	RuleVersionHash       string      `json:"rule_version_hash"`
}

// Incomplete reports whether expected components were absent from the score set.
func (r GradeResult) Incomplete() bool { return len(r.MissingComponents) > 0 }

// Compute grades one student's scores against a validated distribution.
// Absent components count as zero and are listed in MissingComponents; a
// present score outside its component's range is a *ScoreIntegrityError.
func Compute(vd ValidatedDistribution, scores ScoreSet) (GradeResult, error) {
	if err := vd.checkValidated(); err != nil {
		return GradeResult{}, err
	}
	if err := checkScores(vd, scores); err != nil {
		return GradeResult{}, err
	}

	missing := []Component{}
	parts := make([]string, 0, len(Components))
	raw := 0.0
	obtained := 0.0
	for _, c := range vd.ActiveComponents() {
		maximum := float64(vd.Maximum(c))
		score, ok := scores[c]
		if !ok {
			missing = append(missing, c)
		}
		switch vd.Mode() {
		case ModeWeighted:
			w := vd.Weightage(c)
			contribution := score * w / maximum
			raw += contribution
			parts = append(parts, fmt.Sprintf("%s: %s/%.0f (%s%%) = %.2f", c, formatScore(score, ok), maximum, formatNumber(w), contribution))
		default:
			obtained += score
			parts = append(parts, fmt.Sprintf("%s: %s/%.0f", c, formatScore(score, ok), maximum))
		}
	}
	if vd.Mode() == ModeUnweighted {
		raw = obtained / float64(vd.TotalMarks()) * 100
		parts = append(parts, fmt.Sprintf("sum %.2f/%d", obtained, vd.TotalMarks()))
	}

	rounded := ApplyRounding(vd.RoundingMethod(), raw)
	passing := vd.PassingPercentage()
	grace := graceFor(rounded, passing, vd.GraceLimit())
	final := clamp(rounded+grace, 0, 100)
	letter := LetterGrade(final, passing)
	passed := final >= passing

	result := GradeResult{
		Mode:                  vd.Mode(),
		RawWeightedPercentage: raw,
		RoundedPercentage:     rounded,
		GraceApplied:          grace > 0,
		GraceAmount:           grace,
		FinalPercentage:       final,
		LetterGrade:           letter,
		GradePoint:            GradePoint(letter),
		Passed:                passed,
		MissingComponents:     missing,
		RuleVersionHash:       vd.RuleVersionHash(),
	}
	result.DisplayGrade = displayGrade(vd.GradeSystem(), result)

	reason := fmt.Sprintf("%s, Raw: %.4f → %s %s", strings.Join(parts, ", "), raw, vd.RoundingMethod(), formatNumber(rounded))
	if result.GraceApplied {
		reason += fmt.Sprintf(" + grace %s", formatNumber(grace))
	}
	reason += fmt.Sprintf(" → Final %s, Grade %s", formatNumber(final), letter)
	if len(missing) > 0 {
		names := make([]string, len(missing))
		for i, c := range missing {
			names[i] = string(c)
		}
		reason += fmt.Sprintf(" (missing: %s)", strings.Join(names, ", "))
	}
	result.ComputationReason = reason

	return result, nil
}

func checkScores(vd ValidatedDistribution, scores ScoreSet) error {
	keys := make([]Component, 0, len(scores))
	for c := range scores {
		keys = append(keys, c)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, c := range keys {
		score := scores[c]
		maximum := vd.Maximum(c)
		integrity := &ScoreIntegrityError{Component: c, Score: score, Maximum: maximum}
		switch {
		case !c.Valid():
			integrity.Message = "is not a known component"
		case math.IsNaN(score) || math.IsInf(score, 0):
			integrity.Message = "score is not a finite number"
		case maximum == 0:
			integrity.Message = "has a score but the distribution does not use it"
		case score < 0:
			integrity.Message = fmt.Sprintf("score %s is negative", formatNumber(score))
		case score > float64(maximum):
			integrity.Message = fmt.Sprintf("score %s exceeds maximum %d", formatNumber(score), maximum)
		default:
			continue
		}
		return integrity
	}
	return nil
}

// graceFor returns the smallest adjustment that lifts rounded to passing, or
// zero when the student already passes or the shortfall exceeds limit.
func graceFor(rounded, passing, limit float64) float64 {
	shortfall := passing - rounded
	if shortfall <= 0 || shortfall > limit {
		return 0
	}
	return shortfall
}

// ApplyRounding converts a raw percentage to a whole number using method.
// Values within a hair of an integer snap to it first so float noise such as
// 48.99999999999999 does not floor to 48.
func ApplyRounding(method RoundingMethod, v float64) float64 {
	if nearest := math.Round(v); math.Abs(v-nearest) < 1e-9 {
		v = nearest
	}
	switch method {
	case RoundCeil:
		return math.Ceil(v)
	case RoundFloor:
		return math.Floor(v)
	case RoundTruncate:
		return math.Trunc(v)
	default:
		return math.Round(v)
	}
}

// LetterGrade maps a final percentage to the fixed letter scale. Below 40 the
// passing threshold decides between D and F.
func LetterGrade(final, passing float64) string {
	switch {
	case final >= 90:
		return "A+"
	case final >= 80:
		return "A"
	case final >= 70:
		return "B+"
	case final >= 60:
		return "B"
	case final >= 50:
		return "C+"
	case final >= 40:
		return "C"
	case final >= passing:
		return "D"
	default:
		return "F"
	}
}

// GradePoint converts a letter to the 10-point scale used by the gpa view.
func GradePoint(letter string) float64 {
	switch letter {
	case "A+":
		return 10
	case "A":
		return 9
	case "B+":
		return 8
	case "B":
		return 7
	case "C+":
		return 6
	case "C":
		return 5
	case "D":
		return 4
	default:
		return 0
	}
}

func displayGrade(system GradeSystem, r GradeResult) string {
	switch system {
	case GradeSystemGPA:
		return fmt.Sprintf("%.1f", r.GradePoint)
	case GradeSystemLetter:
		return r.LetterGrade
	default:
		return formatNumber(r.FinalPercentage) + "%"
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func formatScore(score float64, present bool) string {
	if !present {
		return "absent"
	}
	return formatNumber(score)
}
