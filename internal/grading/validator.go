package grading

import (
	"math"
	"sort"
)

// Validate checks a distribution for internal consistency and returns the
// only value the calculator accepts. Rules run in a fixed order and the first
// failure is reported.
func Validate(d MarkDistribution) (ValidatedDistribution, error) {
	if err := checkMaxima(d.Maxima); err != nil {
		return ValidatedDistribution{}, err
	}

	total := 0
	for _, c := range Components {
		total += d.Maxima[c]
	}
	if d.TotalMarks != nil && *d.TotalMarks != total {
		return ValidatedDistribution{}, configError(ReasonTotalMismatch, "", "declared %d, components sum to %d", *d.TotalMarks, total)
	}
	if total <= 0 {
		return ValidatedDistribution{}, configError(ReasonTotalNotPositive, "", "components sum to %d", total)
	}

	for _, c := range sortedWeightKeys(d.Weightages) {
		if !c.Valid() {
			return ValidatedDistribution{}, configError(ReasonUnknownComponent, c, "weightage for unknown component")
		}
	}
	sum := 0.0
	for _, c := range Components {
		w := d.Weightages[c]
		if math.IsNaN(w) || w < 0 || w > 100 {
			return ValidatedDistribution{}, configError(ReasonWeightageRange, c, "got %v", w)
		}
		if d.Maxima[c] == 0 {
			if w != 0 {
				return ValidatedDistribution{}, configError(ReasonWeightOnUnused, c, "got %v", w)
			}
			continue
		}
		sum += w
	}
	mode := ModeWeighted
	switch {
	case math.Abs(sum-100) <= weightTolerance:
	case sum == 0:
		mode = ModeUnweighted
	default:
		return ValidatedDistribution{}, configError(ReasonWeightageSum, "", "weightages sum to %v, want 100 or 0", sum)
	}

	if d.AllowGraceMarks && (math.IsNaN(d.GraceMarksLimit) || d.GraceMarksLimit < 0 || d.GraceMarksLimit > MaxGraceMarksLimit) {
		return ValidatedDistribution{}, configError(ReasonGraceLimitRange, "", "got %v, want 0-%d", d.GraceMarksLimit, MaxGraceMarksLimit)
	}
	if math.IsNaN(d.PassingPercentage) || d.PassingPercentage < 0 || d.PassingPercentage > 100 {
		return ValidatedDistribution{}, configError(ReasonPassingRange, "", "got %v", d.PassingPercentage)
	}

	normalized := d.clone()
	switch normalized.GradeSystem {
	case "":
		normalized.GradeSystem = GradeSystemPercentage
	case GradeSystemPercentage, GradeSystemGPA, GradeSystemLetter:
	default:
		return ValidatedDistribution{}, configError(ReasonUnknownGradeSystem, "", "got %q", d.GradeSystem)
	}
	switch normalized.RoundingMethod {
	case "":
		normalized.RoundingMethod = RoundNearest
	case RoundNearest, RoundCeil, RoundFloor, RoundTruncate:
	default:
		return ValidatedDistribution{}, configError(ReasonUnknownRoundingMethod, "", "got %q", d.RoundingMethod)
	}
	normalized.TotalMarks = &total

	return ValidatedDistribution{
		d:          normalized,
		totalMarks: total,
		mode:       mode,
		hash:       ruleVersionHash(normalized, total),
	}, nil
}

func checkMaxima(maxima map[Component]int) error {
	keys := make([]Component, 0, len(maxima))
	for c := range maxima {
		keys = append(keys, c)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, c := range keys {
		if !c.Valid() {
			return configError(ReasonUnknownComponent, c, "maximum for unknown component")
		}
	}
	for _, c := range Components {
		if maxima[c] < 0 {
			return configError(ReasonNegativeMaximum, c, "got %d", maxima[c])
		}
	}
	return nil
}

func sortedWeightKeys(weights map[Component]float64) []Component {
	keys := make([]Component, 0, len(weights))
	for c := range weights {
		keys = append(keys, c)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
