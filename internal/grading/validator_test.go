package grading

import (
	"errors"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*MarkDistribution)
		reason Reason
	}{
		{"Negative maximum", func(d *MarkDistribution) { d.Maxima[Internal] = -5 }, ReasonNegativeMaximum},
		{"Unknown maximum key", func(d *MarkDistribution) { d.Maxima["viva"] = 10 }, ReasonUnknownComponent},
		{"Declared total drift", func(d *MarkDistribution) { d.TotalMarks = intPtr(90) }, ReasonTotalMismatch},
		{"Zero total", func(d *MarkDistribution) {
			d.Maxima = map[Component]int{}
			d.Weightages = nil
		}, ReasonTotalNotPositive},
		{"Unknown weightage key", func(d *MarkDistribution) { d.Weightages["viva"] = 0 }, ReasonUnknownComponent},
		{"Weightage above 100", func(d *MarkDistribution) { d.Weightages[Theory] = 120 }, ReasonWeightageRange},
		{"Negative weightage", func(d *MarkDistribution) { d.Weightages[Practical] = -30 }, ReasonWeightageRange},
		{"Weight on unused component", func(d *MarkDistribution) { d.Weightages[Project] = 10 }, ReasonWeightOnUnused},
		{"Weights sum to 90", func(d *MarkDistribution) { d.Weightages[Practical] = 20 }, ReasonWeightageSum},
		{"Grace limit above 50", func(d *MarkDistribution) {
			d.AllowGraceMarks = true
			d.GraceMarksLimit = 51
		}, ReasonGraceLimitRange},
		{"Negative grace limit", func(d *MarkDistribution) {
			d.AllowGraceMarks = true
			d.GraceMarksLimit = -1
		}, ReasonGraceLimitRange},
		{"Passing above 100", func(d *MarkDistribution) { d.PassingPercentage = 101 }, ReasonPassingRange},
		{"Negative passing", func(d *MarkDistribution) { d.PassingPercentage = -1 }, ReasonPassingRange},
		{"Unknown grade system", func(d *MarkDistribution) { d.GradeSystem = "cgpa" }, ReasonUnknownGradeSystem},
		{"Unknown rounding", func(d *MarkDistribution) { d.RoundingMethod = "bankers" }, ReasonUnknownRoundingMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := theoryPractical(35, RoundNearest, false, 0)
			tt.mutate(&d)

			_, err := Validate(d)
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("Expected configuration error, got %v", err)
			}
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Expected *ConfigurationError, got %T", err)
			}
			if cfgErr.Reason != tt.reason {
				t.Errorf("Expected reason %q, got %q (%v)", tt.reason, cfgErr.Reason, err)
			}
		})
	}
}

func TestValidateCheckOrder(t *testing.T) {
	d := theoryPractical(150, RoundNearest, true, 80)
	d.Weightages[Practical] = 10

	_, err := Validate(d)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Reason != ReasonWeightageSum {
		t.Fatalf("Expected the weightage sum to be reported first, got %v", err)
	}
}

func TestValidateAccepts(t *testing.T) {
	t.Run("Weighted", func(t *testing.T) {
		d := theoryPractical(35, "", false, 0)
		d.TotalMarks = intPtr(100)
		vd, err := Validate(d)
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if vd.Mode() != ModeWeighted || vd.TotalMarks() != 100 {
			t.Errorf("Expected weighted/100, got %s/%d", vd.Mode(), vd.TotalMarks())
		}
		if vd.RoundingMethod() != RoundNearest || vd.GradeSystem() != GradeSystemPercentage {
			t.Errorf("Expected defaults round/percentage, got %s/%s", vd.RoundingMethod(), vd.GradeSystem())
		}
	})

	t.Run("Unweighted", func(t *testing.T) {
		vd, err := Validate(MarkDistribution{Maxima: map[Component]int{Theory: 60, Practical: 40}})
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if vd.Mode() != ModeUnweighted {
			t.Errorf("Expected unweighted, got %s", vd.Mode())
		}
	})

	t.Run("Fractional weightages", func(t *testing.T) {
		_, err := Validate(MarkDistribution{
			Maxima:     map[Component]int{Theory: 60, Internal: 20, Attendance: 20},
			Weightages: map[Component]float64{Theory: 33.3, Internal: 33.3, Attendance: 33.4},
		})
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
	})

	t.Run("Grace limit ignored when disabled", func(t *testing.T) {
		vd, err := Validate(theoryPractical(35, RoundNearest, false, 99))
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if vd.GraceLimit() != 0 {
			t.Errorf("Expected an effective grace limit of 0, got %v", vd.GraceLimit())
		}
	})
}

func TestValidatedDistributionIsImmutable(t *testing.T) {
	d := theoryPractical(35, RoundNearest, false, 0)
	vd, err := Validate(d)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	hash := vd.RuleVersionHash()

	d.Maxima[Theory] = 10
	d.Weightages[Theory] = 0
	copied := vd.Distribution()
	copied.Maxima[Practical] = 1

	if vd.Maximum(Theory) != 70 || vd.Weightage(Theory) != 70 || vd.Maximum(Practical) != 30 {
		t.Errorf("Expected validated distribution to be unaffected by caller edits")
	}
	if vd.RuleVersionHash() != hash {
		t.Errorf("Expected hash to stay stable")
	}
}
