package grading

import (
	"crypto/sha256"
	"fmt"
	"math"
	"strings"
)

// Component is one graded category of a mark distribution.
type Component string

const (
	Theory     Component = "theory"
	Practical  Component = "practical"
	Internal   Component = "internal"
	Project    Component = "project"
	Assignment Component = "assignment"
	Attendance Component = "attendance"
)

// Components lists every component in canonical order. Results and reasons
// always iterate in this order so output is deterministic.
var Components = []Component{Theory, Practical, Internal, Project, Assignment, Attendance}

func (c Component) Valid() bool {
	for _, known := range Components {
		if c == known {
			return true
		}
	}
	return false
}

type GradeSystem string

const (
	GradeSystemPercentage GradeSystem = "percentage"
	GradeSystemGPA        GradeSystem = "gpa"
	GradeSystemLetter     GradeSystem = "letter"
)

type RoundingMethod string

const (
	RoundNearest  RoundingMethod = "round"
	RoundCeil     RoundingMethod = "ceil"
	RoundFloor    RoundingMethod = "floor"
	RoundTruncate RoundingMethod = "truncate"
)

// Mode is the arithmetic path chosen for a validated distribution.
type Mode string

const (
	ModeWeighted   Mode = "weighted"
	ModeUnweighted Mode = "unweighted"
)

const (
	MaxGraceMarksLimit = 50
	weightTolerance    = 1e-6
)

// MarkDistribution is the configuration for one class/subject/year/semester
// scope. An empty SubjectID applies to every subject of the class and an
// empty Semester to the whole academic year.
type MarkDistribution struct {
	ID           string `json:"id,omitempty" yaml:"id"`
	ClassID      string `json:"class_id" yaml:"class_id"`
	SubjectID    string `json:"subject_id,omitempty" yaml:"subject_id"`
	AcademicYear string `json:"academic_year" yaml:"academic_year"`
	Semester     string `json:"semester,omitempty" yaml:"semester"`

	Maxima     map[Component]int     `json:"maxima" yaml:"maxima"`
	Weightages map[Component]float64 `json:"weightages" yaml:"weightages"`
	// TotalMarks is optional. When nil it is derived from Maxima.
	TotalMarks *int `json:"total_marks,omitempty" yaml:"total_marks"`

	GradeSystem       GradeSystem    `json:"grade_system" yaml:"grade_system"`
	PassingPercentage float64        `json:"passing_percentage" yaml:"passing_percentage"`
	AllowGraceMarks   bool           `json:"allow_grace_marks" yaml:"allow_grace_marks"`
	GraceMarksLimit   float64        `json:"grace_marks_limit" yaml:"grace_marks_limit"`
	RoundingMethod    RoundingMethod `json:"rounding_method" yaml:"rounding_method"`
}

// ValidatedDistribution is a MarkDistribution that passed Validate. It can
// only be produced by Validate and never changes after construction.
type ValidatedDistribution struct {
	d          MarkDistribution
	totalMarks int
	mode       Mode
	hash       string
}

func (v ValidatedDistribution) ID() string { return v.d.ID }
func (v ValidatedDistribution) TotalMarks() int { return v.totalMarks }
func (v ValidatedDistribution) Mode() Mode { return v.mode }
func (v ValidatedDistribution) GradeSystem() GradeSystem { return v.d.GradeSystem }
func (v ValidatedDistribution) PassingPercentage() float64 { return v.d.PassingPercentage }
func (v ValidatedDistribution) RoundingMethod() RoundingMethod { return v.d.RoundingMethod }

// checkValidated rejects values that did not come from Validate, such as the
// zero ValidatedDistribution.
func (v ValidatedDistribution) checkValidated() error {
	if v.mode == "" {
		return configError(ReasonNotValidated, "", "distribution was not produced by Validate")
	}
	return nil
}

// RuleVersionHash fingerprints every field that influences a computation.
func (v ValidatedDistribution) RuleVersionHash() string { return v.hash }

// GraceLimit returns the effective grace limit, zero when grace is disabled.
func (v ValidatedDistribution) GraceLimit() float64 {
	if !v.d.AllowGraceMarks {
		return 0
	}
	return v.d.GraceMarksLimit
}

func (v ValidatedDistribution) Maximum(c Component) int { return v.d.Maxima[c] }

func (v ValidatedDistribution) Weightage(c Component) float64 { return v.d.Weightages[c] }

// ActiveComponents returns the components with a non-zero maximum.
func (v ValidatedDistribution) ActiveComponents() []Component {
	active := make([]Component, 0, len(Components))
	for _, c := range Components {
		if v.d.Maxima[c] > 0 {
			active = append(active, c)
		}
	}
	return active
}

// Distribution returns a copy of the underlying configuration.
func (v ValidatedDistribution) Distribution() MarkDistribution {
	return v.d.clone()
}

func (d MarkDistribution) clone() MarkDistribution {
	out := d
	out.Maxima = make(map[Component]int, len(d.Maxima))
	for k, val := range d.Maxima {
		out.Maxima[k] = val
	}
	out.Weightages = make(map[Component]float64, len(d.Weightages))
	for k, val := range d.Weightages {
		out.Weightages[k] = val
	}
	if d.TotalMarks != nil {
		total := *d.TotalMarks
		out.TotalMarks = &total
	}
	return out
}

func ruleVersionHash(d MarkDistribution, total int) string {
	var b strings.Builder
	for _, c := range Components {
		fmt.Fprintf(&b, "%s=%d/%s;", c, d.Maxima[c], formatNumber(d.Weightages[c]))
	}
	fmt.Fprintf(&b, "total=%d;system=%s;pass=%s;grace=%t/%s;rounding=%s",
		total, d.GradeSystem, formatNumber(d.PassingPercentage),
		d.AllowGraceMarks, formatNumber(d.GraceMarksLimit), d.RoundingMethod)
	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", hash[:8])
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%g", v)
}
