package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/school-system/grade-engine/internal/grading"
)

// MarkDistribution is the stored form of grading.MarkDistribution. Each
// component gets its own maximum and weightage column so the table can be
// queried and indexed without decoding JSON.
type MarkDistribution struct {
	BaseModel
	SchoolID     uuid.UUID `gorm:"type:char(36);not null;index:idx_distribution_scope" json:"school_id"`
	ClassID      string    `gorm:"type:varchar(64);not null;index:idx_distribution_scope" json:"class_id"`
	SubjectID    string    `gorm:"type:varchar(64);index:idx_distribution_scope" json:"subject_id"`
	AcademicYear string    `gorm:"type:varchar(20);not null;index:idx_distribution_scope" json:"academic_year"`
	Semester     string    `gorm:"type:varchar(20);index:idx_distribution_scope" json:"semester"`

	TheoryMax     int `gorm:"not null;default:0" json:"theory_max"`
	PracticalMax  int `gorm:"not null;default:0" json:"practical_max"`
	InternalMax   int `gorm:"not null;default:0" json:"internal_max"`
	ProjectMax    int `gorm:"not null;default:0" json:"project_max"`
	AssignmentMax int `gorm:"not null;default:0" json:"assignment_max"`
	AttendanceMax int `gorm:"not null;default:0" json:"attendance_max"`

	TheoryWeight     float64 `gorm:"type:double precision;not null;default:0" json:"theory_weightage"`
	PracticalWeight  float64 `gorm:"type:double precision;not null;default:0" json:"practical_weightage"`
	InternalWeight   float64 `gorm:"type:double precision;not null;default:0" json:"internal_weightage"`
	ProjectWeight    float64 `gorm:"type:double precision;not null;default:0" json:"project_weightage"`
	AssignmentWeight float64 `gorm:"type:double precision;not null;default:0" json:"assignment_weightage"`
	AttendanceWeight float64 `gorm:"type:double precision;not null;default:0" json:"attendance_weightage"`

	TotalMarks        int     `gorm:"not null" json:"total_marks"`
	GradeSystem       string  `gorm:"type:varchar(20);not null" json:"grade_system"`
	PassingPercentage float64 `gorm:"type:double precision;not null" json:"passing_percentage"`
	AllowGraceMarks   bool    `gorm:"default:false" json:"allow_grace_marks"`
	GraceMarksLimit   float64 `gorm:"type:double precision;default:0" json:"grace_marks_limit"`
	RoundingMethod    string  `gorm:"type:varchar(20);not null" json:"rounding_method"`

	RuleVersionHash string     `gorm:"type:varchar(64)" json:"rule_version_hash"`
	Version         int        `gorm:"not null;default:1" json:"version"`
	CreatedBy       *uuid.UUID `gorm:"type:char(36)" json:"created_by,omitempty"`
	UpdatedBy       *uuid.UUID `gorm:"type:char(36)" json:"updated_by,omitempty"`
}

type componentColumns struct {
	maximum *int
	weight  *float64
}

func (m *MarkDistribution) columns() map[grading.Component]componentColumns {
	return map[grading.Component]componentColumns{
		grading.Theory:     {&m.TheoryMax, &m.TheoryWeight},
		grading.Practical:  {&m.PracticalMax, &m.PracticalWeight},
		grading.Internal:   {&m.InternalMax, &m.InternalWeight},
		grading.Project:    {&m.ProjectMax, &m.ProjectWeight},
		grading.Assignment: {&m.AssignmentMax, &m.AssignmentWeight},
		grading.Attendance: {&m.AttendanceMax, &m.AttendanceWeight},
	}
}

// ToDistribution converts the row into the engine's configuration type.
// Zero columns are omitted so an unused component stays unused.
func (m *MarkDistribution) ToDistribution() grading.MarkDistribution {
	d := grading.MarkDistribution{
		ID:                m.ID.String(),
		ClassID:           m.ClassID,
		SubjectID:         m.SubjectID,
		AcademicYear:      m.AcademicYear,
		Semester:          m.Semester,
		Maxima:            map[grading.Component]int{},
		Weightages:        map[grading.Component]float64{},
		GradeSystem:       grading.GradeSystem(m.GradeSystem),
		PassingPercentage: m.PassingPercentage,
		AllowGraceMarks:   m.AllowGraceMarks,
		GraceMarksLimit:   m.GraceMarksLimit,
		RoundingMethod:    grading.RoundingMethod(m.RoundingMethod),
	}
	for c, cols := range m.columns() {
		if *cols.maximum != 0 {
			d.Maxima[c] = *cols.maximum
		}
		if *cols.weight != 0 {
			d.Weightages[c] = *cols.weight
		}
	}
	if m.TotalMarks != 0 {
		total := m.TotalMarks
		d.TotalMarks = &total
	}
	return d
}

// ApplyDistribution copies a validated configuration onto the row. Scope
// and ownership columns are left alone.
func (m *MarkDistribution) ApplyDistribution(vd grading.ValidatedDistribution) {
	d := vd.Distribution()
	for c, cols := range m.columns() {
		*cols.maximum = d.Maxima[c]
		*cols.weight = d.Weightages[c]
	}
	m.TotalMarks = vd.TotalMarks()
	m.GradeSystem = string(vd.GradeSystem())
	m.PassingPercentage = d.PassingPercentage
	m.AllowGraceMarks = d.AllowGraceMarks
	m.GraceMarksLimit = d.GraceMarksLimit
	m.RoundingMethod = string(vd.RoundingMethod())
	m.RuleVersionHash = vd.RuleVersionHash()
}

// DistributionScope identifies where a distribution applies. Empty SubjectID
// or Semester mean "all subjects" and "whole year".
type DistributionScope struct {
	SchoolID     uuid.UUID `json:"school_id"`
	ClassID      string    `json:"class_id"`
	SubjectID    string    `json:"subject_id"`
	AcademicYear string    `json:"academic_year"`
	Semester     string    `json:"semester"`
}

func (m *MarkDistribution) Scope() DistributionScope {
	return DistributionScope{
		SchoolID:     m.SchoolID,
		ClassID:      m.ClassID,
		SubjectID:    m.SubjectID,
		AcademicYear: m.AcademicYear,
		Semester:     m.Semester,
	}
}

// DistributionFilter narrows List. Zero fields are ignored.
type DistributionFilter struct {
	SchoolID     *uuid.UUID
	ClassID      string
	SubjectID    string
	AcademicYear string
	Semester     string
}

// StudentScoreSet holds one student's recorded scores for one distribution.
// A NULL column is an absent component, distinct from a recorded zero.
type StudentScoreSet struct {
	ID             uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	DistributionID uuid.UUID  `gorm:"type:char(36);not null;uniqueIndex:idx_score_distribution_student" json:"distribution_id"`
	StudentID      string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_score_distribution_student" json:"student_id"`
	Theory         *float64   `gorm:"type:double precision" json:"theory,omitempty"`
	Practical      *float64   `gorm:"type:double precision" json:"practical,omitempty"`
	Internal       *float64   `gorm:"type:double precision" json:"internal,omitempty"`
	Project        *float64   `gorm:"type:double precision" json:"project,omitempty"`
	Assignment     *float64   `gorm:"type:double precision" json:"assignment,omitempty"`
	Attendance     *float64   `gorm:"type:double precision" json:"attendance,omitempty"`
	EnteredBy      *uuid.UUID `gorm:"type:char(36)" json:"entered_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (s *StudentScoreSet) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *StudentScoreSet) fields() map[grading.Component]**float64 {
	return map[grading.Component]**float64{
		grading.Theory:     &s.Theory,
		grading.Practical:  &s.Practical,
		grading.Internal:   &s.Internal,
		grading.Project:    &s.Project,
		grading.Assignment: &s.Assignment,
		grading.Attendance: &s.Attendance,
	}
}

// ToScoreSet returns the present components only.
func (s *StudentScoreSet) ToScoreSet() grading.ScoreSet {
	scores := grading.ScoreSet{}
	for c, field := range s.fields() {
		if *field != nil {
			scores[c] = **field
		}
	}
	return scores
}

// SetScores replaces every component column with scores. Components missing
// from scores become NULL.
func (s *StudentScoreSet) SetScores(scores grading.ScoreSet) {
	for c, field := range s.fields() {
		if v, ok := scores[c]; ok {
			score := v
			*field = &score
		} else {
			*field = nil
		}
	}
}
