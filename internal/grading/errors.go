package grading

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches every *ConfigurationError via errors.Is.
	ErrConfiguration = errors.New("invalid mark distribution")
	// ErrScoreIntegrity matches every *ScoreIntegrityError via errors.Is.
	ErrScoreIntegrity = errors.New("score integrity violation")
)

// Reason identifies which validation rule a distribution broke.
type Reason string

const (
	ReasonUnknownComponent      Reason = "unknown component"
	ReasonNegativeMaximum       Reason = "negative maximum"
	ReasonTotalMismatch         Reason = "total marks mismatch"
	ReasonTotalNotPositive      Reason = "total marks must be positive"
	ReasonWeightageRange        Reason = "weightage out of range"
	ReasonWeightOnUnused        Reason = "weightage on unused component"
	ReasonWeightageSum          Reason = "weightage sum invalid"
	ReasonGraceLimitRange       Reason = "grace limit out of range"
	ReasonPassingRange          Reason = "passing percentage out of range"
	ReasonUnknownGradeSystem    Reason = "unknown grade system"
	ReasonUnknownRoundingMethod Reason = "unknown rounding method"
	ReasonNotValidated          Reason = "distribution not validated"
)

// ConfigurationError is returned by Validate. It is fatal to any computation
// against the offending distribution.
type ConfigurationError struct {
	Reason    Reason
	Component Component
	Detail    string
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrConfiguration, e.Reason)
	if e.Component != "" {
		msg += fmt.Sprintf(" (%s)", e.Component)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func configError(reason Reason, component Component, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Reason: reason, Component: component, Detail: fmt.Sprintf(format, args...)}
}

// ScoreIntegrityError reports a present score the distribution cannot accept.
// Scores are never clamped; the entry upstream is wrong.
type ScoreIntegrityError struct {
	Component Component `json:"component"`
	Score     float64   `json:"score"`
	Maximum   int       `json:"maximum"`
	Message   string    `json:"message"`
}

func (e *ScoreIntegrityError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrScoreIntegrity, e.Component, e.Message)
}

func (e *ScoreIntegrityError) Is(target error) bool { return target == ErrScoreIntegrity }
