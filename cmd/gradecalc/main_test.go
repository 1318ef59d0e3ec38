package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/school-system/grade-engine/internal/grading"
)

const sample = `
distribution:
  class_id: class-9
  academic_year: "2026"
  maxima:
    theory: 100
    internal: 50
  weightages:
    theory: 70
    internal: 30
  grade_system: letter
  passing_percentage: 40
  rounding_method: round
scores:
  s-1:
    theory: 80
    internal: 40
  s-2:
    theory: 30
    internal: 10
`

func TestParseInput(t *testing.T) {
	in, err := parseInput(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, "class-9", in.Distribution.ClassID)
	assert.Equal(t, 100, in.Distribution.Maxima[grading.Theory])
	assert.Equal(t, 30.0, in.Distribution.Weightages[grading.Internal])
	assert.Equal(t, grading.RoundNearest, in.Distribution.RoundingMethod)
	assert.Equal(t, grading.ScoreSet{grading.Theory: 30, grading.Internal: 10}, in.Scores["s-2"])
}

func TestParseInputRejectsUnknownFieldsAndEmptyScores(t *testing.T) {
	_, err := parseInput(strings.NewReader("distribution:\n  class: x\nscores:\n  a: {theory: 1}\n"))
	assert.Error(t, err)

	_, err = parseInput(strings.NewReader("distribution:\n  class_id: x\n"))
	assert.Error(t, err)
}

func TestRunPrintsReport(t *testing.T) {
	in, err := parseInput(strings.NewReader(sample))
	require.NoError(t, err)

	var out bytes.Buffer
	code, err := run(context.Background(), in, 2, &out)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	var report grading.BatchReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 80.0, report.Outcomes["s-1"].Result.FinalPercentage)
	assert.Equal(t, "A", report.Outcomes["s-1"].Result.LetterGrade)
	assert.Equal(t, "F", report.Outcomes["s-2"].Result.LetterGrade)
}

func TestRunExitCodes(t *testing.T) {
	in, err := parseInput(strings.NewReader(sample))
	require.NoError(t, err)

	in.Scores["s-3"] = grading.ScoreSet{grading.Theory: 120, grading.Internal: 10}
	code, err := run(context.Background(), in, 1, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, exitIntegrity, code)

	in.Distribution.Weightages[grading.Internal] = 20
	var out bytes.Buffer
	code, err = run(context.Background(), in, 1, &out)
	assert.ErrorIs(t, err, grading.ErrConfiguration)
	assert.Equal(t, exitConfiguration, code)
	assert.Zero(t, out.Len())
}
