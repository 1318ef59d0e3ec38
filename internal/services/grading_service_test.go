package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/school-system/grade-engine/internal/grading"
	"github.com/school-system/grade-engine/internal/models"
)

type gradingFixture struct {
	*scoreFixture
	svc *GradingService
}

func newGradingFixture(t *testing.T) *gradingFixture {
	t.Helper()
	sf := newScoreFixture(t)
	return &gradingFixture{
		scoreFixture: sf,
		svc:          NewGradingService(sf.distributions.svc, sf.repo, sf.distributions.metrics, nil, zap.NewNop(), 2),
	}
}

func (f *gradingFixture) store(studentID string, scores grading.ScoreSet) {
	row := models.StudentScoreSet{DistributionID: f.distribution.ID, StudentID: studentID}
	row.SetScores(scores)
	f.repo.put(row)
}

func TestGradingServiceComputeStudent(t *testing.T) {
	f := newGradingFixture(t)
	// 64/80 * 70 + 15/20 * 30 = 56 + 22.5
	f.store("stu-1", grading.ScoreSet{grading.Theory: 64, grading.Practical: 15})

	grade, err := f.svc.ComputeStudent(context.Background(), f.actor, f.distribution.ID, "stu-1")
	require.NoError(t, err)

	assert.Equal(t, f.distribution.ID, grade.DistributionID)
	assert.Equal(t, 1, grade.Version)
	assert.InDelta(t, 78.5, grade.Result.RawWeightedPercentage, 1e-9)
	assert.Equal(t, 79.0, grade.Result.FinalPercentage)
	assert.True(t, grade.Result.Passed)
	assert.Equal(t, f.distribution.RuleVersionHash, grade.Result.RuleVersionHash)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.distributions.metrics.gradeOutcomes.WithLabelValues("passed")))
}

func TestGradingServiceComputeStudentIntegrityError(t *testing.T) {
	f := newGradingFixture(t)
	f.store("stu-1", grading.ScoreSet{grading.Theory: 81})

	_, err := f.svc.ComputeStudent(context.Background(), f.actor, f.distribution.ID, "stu-1")

	var integrity *grading.ScoreIntegrityError
	require.True(t, errors.As(err, &integrity))
	assert.Equal(t, grading.Theory, integrity.Component)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.distributions.metrics.gradeOutcomes.WithLabelValues("errored")))
}

func TestGradingServiceComputeStudentMissingScores(t *testing.T) {
	f := newGradingFixture(t)

	_, err := f.svc.ComputeStudent(context.Background(), f.actor, f.distribution.ID, "ghost")
	assert.ErrorIs(t, err, ErrScoreSetNotFound)

	_, err = f.svc.ComputeStudent(context.Background(), f.actor, uuid.New(), "ghost")
	assert.ErrorIs(t, err, ErrDistributionNotFound)
}

func TestGradingServiceComputeBatch(t *testing.T) {
	f := newGradingFixture(t)
	f.store("pass", grading.ScoreSet{grading.Theory: 64, grading.Practical: 15})
	f.store("fail", grading.ScoreSet{grading.Theory: 10, grading.Practical: 2})
	f.store("partial", grading.ScoreSet{grading.Theory: 80})
	f.store("broken", grading.ScoreSet{grading.Practical: 25})

	report, err := f.svc.ComputeBatch(context.Background(), f.actor, f.distribution.ID)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Passed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Errored)
	assert.Equal(t, 1, report.Incomplete)
	assert.Equal(t, f.distribution.RuleVersionHash, report.RuleVersionHash)
	require.NotNil(t, report.Outcomes["broken"].Error)
	assert.Equal(t, []grading.Component{grading.Practical}, report.Outcomes["partial"].Result.MissingComponents)
}

func TestGradingServiceComputeBatchCancelled(t *testing.T) {
	f := newGradingFixture(t)
	f.store("a", grading.ScoreSet{grading.Theory: 40})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := f.svc.ComputeBatch(ctx, f.actor, f.distribution.ID)

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, []string{"a"}, report.Skipped)
}

func TestGradingServiceComputeAdhoc(t *testing.T) {
	f := newGradingFixture(t)

	report, err := f.svc.ComputeAdhoc(context.Background(), AdhocRequest{
		Distribution: grading.MarkDistribution{
			Maxima:            map[grading.Component]int{grading.Theory: 70, grading.Internal: 30},
			GradeSystem:       grading.GradeSystemLetter,
			PassingPercentage: 40,
		},
		Scores: map[string]grading.ScoreSet{
			"x": {grading.Theory: 49, grading.Internal: 21},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, report.Outcomes["x"].Result)
	assert.Equal(t, grading.ModeUnweighted, report.Outcomes["x"].Result.Mode)
	assert.Equal(t, "B+", report.Outcomes["x"].Result.LetterGrade)
}

func TestGradingServiceComputeAdhocRejections(t *testing.T) {
	f := newGradingFixture(t)

	_, err := f.svc.ComputeAdhoc(context.Background(), AdhocRequest{
		Distribution: grading.MarkDistribution{Maxima: map[grading.Component]int{grading.Theory: 100}},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.ComputeAdhoc(context.Background(), AdhocRequest{
		Distribution: grading.MarkDistribution{Maxima: map[grading.Component]int{grading.Theory: -5}},
		Scores:       map[string]grading.ScoreSet{"x": {}},
	})
	var cfgErr *grading.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, grading.ReasonNegativeMaximum, cfgErr.Reason)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.distributions.metrics.configRejections.WithLabelValues(string(grading.ReasonNegativeMaximum))))
}
