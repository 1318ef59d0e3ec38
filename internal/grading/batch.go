package grading

import (
	"context"
	"errors"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// StudentOutcome is exactly one of a computed result or an integrity error.
type StudentOutcome struct {
	Result *GradeResult         `json:"result,omitempty"`
	Error  *ScoreIntegrityError `json:"error,omitempty"`
}

// BatchReport aggregates one batch run. Passed and Failed only count students
// that produced a result; Errored students are in neither.
type BatchReport struct {
	DistributionID  string                    `json:"distribution_id,omitempty"`
	RuleVersionHash string                    `json:"rule_version_hash"`
	Total           int                       `json:"total"`
	Incomplete      int                       `json:"incomplete"`
	Errored         int                       `json:"errored"`
	Passed          int                       `json:"passed"`
	Failed          int                       `json:"failed"`
	Skipped         []string                  `json:"skipped,omitempty"`
	Outcomes        map[string]StudentOutcome `json:"outcomes"`
}

type batchConfig struct {
	concurrency int
}

type BatchOption func(*batchConfig)

// WithConcurrency bounds the number of students graded at once. Values below
// one fall back to the default of GOMAXPROCS.
func WithConcurrency(n int) BatchOption {
	return func(c *batchConfig) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// ComputeBatch grades every student in scoreSets independently. An integrity
// error for one student is recorded in that student's outcome and never
// affects the others.
//
// When ctx is cancelled no further students are scheduled; students already
// running finish. The partial report is returned together with ctx.Err(), and
// the students that never ran are listed in Skipped.
func ComputeBatch(ctx context.Context, vd ValidatedDistribution, scoreSets map[string]ScoreSet, opts ...BatchOption) (*BatchReport, error) {
	if err := vd.checkValidated(); err != nil {
		return nil, err
	}

	cfg := batchConfig{concurrency: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&cfg)
	}

	studentIDs := make([]string, 0, len(scoreSets))
	for id := range scoreSets {
		studentIDs = append(studentIDs, id)
	}
	sort.Strings(studentIDs)

	outcomes := make([]*StudentOutcome, len(studentIDs))
	var g errgroup.Group
	g.SetLimit(cfg.concurrency)

	var cancelErr error
	for i, id := range studentIDs {
		if err := ctx.Err(); err != nil {
			cancelErr = err
			break
		}
		i, scores := i, scoreSets[id]
		// g.Go blocks while the pool is full; a student whose slot only
		// frees up after cancellation is left unscheduled.
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			outcomes[i] = gradeStudent(vd, scores)
			return nil
		})
	}
	_ = g.Wait()

	report := &BatchReport{
		DistributionID:  vd.ID(),
		RuleVersionHash: vd.RuleVersionHash(),
		Outcomes:        make(map[string]StudentOutcome, len(studentIDs)),
	}
	for i, id := range studentIDs {
		outcome := outcomes[i]
		if outcome == nil {
			report.Skipped = append(report.Skipped, id)
			continue
		}
		report.Total++
		report.Outcomes[id] = *outcome
		if outcome.Error != nil {
			report.Errored++
			continue
		}
		if outcome.Result.Incomplete() {
			report.Incomplete++
		}
		if outcome.Result.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	if len(report.Skipped) > 0 && cancelErr == nil {
		cancelErr = ctx.Err()
	}
	return report, cancelErr
}

var gradeStudent = gradeOne

func gradeOne(vd ValidatedDistribution, scores ScoreSet) *StudentOutcome {
	result, err := Compute(vd, scores)
	if err != nil {
		var integrity *ScoreIntegrityError
		if errors.As(err, &integrity) {
			return &StudentOutcome{Error: integrity}
		}
		return &StudentOutcome{Error: &ScoreIntegrityError{Message: err.Error()}}
	}
	return &StudentOutcome{Result: &result}
}
