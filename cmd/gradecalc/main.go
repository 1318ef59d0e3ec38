// Command gradecalc grades a YAML file of scores against the distribution in
// the same file, without a database.
//
//	gradecalc -f physics.yaml
//
// Exit status is 2 when the distribution is rejected and 3 when any student
// has a score the distribution cannot accept.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/school-system/grade-engine/internal/grading"
)

const (
	exitUsage         = 1
	exitConfiguration = 2
	exitIntegrity     = 3
)

type input struct {
	Distribution grading.MarkDistribution    `yaml:"distribution"`
	Scores       map[string]grading.ScoreSet `yaml:"scores"`
}

func parseInput(r io.Reader) (*input, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var in input
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	if len(in.Scores) == 0 {
		return nil, errors.New("decode input: no scores")
	}
	return &in, nil
}

func run(ctx context.Context, in *input, concurrency int, out io.Writer) (int, error) {
	vd, err := grading.Validate(in.Distribution)
	if err != nil {
		return exitConfiguration, err
	}

	report, err := grading.ComputeBatch(ctx, vd, in.Scores, grading.WithConcurrency(concurrency))
	if err != nil {
		return exitUsage, err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return exitUsage, err
	}
	if report.Errored > 0 {
		return exitIntegrity, nil
	}
	return 0, nil
}

func main() {
	file := flag.String("f", "", "YAML file with distribution and scores (default stdin)")
	concurrency := flag.Int("concurrency", 0, "students graded at once (0 = GOMAXPROCS)")
	flag.Parse()

	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}
	defer log.Sync() //nolint:errcheck

	var src io.Reader = os.Stdin
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			log.Fatal("open input", zap.Error(err))
		}
		defer f.Close()
		src = f
	}

	in, err := parseInput(src)
	if err != nil {
		log.Fatal("read input", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := run(ctx, in, *concurrency, os.Stdout)
	if err != nil {
		var cfgErr *grading.ConfigurationError
		if errors.As(err, &cfgErr) {
			log.Error("distribution rejected",
				zap.String("reason", string(cfgErr.Reason)),
				zap.String("component", string(cfgErr.Component)),
				zap.String("detail", cfgErr.Detail))
		} else {
			log.Error("grading failed", zap.Error(err))
		}
	}
	if code != 0 {
		log.Sync() //nolint:errcheck
		os.Exit(code)
	}
}
