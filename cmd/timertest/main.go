// Command timertest exercises the scheduler with timer driven workloads: a
// thread woken by a condition variable that a timer broadcasts, a thread
// that repeatedly sleeps on a timer, and a thread that cancels and restarts
// a self-rearming timer.
//
// Usage:
//
//	timertest [flags] <count>
//
// Run with: go run ./cmd/timertest/ 5
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/joeycumines/go-mnsched/sched"
	"github.com/joeycumines/go-mnsched/threadtimer"
	"github.com/joeycumines/logiface"
)

type config struct {
	count     int
	engines   int
	logFormat string
	logLevel  logiface.Level
	metrics   bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := parseArgs(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			_, _ = fmt.Fprintf(stderr, "timertest: %v\n", err)
		}
		return 2
	}

	logger, err := newLogger(cfg.logFormat, cfg.logLevel, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "timertest: %v\n", err)
		return 2
	}

	if err := runTests(cfg, logger, stdout); err != nil {
		logger.Err().
			Err(err).
			Log("timertest failed")
		return 1
	}
	return 0
}

func parseArgs(args []string, stderr io.Writer) (*config, error) {
	fs := flag.NewFlagSet("timertest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprintln(fs.Output(), "usage: timertest [flags] <count>")
		fs.PrintDefaults()
	}

	cfg := config{logLevel: logiface.LevelInformational}
	fs.IntVar(&cfg.engines, "engines", 2, "number of dispatchers, 0 uses the available CPU count")
	fs.StringVar(&cfg.logFormat, "log-format", "stumpy", "log output format: stumpy or zerolog")
	fs.Func("log-level", "log level: trace, debug, info, notice, warning, err, crit (default info)", func(s string) error {
		level, err := parseLevel(s)
		if err != nil {
			return err
		}
		cfg.logLevel = level
		return nil
	})
	fs.BoolVar(&cfg.metrics, "metrics", false, "report scheduler metrics on completion")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, errors.New("expected exactly one <count> argument")
	}
	count, err := strconv.Atoi(fs.Arg(0))
	if err != nil || count < 0 {
		return nil, fmt.Errorf("invalid count: %q", fs.Arg(0))
	}
	cfg.count = count

	if cfg.engines < 0 {
		return nil, fmt.Errorf("invalid engines: %d", cfg.engines)
	}
	if cfg.engines == 0 {
		cfg.engines = availableCPUs()
	}

	return &cfg, nil
}

func runTests(cfg *config, logger *logiface.Logger[logiface.Event], stdout io.Writer) error {
	s, err := sched.Setup(cfg.engines,
		sched.WithLogger(logger),
		sched.WithMetrics(cfg.metrics),
		sched.WithQueueDepthWarning(1024),
	)
	if err != nil {
		return err
	}
	defer s.Close()

	svc, err := threadtimer.New(s, threadtimer.WithLogger(logger))
	if err != nil {
		return err
	}
	defer svc.Close()

	h := &harness{
		svc:      svc,
		out:      newLineWriter(stdout),
		maxCount: cfg.count,
	}

	ctx := context.Background()

	timerTest, err := sched.NewThread(h.timerTest, sched.Joinable(), sched.WithName("timer-test"))
	if err != nil {
		return err
	}
	sleepTest, err := sched.NewThread(h.sleepTest, sched.Joinable(), sched.WithName("sleep-test"))
	if err != nil {
		return err
	}
	for _, t := range []*sched.Thread{timerTest, sleepTest} {
		if err := t.Queue(); err != nil {
			return err
		}
	}
	for _, t := range []*sched.Thread{timerTest, sleepTest} {
		if err := joinResult(ctx, t); err != nil {
			return err
		}
	}

	cancelTest, err := sched.Go(h.cancelTest, sched.Joinable(), sched.WithName("cancel-test"))
	if err != nil {
		return err
	}
	if err := joinResult(ctx, cancelTest); err != nil {
		return err
	}

	if m := s.Metrics(); m != nil {
		logger.Info().
			Uint64("created", m.Created).
			Uint64("resumed", m.Resumed).
			Uint64("slept", m.Slept).
			Uint64("parks", m.Parks).
			Uint64("wakes", m.Wakes).
			Dur("queue_wait_p99", m.QueueWait.P99).
			Log("scheduler metrics")
	}

	return nil
}

// joinResult joins t, treating a returned error value as failure.
func joinResult(ctx context.Context, t *sched.Thread) error {
	v, err := t.Join(ctx)
	if err != nil {
		return err
	}
	if err, ok := v.(error); ok {
		return fmt.Errorf("%s: %w", t.Name(), err)
	}
	return nil
}
