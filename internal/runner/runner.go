// Package runner executes an expanded pipeline locally: steps run one at a
// time, in declaration order. It is a stand-in for a hosted engine when
// building wheels on a single machine.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/buildkite/shellwords"
	"github.com/google/uuid"
	"github.com/wheelhouse-ci/wheelhouse/env"
	"github.com/wheelhouse-ci/wheelhouse/internal/ordered"
	"github.com/wheelhouse-ci/wheelhouse/internal/pipeline"
	"github.com/wheelhouse-ci/wheelhouse/logger"
)

// CommandError reports a command that ran and failed. The first one aborts
// the step and the rest of the pipeline.
type CommandError struct {
	Command  string
	ExitCode int
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q exited with status %d", e.Command, e.ExitCode)
}

type Config struct {
	// The runner's own tags. A step runs if its agent selector is a subset
	// of these.
	AgentTags map[string]string

	// Auto-approve block steps instead of prompting.
	NoGates bool

	// Log commands without executing anything.
	DryRun bool

	// The commit under build, exported as WHEELHOUSE_COMMIT.
	Commit string
}

type Runner struct {
	logger  logger.Logger
	conf    Config
	buildID string

	// One reader for all gate prompts: a fresh reader per gate would drop
	// input typed ahead of the next prompt.
	gateInput *bufio.Reader
}

func New(l logger.Logger, c Config) *Runner {
	return &Runner{
		logger:    l,
		conf:      c,
		buildID:   uuid.New().String(),
		gateInput: bufio.NewReader(os.Stdin),
	}
}

// Run executes the pipeline. It expects matrices to have been expanded
// already.
func (r *Runner) Run(ctx context.Context, p *pipeline.Pipeline) error {
	r.logger.Info("Starting build %s with %d steps", r.buildID, len(p.Steps))

	for i, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch s := step.(type) {
		case *pipeline.BlockStep:
			ok, err := r.gate(s)
			if err != nil {
				return err
			}
			if !ok {
				r.logger.Notice("Build stopped at gate %q", s.Label())
				return nil
			}

		case *pipeline.WaitStep:
			// Sequential execution: everything before has already finished.
			r.logger.Debug("Wait step: nothing in flight, continuing")

		case *pipeline.CommandStep:
			if s.Matrix != nil {
				return fmt.Errorf("step %d (%q) still has a matrix, run Expand first", i+1, s.Label)
			}
			if !r.tagsMatch(s.Agents) {
				r.logger.Notice("Skipping step %q: agent selector %s does not match runner tags", s.Label, formatSelector(s.Agents))
				continue
			}
			if err := r.runCommandStep(ctx, p, s); err != nil {
				return err
			}

		default:
			return fmt.Errorf("step %d: unsupported step type %T", i+1, step)
		}
	}

	r.logger.Info("Build %s finished", r.buildID)
	return nil
}

// tagsMatch reports whether every tag the step asks for is present, with the
// same value, in the runner's own tags. Tags are opaque strings, compared
// exactly. An empty selector matches any runner.
func (r *Runner) tagsMatch(agents *ordered.MapSS) bool {
	match := true
	agents.Range(func(k, v string) error {
		if r.conf.AgentTags[k] != v {
			match = false
		}
		return nil
	})
	return match
}

func formatSelector(agents *ordered.MapSS) string {
	var parts []string
	agents.Range(func(k, v string) error {
		parts = append(parts, k+"="+v)
		return nil
	})
	return fmt.Sprintf("%v", parts)
}

func (r *Runner) runCommandStep(ctx context.Context, p *pipeline.Pipeline, s *pipeline.CommandStep) error {
	r.logger.Info("Running step %q (%d commands)", s.Label, len(s.Commands))
	stepLogger := r.logger.WithPrefix(s.Label)

	environ := r.stepEnviron(p, s)

	for _, command := range s.Commands {
		if r.conf.DryRun {
			stepLogger.Info("[dry-run] %s", command)
			continue
		}
		if err := r.runCommand(ctx, stepLogger, environ, command); err != nil {
			return err
		}
	}
	return nil
}

// stepEnviron merges, in increasing precedence: the process environment, the
// pipeline env, the step env, and the build context.
func (r *Runner) stepEnviron(p *pipeline.Pipeline, s *pipeline.CommandStep) []string {
	environ := env.FromSlice(os.Environ())
	p.Env.Range(func(k, v string) error {
		environ.Set(k, v)
		return nil
	})
	s.Env.Range(func(k, v string) error {
		environ.Set(k, v)
		return nil
	})
	environ.Set("WHEELHOUSE_BUILD_ID", r.buildID)
	if r.conf.Commit != "" {
		environ.Set("WHEELHOUSE_COMMIT", r.conf.Commit)
	}
	return environ.ToSlice()
}

func (r *Runner) runCommand(ctx context.Context, l logger.Logger, environ []string, command string) error {
	args, err := shellwords.Split(command)
	if err != nil {
		return fmt.Errorf("splitting command %q: %w", command, err)
	}
	if len(args) == 0 {
		return nil
	}

	l.Debug("$ %s", command)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Env = environ
	setupProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting command %q: %w", command, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		streamLines(stdout, l.Info)
	}()
	go func() {
		defer wg.Done()
		streamLines(stderr, l.Warn)
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &CommandError{Command: command, ExitCode: exitErr.ExitCode()}
		}
		return fmt.Errorf("running command %q: %w", command, err)
	}
	return nil
}

func streamLines(r io.Reader, logf func(string, ...any)) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		logf("%s", sc.Text())
	}
}
