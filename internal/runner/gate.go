package runner

import (
	"fmt"
	"os"
	"strings"

	"github.com/wheelhouse-ci/wheelhouse/internal/pipeline"
	"golang.org/x/term"
)

// gate prompts for approval of a block step. It reports whether the build
// should continue. With NoGates set it approves without prompting, which is
// what non-interactive use wants.
func (r *Runner) gate(s *pipeline.BlockStep) (bool, error) {
	if r.conf.NoGates {
		r.logger.Info("Gate %q auto-approved (--no-gates)", s.Label())
		return true, nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, fmt.Errorf("gate %q needs a terminal to prompt on; use --no-gates to auto-approve", s.Label())
	}

	fmt.Fprintf(os.Stderr, "🔒 %s [y/N] ", s.Label())

	return r.readApproval()
}

// readApproval consumes one line of gate input. "y" or "yes" approves.
func (r *Runner) readApproval() (bool, error) {
	line, err := r.gateInput.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("reading gate response: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
