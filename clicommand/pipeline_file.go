package clicommand

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/wheelhouse-ci/wheelhouse/env"
	"github.com/wheelhouse-ci/wheelhouse/internal/pipeline"
	"github.com/wheelhouse-ci/wheelhouse/logger"
	"github.com/wheelhouse-ci/wheelhouse/stdin"
)

// defaultPipelinePaths are tried in order when no file argument is given and
// nothing is piped in.
var defaultPipelinePaths = []string{
	"wheelhouse.yml",
	"wheelhouse.yaml",
	filepath.FromSlash(".wheelhouse/pipeline.yml"),
	filepath.FromSlash(".wheelhouse/pipeline.yaml"),
}

// readDeclaration finds and reads the pipeline declaration: from the given
// path, from stdin if piped, or from the default locations. It returns the
// contents and a name for error messages.
func readDeclaration(l logger.Logger, path string) ([]byte, string, error) {
	if path != "" {
		l.Debug("Reading pipeline from %q", path)
		input, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("reading %q: %w", path, err)
		}
		return input, path, nil
	}

	if stdin.IsPipe() {
		l.Debug("Reading pipeline from stdin")
		input, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, "", fmt.Errorf("reading stdin: %w", err)
		}
		return input, "(stdin)", nil
	}

	l.Debug("Searching for a pipeline file...")
	var exists []string
	for _, p := range defaultPipelinePaths {
		if _, err := os.Stat(p); err == nil {
			exists = append(exists, p)
		}
	}
	switch len(exists) {
	case 0:
		return nil, "", fmt.Errorf("could not find a pipeline file; tried %s", strings.Join(defaultPipelinePaths, ", "))
	case 1:
		// The only acceptable number.
	default:
		return nil, "", fmt.Errorf("found multiple pipeline files (%s), pass one explicitly", strings.Join(exists, ", "))
	}

	found := exists[0]
	l.Debug("Found pipeline file %q", found)
	input, err := os.ReadFile(found)
	if err != nil {
		return nil, "", fmt.Errorf("reading %q: %w", found, err)
	}
	return input, found, nil
}

// loadPipeline reads, parses, and (unless noInterpolation) env-interpolates
// the declaration.
func loadPipeline(l logger.Logger, path string, noInterpolation bool) (*pipeline.Pipeline, string, error) {
	input, src, err := readDeclaration(l, path)
	if err != nil {
		return nil, "", err
	}
	if len(input) == 0 {
		return nil, "", fmt.Errorf("pipeline file %s is empty", src)
	}

	p, err := pipeline.Parse(bytes.NewReader(input))
	if err != nil {
		return nil, "", fmt.Errorf("parsing %s: %w", src, err)
	}

	if !noInterpolation {
		environ := env.FromSlice(os.Environ())
		resolveCommit(l, environ)
		if err := p.Interpolate(environ); err != nil {
			return nil, "", fmt.Errorf("interpolating %s: %w", src, err)
		}
	}

	return p, src, nil
}

// resolveCommit rewrites WHEELHOUSE_COMMIT to a full SHA when it holds a
// symbolic ref like HEAD, so object keys and interpolated values are stable.
func resolveCommit(l logger.Logger, environ *env.Environment) {
	commitRef, ok := environ.Get("WHEELHOUSE_COMMIT")
	if !ok || commitRef == "" {
		return
	}
	out, err := exec.Command("git", "rev-parse", commitRef).Output()
	if err != nil {
		l.Warn("Error running git rev-parse %q: %v", commitRef, err)
		return
	}
	sha := strings.TrimSpace(string(out))
	if sha != commitRef {
		l.Debug("Resolved WHEELHOUSE_COMMIT %q to %q", commitRef, sha)
		environ.Set("WHEELHOUSE_COMMIT", sha)
	}
}
