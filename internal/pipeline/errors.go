package pipeline

import "errors"

// ErrNoSteps is returned when a pipeline has no steps.
var ErrNoSteps = errors.New("pipeline has no steps")

// ConfigError reports a problem with the declaration itself: malformed
// structure, a step missing its identifying keys, or a placeholder that
// names no declared matrix axis. It is fatal to the run, and surfaced at
// load time rather than mid-execution.
type ConfigError struct {
	err error
}

// wrapConfigError wraps err in a *ConfigError, unless it already is one.
func wrapConfigError(err error) error {
	if err == nil {
		return nil
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return err
	}
	return &ConfigError{err: err}
}

func (e *ConfigError) Error() string {
	return "invalid pipeline configuration: " + e.err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.err
}

// IsConfigError reports whether any error in err's tree is a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
