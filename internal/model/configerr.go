package model

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
)

// ConfigError wraps a CUE validation failure with a flattened, operator
// readable list of per-path problems, trimmed from the teacher's
// configerr.go (which additionally classified errors into codes this
// worker has no UI to surface).
type ConfigError struct {
	Details []string
	cause   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s", strings.Join(e.Details, "; "))
}

func (e *ConfigError) Unwrap() error {
	return e.cause
}

func humanizeErr(err error, _ cue.Value) error {
	if err == nil {
		return nil
	}
	var details []string
	for _, e := range cueerrors.Errors(err) {
		path := strings.Join(e.Path(), ".")
		msg, _ := e.Msg()
		if path != "" {
			details = append(details, fmt.Sprintf("%s: %s", path, msg))
		} else {
			details = append(details, msg)
		}
	}
	if len(details) == 0 {
		details = []string{err.Error()}
	}
	return &ConfigError{Details: details, cause: err}
}
