package fusion

import (
	"errors"
	"fmt"
)

// ErrTaskNotFound marks lookups for a task that is not mapped to any group.
var ErrTaskNotFound = errors.New("task not found in any fusion group")

// BuildError reports a failed fusion build for one group.
type BuildError struct {
	Group string
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build of fusion group %q failed: %v", e.Group, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// GatewayError reports a failed deployment platform operation, carrying the
// diagnostic output captured from the external tool.
type GatewayError struct {
	Op     string
	Group  string
	Detail string
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("gateway %s of fusion group %q failed: %v", e.Op, e.Group, e.Err)
	}
	return fmt.Sprintf("gateway %s of fusion group %q failed: %v: %s", e.Op, e.Group, e.Err, e.Detail)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
