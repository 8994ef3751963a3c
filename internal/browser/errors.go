package browser

import (
	"fmt"
	"time"
)

// NavigationError reports a failed navigation or wait step, carrying the
// selector or URL pattern that was being waited on and the timeout that
// applied to the step.
type NavigationError struct {
	Step    string
	Target  string
	Timeout time.Duration
	Err     error
}

func (e *NavigationError) Error() string {
	switch {
	case e.Target != "" && e.Timeout > 0:
		return fmt.Sprintf("%s: %s not satisfied within %s: %v", e.Step, e.Target, e.Timeout, e.Err)
	case e.Target != "":
		return fmt.Sprintf("%s (%s): %v", e.Step, e.Target, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Step, e.Err)
	}
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}
