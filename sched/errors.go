package sched

import "fmt"

var (
	// ErrSchedulerClosed is returned when scheduling on a closed scheduler.
	ErrSchedulerClosed = fmt.Errorf("sched: scheduler is closed")
)

// ErrInvalidSpec reports an unparsable cron spec.
func ErrInvalidSpec(spec string, err error) error {
	return fmt.Errorf("sched: invalid cron spec %q: %w", spec, err)
}
