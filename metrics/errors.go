package metrics

import "github.com/pkg/errors"

var (
	// ErrInvalidOptions is returned when a metric, reservoir or tag set is
	// constructed from invalid configuration. It is only ever returned at
	// creation time.
	ErrInvalidOptions = errors.New("invalid metric options")

	// ErrDuplicateRegistration is returned when a derived metric name is
	// already registered under a different kind in the same context.
	ErrDuplicateRegistration = errors.New("metric name already registered with a different kind")

	// ErrInvalidArgument is returned by recording operations given a value
	// they cannot record, such as a negative duration. Nothing is recorded.
	ErrInvalidArgument = errors.New("invalid argument")
)
