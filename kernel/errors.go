package kernel

import "fmt"

// ConfigError reports inputs a kernel cannot run with, e.g., a missing channel
// or a zero truncation distance.  It is a caller bug and never transient.
type ConfigError struct {
	Op     string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: bad configuration: %s", e.Op, e.Reason)
}

func configErrorf(op OpCode, format string, args ...interface{}) error {
	return &ConfigError{Op: op.String(), Reason: fmt.Sprintf(format, args...)}
}

// UnsupportedOpError is returned when dispatching an unknown operation.
type UnsupportedOpError struct {
	Op OpCode
}

func (e *UnsupportedOpError) Error() string {
	return fmt.Sprintf("unsupported kernel operation %s", e.Op)
}

// CapacityError is returned when extraction produced more vertices than the
// output buffers hold.  Count is the exact number of vertices found.
type CapacityError struct {
	Count    int64
	Capacity int64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("surface extraction found %d vertices, exceeding capacity %d", e.Count, e.Capacity)
}
