package felicity

import "fmt"

// ConfigError means the client could not be configured. It is not retryable.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("felicity config: %s %s", e.Field, e.Reason)
}

// TransportError is a network-level failure: the call did not produce a
// usable response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("felicity %s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServiceError means the service answered but reported a processing failure.
type ServiceError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("felicity %s: service failed with status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("felicity %s: service failed: %s", e.Op, e.Message)
}
