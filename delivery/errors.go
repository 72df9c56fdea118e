package delivery

import "fmt"

// KeyError means the private key could not be loaded or parsed.
type KeyError struct {
	Err error
}

func (e *KeyError) Error() string { return "load signing key: " + e.Err.Error() }
func (e *KeyError) Unwrap() error { return e.Err }

// SigningError means the cryptographic signing step failed.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string { return "sign request: " + e.Err.Error() }
func (e *SigningError) Unwrap() error { return e.Err }

// Kind classifies a DeliveryError.
type Kind int

const (
	// Transport covers DNS, connect and TLS failures.
	Transport Kind = iota + 1
	// Timeout means the caller's deadline expired before a response arrived.
	Timeout
	// RemoteRejected means the inbox answered with a non-2xx status.
	RemoteRejected
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case Timeout:
		return "timeout"
	case RemoteRejected:
		return "remote_rejected"
	default:
		return "unknown"
	}
}

// DeliveryError is returned when the signed request did not result in a
// successful response. Status and Body are only set for RemoteRejected.
type DeliveryError struct {
	Kind   Kind
	Target string
	Status int
	Body   string
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Kind == RemoteRejected {
		return fmt.Sprintf("deliver to %s: remote rejected with status %d", e.Target, e.Status)
	}
	return fmt.Sprintf("deliver to %s: %s: %v", e.Target, e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
