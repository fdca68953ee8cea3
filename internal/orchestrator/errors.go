package orchestrator

import "fmt"

// RemoteError is a transport-level failure talking to either remote
// service. It fails the current request with a generic user message; it is
// never fatal to the process.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// ProtocolError indicates contract drift with the remote agent: an
// unexpected run status, an unknown tool function, or malformed tool
// arguments. It fails the current request without crashing the engine.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}
