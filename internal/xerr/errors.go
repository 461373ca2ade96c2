// Package xerr defines the error kinds shared across the protocol engine.
//
// The wrapping pattern (a message plus an optional underlying error,
// exposed through Unwrap) follows github.com/daedaluz/goserial's error.go.
package xerr

// Kind classifies a failure the way spec section 7 does.
type Kind int

const (
	// Transport is a serial I/O failure or timeout.
	Transport Kind = iota
	// Protocol is a broken host-side contract: nested loops, a
	// read-expecting opcode inside a loop body, an out-of-range SIE id,
	// a zero-width shift with a read callback attached.
	Protocol
	// CheckMismatch is a check_dr masked compare that did not match.
	CheckMismatch
	// StatusFailure is a non-zero get_status byte.
	StatusFailure
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case Protocol:
		return "protocol violation"
	case CheckMismatch:
		return "device check mismatch"
	case StatusFailure:
		return "status failure"
	default:
		return "unknown"
	}
}

// Error wraps a Kind with a message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an *Error with no underlying cause.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error around an underlying cause. Returns nil if err is nil.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}
