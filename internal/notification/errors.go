package notification

import (
	"fmt"
	"strings"
)

// UnsupportedActionError reports an event name that is neither a creation
// nor a removal notification.
type UnsupportedActionError struct {
	EventName string
	Key       string
}

func (e *UnsupportedActionError) Error() string {
	return fmt.Sprintf("unsupported event %q for key %q", e.EventName, e.Key)
}

// DecodingError reports a notification whose object descriptor cannot be
// decoded.
type DecodingError struct {
	Key   string
	cause error
}

func (e *DecodingError) Error() string {
	var msg strings.Builder
	fmt.Fprintf(&msg, "decode object key %q", e.Key)
	if e.cause != nil {
		fmt.Fprint(&msg, ": ", e.cause)
	}
	return msg.String()
}

func (e *DecodingError) Unwrap() error {
	return e.cause
}

func newDecodingError(key string, cause error) *DecodingError {
	return &DecodingError{Key: key, cause: cause}
}
