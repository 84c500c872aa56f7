// Package indexstore holds the Index Store backends the indexer reads and
// writes. Every backend offers strongly consistent point reads, full-record
// writes and point deletes keyed by filename.
package indexstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"

	"github.com/sh3r4rd/object_index/internal/model"
)

// Store is the contract the indexer depends on.
type Store interface {
	// Lookup returns the current record for filename and whether it exists.
	// The read observes the most recent write for the key.
	Lookup(ctx context.Context, filename string) (model.IndexRecord, bool, error)

	// Put replaces the whole record stored under rec.Filename.
	Put(ctx context.Context, rec model.IndexRecord) error

	// PutIf replaces the record only if the stored state still matches prev.
	// A nil prev requires the key to be absent. ErrConflict is returned when
	// the guard does not hold.
	PutIf(ctx context.Context, rec model.IndexRecord, prev *model.IndexRecord) error

	// Delete removes the record for filename. Missing keys are not an error.
	Delete(ctx context.Context, filename string) error
}

var (
	// ErrConflict is returned by PutIf when the stored record is not the
	// one the caller expected.
	ErrConflict = errors.New("indexstore: conditional write conflict")
	// ErrEmptyKey rejects operations on an empty filename.
	ErrEmptyKey = errors.New("indexstore: empty filename")
)

// Operation names carried by TransportError.
const (
	OpLookup = "lookup"
	OpPut    = "put"
	OpDelete = "delete"
)

// TransportError wraps any failure talking to the backing store.
type TransportError struct {
	Op    string
	Key   string
	cause error
}

func (e *TransportError) Error() string {
	var msg strings.Builder
	fmt.Fprintf(&msg, "indexstore %s %q", e.Op, e.Key)
	if e.cause != nil {
		fmt.Fprint(&msg, ": ", e.cause)
	}
	return msg.String()
}

func (e *TransportError) Unwrap() error {
	return e.cause
}

func newTransportError(op, key string, cause error) *TransportError {
	return &TransportError{Op: op, Key: key, cause: cause}
}

// ErrorCode returns the service error code carried by err, e.g.
// "ProvisionedThroughputExceededException", or "" if there is none.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func matches(stored model.IndexRecord, prev model.IndexRecord) bool {
	return stored.Created == prev.Created && stored.LastModified == prev.LastModified
}
