// Package handler is the invocation boundary between the Lambda runtime and
// the indexer.
package handler

import (
	"context"
	"errors"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sh3r4rd/object_index/internal/indexer"
	"github.com/sh3r4rd/object_index/internal/indexstore"
	"github.com/sh3r4rd/object_index/internal/notification"
)

// ErrorPolicy decides whether handler failures reach the invoking transport.
type ErrorPolicy string

const (
	// PolicySwallow logs failures and reports success, so the transport
	// never redelivers.
	PolicySwallow ErrorPolicy = "swallow"

	// PolicyPropagate logs failures and returns them, handing retries to the
	// transport.
	PolicyPropagate ErrorPolicy = "propagate"
)

// Resolve logs every failure in err and returns what the transport should
// see under the policy.
func (p ErrorPolicy) Resolve(lg *zap.Logger, err error) error {
	if err == nil {
		return nil
	}

	for _, e := range multierr.Errors(err) {
		lg.Error("failed to handle notification",
			zap.String("error_class", ErrorClass(e)),
			zap.String("error_code", indexstore.ErrorCode(e)),
			zap.Error(e),
		)
	}

	if p == PolicyPropagate {
		return err
	}
	return nil
}

// ErrorClass names the failure category of err for log filtering.
func ErrorClass(err error) string {
	var (
		unsupported *notification.UnsupportedActionError
		decoding    *notification.DecodingError
		transport   *indexstore.TransportError
	)

	switch {
	case errors.As(err, &unsupported):
		return "unsupported_action"
	case errors.As(err, &decoding):
		return "decoding"
	case errors.Is(err, indexstore.ErrConflict):
		return "write_conflict"
	case errors.As(err, &transport):
		return "store_transport"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "deadline"
	case errors.Is(err, indexer.ErrEmptyEvent):
		return "empty_event"
	default:
		return "internal"
	}
}

// Lambda returns the function handed to lambda.Start.
func Lambda(idx *indexer.Indexer, policy ErrorPolicy, lg *zap.Logger) func(context.Context, events.S3Event) error {
	return func(ctx context.Context, event events.S3Event) error {
		lg := lg.With(zap.Int("records", len(event.Records)))
		if lc, ok := lambdacontext.FromContext(ctx); ok {
			lg = lg.With(zap.String("request_id", lc.AwsRequestID))
		}

		lg.Debug("notification received")
		return policy.Resolve(lg, idx.Handle(ctx, event))
	}
}
