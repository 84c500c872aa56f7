// Package indexer reconciles index records with object store change
// notifications.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sh3r4rd/object_index/internal/indexstore"
	"github.com/sh3r4rd/object_index/internal/model"
	"github.com/sh3r4rd/object_index/internal/notification"
)

// Strategy selects how an upsert writes the record it reconciled.
type Strategy string

const (
	// StrategyReadThenWrite looks the record up and overwrites it
	// unconditionally. Concurrent upserts of one key may interleave.
	StrategyReadThenWrite Strategy = "read_then_write"

	// StrategyConditional only writes if the record is still in the state
	// the lookup observed and starts over otherwise.
	StrategyConditional Strategy = "conditional"
)

const defaultMaxConflictRetries = 3

// ErrEmptyEvent is returned by Handle for a notification without records.
var ErrEmptyEvent = errors.New("notification carries no records")

// Observer is told about every change record the indexer handled.
type Observer interface {
	ObserveEvent(action model.Action, err error)
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(i *Indexer) {
		i.now = now
	}
}

// WithStrategy sets the upsert write strategy. maxRetries bounds how often a
// conditional upsert starts over after a conflict.
func WithStrategy(strategy Strategy, maxRetries int) Option {
	return func(i *Indexer) {
		i.strategy = strategy
		i.maxRetries = maxRetries
	}
}

// WithObserver reports every handled change record to obs.
func WithObserver(obs Observer) Option {
	return func(i *Indexer) {
		i.observer = obs
	}
}

// Indexer applies change notifications to an index store.
type Indexer struct {
	store indexstore.Store
	lg    *zap.Logger

	now        func() time.Time
	strategy   Strategy
	maxRetries int
	observer   Observer
}

// NewIndexer returns an indexer writing to store with the read_then_write
// strategy unless opts say otherwise.
func NewIndexer(
	store indexstore.Store,
	lg *zap.Logger,
	opts ...Option,
) *Indexer {
	i := &Indexer{
		store:      store,
		lg:         lg,
		now:        time.Now,
		strategy:   StrategyReadThenWrite,
		maxRetries: defaultMaxConflictRetries,
	}
	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Handle processes every record of a notification batch. A failing record
// does not stop the ones after it; all failures are returned combined.
func (i *Indexer) Handle(ctx context.Context, event events.S3Event) error {
	if len(event.Records) == 0 {
		return ErrEmptyEvent
	}

	var errs error
	for _, rec := range event.Records {
		_, err := i.HandleRecord(ctx, rec)
		errs = multierr.Append(errs, err)
	}

	return errs
}

// HandleRecord classifies one change record and applies the resulting
// index mutation.
func (i *Indexer) HandleRecord(ctx context.Context, rec events.S3EventRecord) (action model.Action, err error) {
	c, err := notification.Classify(rec)
	action = c.Action
	if i.observer != nil {
		defer func() { i.observer.ObserveEvent(action, err) }()
	}
	if err != nil {
		return action, err
	}

	lg := i.lg.With(
		zap.String("bucket", c.Bucket),
		zap.String("event", c.EventName),
		zap.String("filename", c.Key),
	)

	switch c.Action {
	case model.ActionSkip:
		lg.Debug("skipping folder key")
		return action, nil
	case model.ActionUpsert:
		_, err = i.upsert(ctx, lg, c.Key, c.Size)
		return action, err
	case model.ActionDelete:
		return action, i.delete(ctx, lg, c.Key)
	}

	return action, nil
}

// Lookup returns the current record for filename.
func (i *Indexer) Lookup(ctx context.Context, filename string) (model.IndexRecord, bool, error) {
	return i.store.Lookup(ctx, filename)
}

// Upsert inserts the record for filename or updates it in place,
// preserving its creation time.
func (i *Indexer) Upsert(ctx context.Context, filename string, size int64) (model.IndexRecord, error) {
	return i.upsert(ctx, i.lg.With(zap.String("filename", filename)), filename, size)
}

// Delete removes the record for filename. Deleting a missing record is
// not an error.
func (i *Indexer) Delete(ctx context.Context, filename string) error {
	return i.delete(ctx, i.lg.With(zap.String("filename", filename)), filename)
}

func (i *Indexer) upsert(ctx context.Context, lg *zap.Logger, filename string, size int64) (model.IndexRecord, error) {
	if i.strategy != StrategyConditional {
		existing, found, err := i.store.Lookup(ctx, filename)
		if err != nil {
			return model.IndexRecord{}, err
		}

		rec := i.reconcile(existing, found, filename, size)
		if err := i.store.Put(ctx, rec); err != nil {
			return model.IndexRecord{}, err
		}

		logWrite(lg, rec, found)
		return rec, nil
	}

	for attempt := 0; ; attempt++ {
		existing, found, err := i.store.Lookup(ctx, filename)
		if err != nil {
			return model.IndexRecord{}, err
		}

		var prev *model.IndexRecord
		if found {
			prev = &existing
		}

		rec := i.reconcile(existing, found, filename, size)
		err = i.store.PutIf(ctx, rec, prev)
		if err == nil {
			logWrite(lg, rec, found)
			return rec, nil
		}
		if !errors.Is(err, indexstore.ErrConflict) {
			return model.IndexRecord{}, err
		}
		if attempt >= i.maxRetries {
			return model.IndexRecord{}, fmt.Errorf("upsert %q after %d attempts: %w", filename, attempt+1, err)
		}

		lg.Info("concurrent write detected, retrying", zap.Int("attempt", attempt+1))
	}
}

func (i *Indexer) reconcile(existing model.IndexRecord, found bool, filename string, size int64) model.IndexRecord {
	now := i.now()
	if !found {
		return model.NewIndexRecord(filename, size, now)
	}
	return existing.Updated(size, now)
}

func (i *Indexer) delete(ctx context.Context, lg *zap.Logger, filename string) error {
	if err := i.store.Delete(ctx, filename); err != nil {
		return err
	}

	lg.Info("record deleted")
	return nil
}

func logWrite(lg *zap.Logger, rec model.IndexRecord, updated bool) {
	msg := "record inserted"
	if updated {
		msg = "record updated"
	}
	lg.Info(msg,
		zap.Int64("size", rec.Size),
		zap.Int64("created", rec.Created),
		zap.Int64("last_modified", rec.LastModified),
	)
}
