// Package notification turns raw object store change notifications into
// index actions.
package notification

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/sh3r4rd/object_index/internal/model"
)

var (
	errEmptyKey     = errors.New("empty key")
	errNegativeSize = errors.New("negative object size")
)

// Classification is the outcome of classifying one change record.
type Classification struct {
	Action    model.Action
	Key       string
	Size      int64
	Bucket    string
	EventName string
}

// Classify decodes the object key of rec and maps its event name to an
// action. Keys ending in the path separator are skipped whatever the event.
// An ActionUnsupported classification is returned together with an
// *UnsupportedActionError, an ActionInvalid one with a *DecodingError.
func Classify(rec events.S3EventRecord) (Classification, error) {
	c := Classification{
		Action:    model.ActionInvalid,
		Bucket:    rec.S3.Bucket.Name,
		EventName: rec.EventName,
	}

	key, err := DecodeKey(rec.S3.Object.Key)
	if err != nil {
		return c, err
	}
	c.Key = key

	if strings.HasSuffix(key, model.PathSeparator) {
		c.Action = model.ActionSkip
		return c, nil
	}

	name := strings.TrimPrefix(rec.EventName, model.EventNamespaceS3)
	switch {
	case strings.HasPrefix(name, model.EventPrefixCreated):
		if rec.S3.Object.Size < 0 {
			return c, newDecodingError(rec.S3.Object.Key, errNegativeSize)
		}
		c.Action = model.ActionUpsert
		c.Size = rec.S3.Object.Size
	case strings.HasPrefix(name, model.EventPrefixRemoved):
		c.Action = model.ActionDelete
	default:
		c.Action = model.ActionUnsupported
		return c, &UnsupportedActionError{EventName: rec.EventName, Key: key}
	}

	return c, nil
}

// DecodeKey reverses the form encoding S3 applies to keys in notifications:
// "+" stands for a space and reserved bytes are percent-escaped.
func DecodeKey(raw string) (string, error) {
	key, err := url.QueryUnescape(raw)
	if err != nil {
		return "", newDecodingError(raw, fmt.Errorf("unescape: %w", err))
	}
	if key == "" {
		return "", newDecodingError(raw, errEmptyKey)
	}
	return key, nil
}
