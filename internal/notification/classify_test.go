package notification_test

import (
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sh3r4rd/object_index/internal/model"
	"github.com/sh3r4rd/object_index/internal/notification"
)

func s3Record(eventName, key string, size int64) events.S3EventRecord {
	return events.S3EventRecord{
		EventSource: "aws:s3",
		EventName:   eventName,
		S3: events.S3Entity{
			Bucket: events.S3Bucket{Name: "uploads"},
			Object: events.S3Object{Key: key, Size: size},
		},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		record     events.S3EventRecord
		wantAction model.Action
		wantKey    string
		wantSize   int64
	}{
		{
			name:       "put creates upsert",
			record:     s3Record("ObjectCreated:Put", "reports/q1.csv", 2048),
			wantAction: model.ActionUpsert,
			wantKey:    "reports/q1.csv",
			wantSize:   2048,
		},
		{
			name:       "multipart upload",
			record:     s3Record("ObjectCreated:CompleteMultipartUpload", "big/blob.bin", 1<<30),
			wantAction: model.ActionUpsert,
			wantKey:    "big/blob.bin",
			wantSize:   1 << 30,
		},
		{
			name:       "copy with zero size",
			record:     s3Record("ObjectCreated:Copy", "empty", 0),
			wantAction: model.ActionUpsert,
			wantKey:    "empty",
		},
		{
			name:       "delete",
			record:     s3Record("ObjectRemoved:Delete", "reports/q1.csv", 0),
			wantAction: model.ActionDelete,
			wantKey:    "reports/q1.csv",
		},
		{
			name:       "delete marker",
			record:     s3Record("ObjectRemoved:DeleteMarkerCreated", "reports/q1.csv", 0),
			wantAction: model.ActionDelete,
			wantKey:    "reports/q1.csv",
		},
		{
			name:       "folder on create",
			record:     s3Record("ObjectCreated:Put", "archive/2023/", 0),
			wantAction: model.ActionSkip,
			wantKey:    "archive/2023/",
		},
		{
			name:       "folder on delete",
			record:     s3Record("ObjectRemoved:Delete", "archive/", 0),
			wantAction: model.ActionSkip,
			wantKey:    "archive/",
		},
		{
			name:       "folder on unsupported event",
			record:     s3Record("ObjectRestore:Completed", "archive/", 0),
			wantAction: model.ActionSkip,
			wantKey:    "archive/",
		},
		{
			name:       "plus and percent escapes",
			record:     s3Record("ObjectCreated:Put", "my+reports/q1%282%29+final.csv", 10),
			wantAction: model.ActionUpsert,
			wantKey:    "my reports/q1(2) final.csv",
			wantSize:   10,
		},
		{
			name:       "escaped trailing separator",
			record:     s3Record("ObjectCreated:Put", "archive%2F", 0),
			wantAction: model.ActionSkip,
			wantKey:    "archive/",
		},
		{
			name:       "minio namespaced event",
			record:     s3Record("s3:ObjectCreated:Put", "reports/q1.csv", 7),
			wantAction: model.ActionUpsert,
			wantKey:    "reports/q1.csv",
			wantSize:   7,
		},
		{
			name:       "minio namespaced delete",
			record:     s3Record("s3:ObjectRemoved:Delete", "reports/q1.csv", 0),
			wantAction: model.ActionDelete,
			wantKey:    "reports/q1.csv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := notification.Classify(tt.record)
			require.NoError(t, err)

			assert.Equal(t, tt.wantAction, got.Action)
			assert.Equal(t, tt.wantKey, got.Key)
			assert.Equal(t, tt.wantSize, got.Size)
			assert.Equal(t, "uploads", got.Bucket)
			assert.Equal(t, tt.record.EventName, got.EventName)
		})
	}
}

func TestClassifyUnsupported(t *testing.T) {
	for _, eventName := range []string{
		"ObjectRestore:Post",
		"ReducedRedundancyLostObject",
		"Replication:OperationFailedReplication",
		"",
	} {
		t.Run(eventName, func(t *testing.T) {
			got, err := notification.Classify(s3Record(eventName, "reports/q1.csv", 1))

			var unsupported *notification.UnsupportedActionError
			require.ErrorAs(t, err, &unsupported)
			assert.Equal(t, eventName, unsupported.EventName)
			assert.Equal(t, "reports/q1.csv", unsupported.Key)
			assert.Equal(t, model.ActionUnsupported, got.Action)
		})
	}
}

func TestClassifyDecodingErrors(t *testing.T) {
	tests := []struct {
		name   string
		record events.S3EventRecord
	}{
		{"bad escape", s3Record("ObjectCreated:Put", "bad%zzkey", 1)},
		{"truncated escape", s3Record("ObjectCreated:Put", "bad%2", 1)},
		{"empty key", s3Record("ObjectCreated:Put", "", 1)},
		{"negative size", s3Record("ObjectCreated:Put", "a.txt", -1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := notification.Classify(tt.record)
			assert.Equal(t, model.ActionInvalid, got.Action)

			var decodeErr *notification.DecodingError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, tt.record.S3.Object.Key, decodeErr.Key)
		})
	}
}

func TestDecodingErrorUnwrap(t *testing.T) {
	_, err := notification.DecodeKey("%zz")
	require.Error(t, err)
	assert.NotNil(t, errors.Unwrap(err))
	assert.Contains(t, err.Error(), `decode object key "%zz"`)
}
