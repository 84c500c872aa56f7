package model

import "time"

// IndexRecord represents a single item in the object index table.
type IndexRecord struct {
	Filename     string `dynamodbav:"filename"      json:"filename"      msgpack:"filename"`
	Size         int64  `dynamodbav:"size"          json:"size"          msgpack:"size"`
	Created      int64  `dynamodbav:"created"       json:"created"       msgpack:"created"`
	LastModified int64  `dynamodbav:"last_modified" json:"last_modified" msgpack:"last_modified"`
}

// NewIndexRecord returns the record written the first time a key is seen.
func NewIndexRecord(filename string, size int64, now time.Time) IndexRecord {
	ts := now.Unix()
	return IndexRecord{
		Filename:     filename,
		Size:         size,
		Created:      ts,
		LastModified: ts,
	}
}

// Updated returns the replacement for r after the object was overwritten.
// Created is carried forward and LastModified never moves backwards.
func (r IndexRecord) Updated(size int64, now time.Time) IndexRecord {
	lm := max(now.Unix(), r.LastModified, r.Created)
	return IndexRecord{
		Filename:     r.Filename,
		Size:         size,
		Created:      r.Created,
		LastModified: lm,
	}
}

// Action is the index mutation a change notification maps to.
type Action string

// Action constants returned by the notification classifier.
const (
	ActionSkip        Action = "SKIP"
	ActionUpsert      Action = "UPSERT"
	ActionDelete      Action = "DELETE"
	ActionUnsupported Action = "UNSUPPORTED"
	ActionInvalid     Action = "INVALID"
)
