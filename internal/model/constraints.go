package model

// Domain constants shared across notification, indexer, and storage packages.
const (
	PathSeparator = "/"

	EventPrefixCreated = "ObjectCreated:"
	EventPrefixRemoved = "ObjectRemoved:"

	// MinIO bucket notifications prefix event names with "s3:".
	EventNamespaceS3 = "s3:"
)
