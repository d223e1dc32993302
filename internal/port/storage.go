package port

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// UploadInput encapsulates the parameters needed to upload an object.
type UploadInput struct {
	Bucket      string
	Key         string
	Body        io.Reader
	ContentType string
}

// UploadOutput contains the result of a successful upload.
type UploadOutput struct {
	Location string
	ETag     string
}

// ObjectStorage abstracts cloud object storage operations.
type ObjectStorage interface {
	Upload(ctx context.Context, input UploadInput) (*UploadOutput, error)
	Download(ctx context.Context, bucket, key string) ([]byte, error)
}

// ObjectURI identifies an object as s3://bucket/key.
type ObjectURI struct {
	Bucket string
	Key    string
}

func (u ObjectURI) String() string {
	return "s3://" + u.Bucket + "/" + u.Key
}

// ParseObjectURI parses an s3://bucket/key reference.
func ParseObjectURI(raw string) (ObjectURI, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(raw), "s3://")
	if !ok {
		return ObjectURI{}, fmt.Errorf("object uri %q: expected s3:// scheme", raw)
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return ObjectURI{}, fmt.Errorf("object uri %q: expected s3://bucket/key", raw)
	}
	return ObjectURI{Bucket: bucket, Key: key}, nil
}

// IsObjectURI reports whether s looks like an s3:// reference rather than a local path.
func IsObjectURI(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "s3://")
}
