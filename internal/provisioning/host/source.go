package host

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Source supplies the content of a deployed file.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// LocalSource reads content from a file on the machine running petprov.
type LocalSource struct {
	Path string
}

// Open implements Source.
func (s LocalSource) Open(context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source %s: %w", s.Path, err)
	}
	return f, nil
}

func (s LocalSource) String() string { return s.Path }

// InlineSource is content written directly in the plan.
type InlineSource struct {
	Content string
}

// Open implements Source.
func (s InlineSource) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.Content)), nil
}

func (s InlineSource) String() string { return "inline" }

// ObjectGetter fetches objects from a bucket store.
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// ObjectSource reads content from an object store.
type ObjectSource struct {
	Getter ObjectGetter
	Bucket string
	Key    string
}

// Open implements Source.
func (s ObjectSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.Getter == nil {
		return nil, fmt.Errorf("no object store configured for %s", s)
	}
	return s.Getter.GetObject(ctx, s.Bucket, s.Key)
}

func (s ObjectSource) String() string { return "s3://" + s.Bucket + "/" + s.Key }
