package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

// Reader reads archived settlement receipts back for the receipt route and
// answers the archive's write-once check.
type Reader struct {
	client *s3.Client
	bucket string
}

var _ domain.BlobReader = (*Reader)(nil)

// NewReader creates a Reader for the client's bucket.
func NewReader(c *Client) *Reader {
	return &Reader{
		client: c.S3(),
		bucket: c.Bucket(),
	}
}

// Get opens the object at path. The caller closes the body. A receipt that
// was never archived yields domain.ErrNotFound.
func (r *Reader) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	output, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3blob: read %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3blob: read %s: %w", path, err)
	}
	return output.Body, nil
}

// Exists reports whether path is already stored. It only issues a
// HeadObject, so checking a receipt never downloads it.
func (r *Reader) Exists(ctx context.Context, path string) (bool, error) {
	_, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3blob: head %s: %w", path, err)
	}
	return true, nil
}

// isNotFound recognises NoSuchKey, the typed 404 HeadObject returns, and a
// bare HTTP 404 from S3-compatible providers.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	type httpResponseError interface {
		HTTPStatusCode() int
	}
	var httpErr httpResponseError
	if errors.As(err, &httpErr) && httpErr.HTTPStatusCode() == 404 {
		return true
	}

	return false
}
