package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API is the minimal S3 interface required by Client.
// *s3.Client from aws-sdk-go-v2 satisfies this interface.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client uploads photo objects to one S3 bucket and derives their
// public URLs.
type Client struct {
	api    s3API
	bucket string
	region string
}

// New creates a Client for the given bucket. The region is only used to
// build public URLs.
func New(api s3API, bucket, region string) (*Client, error) {
	if api == nil {
		return nil, errors.New("objectstore: api must not be nil")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("objectstore: bucket must not be empty")
	}
	if strings.TrimSpace(region) == "" {
		return nil, errors.New("objectstore: region must not be empty")
	}
	return &Client{api: api, bucket: bucket, region: region}, nil
}

// Upload writes one object. contentType falls back to a generic binary
// type when the transport did not report one.
func (c *Client) Upload(ctx context.Context, name string, data []byte, contentType string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("objectstore: object name must not be empty")
	}
	if len(data) == 0 {
		return errors.New("objectstore: object data must not be empty")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("objectstore: upload %q: %w", name, err)
	}
	return nil
}

// PublicURL returns the virtual-hosted URL of an uploaded object.
func (c *Client) PublicURL(name string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.bucket, c.region, name)
}
