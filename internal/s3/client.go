// Package s3 provides a wrapper around the AWS S3 SDK for archiving chart images.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Client is a wrapper around the AWS S3 client.
type Client struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewClient creates a new S3 client. Static credentials are used when an access
// key is given, otherwise the default AWS credential chain applies. A non-empty
// endpoint targets an S3-compatible service such as MinIO. Every HTTP request
// is bounded by timeout.
func NewClient(ctx context.Context, bucket, region, endpoint, accessKey, secretKey, prefix string, timeout time.Duration) (*Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(timeout)),
	}
	if accessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load SDK config: %w", err)
	}

	return &Client{
		client: s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.UsePathStyle = true
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}),
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// Upload stores data under prefix/name and returns the object key.
func (c *Client) Upload(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	key := path.Join(c.prefix, name)

	uploader := manager.NewUploader(c.client)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return key, nil
}

// List lists the object keys inside the prefix directory. Sibling prefixes
// sharing the same leading characters are not included.
func (c *Client) List(ctx context.Context) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(c.bucket)}
	if c.prefix != "" {
		input.Prefix = aws.String(c.prefix + "/")
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(c.client, input)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list S3 objects: %w", err)
		}

		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}

	return keys, nil
}

// Delete deletes an object by its key.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete S3 object: %w", err)
	}
	return nil
}
