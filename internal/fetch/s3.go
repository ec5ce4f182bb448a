package fetch

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// ObjectGetter is the subset of the S3 API used to download resumes.
type ObjectGetter interface {
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
}

// S3Fetcher downloads s3://bucket/key artifacts.
type S3Fetcher struct {
	Client   ObjectGetter
	MaxBytes int64
}

// NewS3Fetcher builds an S3 client for region using the default AWS credential chain
// (environment, shared config, instance role).
func NewS3Fetcher(region string) (*S3Fetcher, error) {
	cfg := &aws.Config{}
	if region != "" {
		cfg.Region = aws.String(region)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return &S3Fetcher{Client: s3.New(sess), MaxBytes: DefaultMaxBytes}, nil
}

// ParseS3URL splits s3://bucket/key into its parts.
func ParseS3URL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("not an s3 URL: %s", rawURL)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 URL must name a bucket and key: %s", rawURL)
	}
	return bucket, key, nil
}

// Fetch implements Fetcher.
func (f *S3Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	bucket, key, err := ParseS3URL(rawURL)
	if err != nil {
		return nil, &Error{URL: rawURL, Message: "invalid URL", Cause: err}
	}
	if f == nil || f.Client == nil {
		return nil, &Error{URL: rawURL, Message: "S3 is not configured"}
	}

	out, err := f.Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		fetchErr := &Error{URL: rawURL, Message: "S3 GetObject failed", Cause: err}
		if reqErr, ok := err.(awserr.RequestFailure); ok {
			fetchErr.StatusCode = reqErr.StatusCode()
		}
		return nil, fetchErr
	}
	defer func() { _ = out.Body.Close() }()

	body, err := readLimited(out.Body, f.MaxBytes)
	if err != nil {
		return nil, &Error{URL: rawURL, Message: "failed to read object body", Cause: err}
	}

	return &Result{
		URL:         rawURL,
		Body:        body,
		ContentType: aws.StringValue(out.ContentType),
		StatusCode:  200,
		FileName:    path.Base(key),
	}, nil
}

// Router dispatches s3:// URLs to S3 and everything else to HTTP.
type Router struct {
	HTTP Fetcher
	S3   Fetcher
}

// NewRouter returns a Router with the given backends. A nil HTTP backend defaults to
// an HTTPFetcher with default options.
func NewRouter(httpFetcher, s3Fetcher Fetcher) *Router {
	if httpFetcher == nil {
		httpFetcher = &HTTPFetcher{Options: DefaultOptions()}
	}
	return &Router{HTTP: httpFetcher, S3: s3Fetcher}
}

// Fetch implements Fetcher.
func (r *Router) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	if strings.HasPrefix(strings.ToLower(rawURL), "s3://") {
		if r.S3 == nil {
			return nil, &Error{URL: rawURL, Message: "S3 is not configured"}
		}
		return r.S3.Fetch(ctx, rawURL)
	}
	return r.HTTP.Fetch(ctx, rawURL)
}
