package blob

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const (
	listPageSize    = 1000
	defaultPartSize = 16 * 1024 * 1024
)

type S3Client struct {
	s3Client *s3.Client
	uploader *manager.Uploader
	config   *S3Config
}

func NewS3Client(s3Client *s3.Client, cfg *S3Config) *S3Client {
	uploader := manager.NewUploader(s3Client, func(u *manager.Uploader) {
		u.PartSize = defaultPartSize
		if cfg.UploadConcurrency > 0 {
			u.Concurrency = cfg.UploadConcurrency
		}
	})
	return &S3Client{
		s3Client: s3Client,
		uploader: uploader,
		config:   cfg,
	}
}

// NewS3ClientWithConfig builds the SDK client for cfg. Static credentials are
// used when both keys are set, otherwise the default AWS chain applies.
func NewS3ClientWithConfig(ctx context.Context, cfg *S3Config) (*S3Client, error) {
	if cfg == nil || cfg.BucketName == "" {
		return nil, fmt.Errorf("s3 config: bucket name is required")
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          200,
			MaxIdleConnsPerHost:   100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(httpClient),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	if cfg.Endpoint != "" {
		// third party endpoints reject the newer default checksum headers
		opts = append(opts,
			config.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
			config.WithResponseChecksumValidation(aws.ResponseChecksumValidationWhenRequired),
		)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	awsClient := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.PathStyle
		}
	})

	return NewS3Client(awsClient, cfg), nil
}

func (s *S3Client) Bucket() string {
	return s.config.BucketName
}

// ===================================================================================================

func (s *S3Client) PutObject(ctx context.Context, params *PutObjectParams) (*PutObjectResponse, error) {
	input := &s3.PutObjectInput{
		Bucket: &s.config.BucketName,
		Key:    &params.Key,
		Body:   params.Body,
	}
	if params.Size >= 0 && params.Size < defaultPartSize {
		input.ContentLength = aws.Int64(params.Size)
	}

	resp, err := s.uploader.Upload(ctx, input)
	if err != nil {
		return nil, err
	}

	return &PutObjectResponse{
		Key:     params.Key,
		Size:    params.Size,
		Version: aws.ToString(resp.VersionID),
		ETag:    strings.ReplaceAll(aws.ToString(resp.ETag), "\"", ""),
	}, nil
}

func (s *S3Client) GetObject(ctx context.Context, key string) (*GetObjectResponse, error) {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.config.BucketName,
		Key:    &key,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, err
	}

	return &GetObjectResponse{
		Body:         resp.Body,
		Size:         aws.ToInt64(resp.ContentLength),
		ETag:         strings.ReplaceAll(aws.ToString(resp.ETag), "\"", ""),
		LastModified: aws.ToTime(resp.LastModified),
	}, nil
}

// ===================================================================================================

func (s *S3Client) ListObjectVersions(ctx context.Context, params *ListVersionsParams) ([]*ObjectVersion, error) {
	limit := params.MaxKeys
	var (
		versions        []*ObjectVersion
		keyMarker       *string
		versionIDMarker *string
	)

	for {
		pageSize := listPageSize
		if limit > 0 && limit-len(versions) < pageSize {
			pageSize = limit - len(versions)
		}

		page, err := s.s3Client.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
			Bucket:          &s.config.BucketName,
			Prefix:          aws.String(params.Prefix),
			MaxKeys:         aws.Int32(int32(pageSize)),
			KeyMarker:       keyMarker,
			VersionIdMarker: versionIDMarker,
		})
		if err != nil {
			return nil, err
		}

		// delete markers are skipped, versions are always removed by id
		for _, v := range page.Versions {
			versions = append(versions, &ObjectVersion{
				Key:          aws.ToString(v.Key),
				VersionID:    aws.ToString(v.VersionId),
				Size:         aws.ToInt64(v.Size),
				IsLatest:     aws.ToBool(v.IsLatest),
				LastModified: aws.ToTime(v.LastModified),
			})
		}

		if !aws.ToBool(page.IsTruncated) || (limit > 0 && len(versions) >= limit) {
			break
		}
		keyMarker = page.NextKeyMarker
		versionIDMarker = page.NextVersionIdMarker
	}

	return versions, nil
}

func (s *S3Client) DeleteObjectVersion(ctx context.Context, key string, versionID string) error {
	input := &s3.DeleteObjectInput{
		Bucket: &s.config.BucketName,
		Key:    &key,
	}
	if versionID != "" {
		input.VersionId = aws.String(versionID)
	}
	_, err := s.s3Client.DeleteObject(ctx, input)
	return err
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

var _ ObjectStore = (*S3Client)(nil)
