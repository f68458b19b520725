package blob

import "fmt"

const b2EndpointFormat = "https://s3.%s.backblazeb2.com"

type S3Config struct {
	BucketName        string
	Region            string
	AccessKey         string
	SecretKey         string
	Endpoint          string
	PathStyle         bool
	UploadConcurrency int
}

// WithS3Config creates a configuration for an AWS S3 bucket
func WithS3Config(bucketName, region, accessKey, secretKey string) *S3Config {
	return &S3Config{
		BucketName: bucketName,
		Region:     region,
		AccessKey:  accessKey,
		SecretKey:  secretKey,
	}
}

// WithB2Config creates a configuration for a Backblaze B2 bucket reached
// through its S3 compatible API. region is the cluster id, e.g. us-west-004.
func WithB2Config(bucketName, region, keyID, applicationKey string) *S3Config {
	return &S3Config{
		BucketName: bucketName,
		Region:     region,
		AccessKey:  keyID,
		SecretKey:  applicationKey,
		Endpoint:   B2Endpoint(region),
	}
}

// WithMinioConfig creates a configuration for a Minio bucket
func WithMinioConfig(url, bucketName, accessKey, secretKey string) *S3Config {
	return &S3Config{
		BucketName: bucketName,
		Region:     "us-east-1",
		AccessKey:  accessKey,
		SecretKey:  secretKey,
		Endpoint:   url,
		PathStyle:  true,
	}
}

func B2Endpoint(region string) string {
	return fmt.Sprintf(b2EndpointFormat, region)
}
