package artifact

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awshttp "github.com/aws/smithy-go/transport/http"
	"github.com/wheelhouse-ci/wheelhouse/logger"
)

const (
	regionHintEnvVar = "WHEELHOUSE_S3_DEFAULT_REGION"
	s3EndpointEnvVar = "WHEELHOUSE_S3_ENDPOINT"
)

// wheelhouseEnvProvider sources static credentials from WHEELHOUSE_S3_* env
// vars, falling back to the SDK's default chain when they are unset. This
// lets a build use a dedicated wheel-store key without disturbing the AWS_*
// vars the rest of the job sees.
type wheelhouseEnvProvider struct {
	next aws.CredentialsProvider
}

func (p wheelhouseEnvProvider) Retrieve(ctx context.Context) (aws.Credentials, error) {
	creds := aws.Credentials{
		CanExpire:       false,
		AccessKeyID:     os.Getenv("WHEELHOUSE_S3_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("WHEELHOUSE_S3_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("WHEELHOUSE_S3_SESSION_TOKEN"),
		Source:          "wheelhouseEnvProvider",
	}

	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return p.next.Retrieve(ctx)
	}
	return creds, nil
}

// loadAWSConfig loads the default SDK config. If nothing resolved a region,
// it asks the EC2 instance metadata service and tries again.
func loadAWSConfig(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return cfg, fmt.Errorf("loading default AWS config: %w", err)
	}
	if cfg.Region != "" {
		return cfg, nil
	}

	client := imds.NewFromConfig(cfg)
	regionResult, err := client.GetRegion(ctx, &imds.GetRegionInput{})
	if err != nil {
		return cfg, fmt.Errorf("getting region from instance metadata: %w", err)
	}

	optFns = append(optFns, config.WithRegion(regionResult.Region))
	cfg, err = config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return cfg, fmt.Errorf("loading default AWS config with IMDS region: %w", err)
	}
	return cfg, nil
}

func awsS3Config(ctx context.Context, region string) (aws.Config, error) {
	profile := cmp.Or(os.Getenv("WHEELHOUSE_S3_PROFILE"), os.Getenv("AWS_PROFILE"))

	cfg, err := loadAWSConfig(ctx,
		config.WithRegion(region),
		config.WithSharedConfigProfile(profile),
	)
	if err != nil {
		return aws.Config{}, err
	}

	// WHEELHOUSE_S3_* credentials take precedence over the default chain.
	cfg.Credentials = wheelhouseEnvProvider{next: cfg.Credentials}

	return cfg, nil
}

// NewS3Client builds an S3 client for the given bucket and verifies that it
// can authenticate. The bucket's region is taken from WHEELHOUSE_S3_DEFAULT_REGION
// if set, and discovered through the S3 API otherwise.
func NewS3Client(ctx context.Context, l logger.Logger, bucket string) (*s3.Client, error) {
	var cfg aws.Config

	if regionHint := os.Getenv(regionHintEnvVar); regionHint != "" {
		l.Debug("Using bucket region %q from %s", regionHint, regionHintEnvVar)
		c, err := awsS3Config(ctx, regionHint)
		if err != nil {
			return nil, fmt.Errorf("could not load the AWS SDK config: %w", err)
		}
		cfg = c
	} else {
		// Two stages: create a client for the current/default region, then
		// use that to ask S3 where the bucket actually is.
		c, err := awsS3Config(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("could not load the AWS SDK config: %w", err)
		}
		cfg = c

		l.Debug("Discovered current region as %q", cfg.Region)

		bucketRegion, err := manager.GetBucketRegion(ctx, s3.NewFromConfig(cfg), bucket)
		if err != nil || bucketRegion == "" {
			l.Error("Could not discover region for bucket %q; falling back to %q. Set %s if that is wrong. (%v)",
				bucket, cfg.Region, regionHintEnvVar, err)
		} else {
			l.Debug("Discovered %q bucket region as %q", bucket, bucketRegion)
			cfg.Region = bucketRegion
		}
	}

	// An optional endpoint override, for S3-compatible servers like MinIO.
	// Those are commonly deployed without subdomain support, so switch to
	// path-style addressing too (the AWS CLI does the same).
	usePathStyle := false
	if endpoint := os.Getenv(s3EndpointEnvVar); endpoint != "" {
		l.Debug("Using S3 endpoint %q from %s (path-style addressing)", endpoint, s3EndpointEnvVar)
		cfg.BaseEndpoint = aws.String(endpoint)
		usePathStyle = true
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = usePathStyle
	})

	l.Debug("Testing AWS S3 credentials for bucket %q in region %q...", bucket, cfg.Region)

	// Probe authentication by listing the first zero objects of the bucket.
	_, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int32(0),
	})
	if isAWSAuthFailure(err) {
		return nil, fmt.Errorf("could not authenticate to AWS S3: set WHEELHOUSE_S3_ACCESS_KEY_ID and "+
			"WHEELHOUSE_S3_SECRET_ACCESS_KEY (or WHEELHOUSE_S3_PROFILE), use the standard AWS_* variables, "+
			"or run on EC2 with an instance profile that can reach bucket %q", bucket)
	}
	if err != nil {
		return nil, fmt.Errorf("could not s3:ListObjectsV2 in bucket %q in region %q: %w", bucket, cfg.Region, err)
	}

	return client, nil
}

func isAWSAuthFailure(err error) bool {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == http.StatusForbidden
	}
	return false
}
