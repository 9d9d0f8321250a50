package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/buildkite/roko"
	"github.com/dustin/go-humanize"
	"github.com/wheelhouse-ci/wheelhouse/logger"
)

type DownloaderConfig struct {
	// Where the wheels live, e.g. s3://my-wheels/nightly
	Destination string

	// The commit whose wheels to fetch.
	Commit string
}

// Downloader fetches a commit's wheels from the store into a local
// directory, mirroring the object keys as relative paths.
type Downloader struct {
	logger logger.Logger
	conf   DownloaderConfig
	dest   Destination
	client *s3.Client
}

func NewDownloader(ctx context.Context, l logger.Logger, c DownloaderConfig) (*Downloader, error) {
	if c.Commit == "" {
		return nil, fmt.Errorf("downloading from %q: no commit to look up", c.Destination)
	}
	dest, err := ParseDestination(c.Destination)
	if err != nil {
		return nil, err
	}

	r := roko.NewRetrier(
		roko.WithMaxAttempts(10),
		roko.WithStrategy(roko.Exponential(2*time.Second, 0)),
		roko.WithJitter(),
	)
	client, err := roko.DoFunc(ctx, r, func(*roko.Retrier) (*s3.Client, error) {
		return NewS3Client(ctx, l, dest.Bucket)
	})
	if err != nil {
		return nil, err
	}

	return &Downloader{
		logger: l,
		conf:   c,
		dest:   dest,
		client: client,
	}, nil
}

// Download lists everything under the commit's prefix and fetches it into
// dir, creating directories as needed.
func (d *Downloader) Download(ctx context.Context, dir string) error {
	prefix := d.dest.CommitPrefix(d.conf.Commit)

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.dest.Bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("listing s3://%s/%s: %w", d.dest.Bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	if len(keys) == 0 {
		return fmt.Errorf("no wheels stored for commit %s at %s", d.conf.Commit, d.dest)
	}

	d.logger.Info("Downloading %d files from %s (commit %s)", len(keys), d.dest, d.conf.Commit)

	downloader := manager.NewDownloader(d.client)

	for _, key := range keys {
		rel := strings.TrimPrefix(key, prefix)
		target := targetPath(dir, rel)
		if target == "" {
			// A zero-byte "directory" marker object.
			continue
		}

		r := roko.NewRetrier(
			roko.WithMaxAttempts(10),
			roko.WithStrategy(roko.Exponential(2*time.Second, 0)),
			roko.WithJitter(),
		)
		size, err := roko.DoFunc(ctx, r, func(*roko.Retrier) (int64, error) {
			n, err := d.downloadFile(ctx, downloader, key, target)
			if err != nil {
				d.logger.Warn("Error downloading %q (%s)", rel, err)
			}
			return n, err
		})
		if err != nil {
			return fmt.Errorf("downloading s3://%s/%s: %w", d.dest.Bucket, key, err)
		}

		d.logger.Info("Downloaded %q (%s)", rel, humanize.IBytes(uint64(size)))
	}

	return nil
}

// targetPath maps an object's path relative to the commit prefix onto a
// local path under dir. Object keys may legally contain "" and ".."
// components; those are dropped so the result cannot walk up out of dir.
// An empty result means the key holds no file path at all.
func targetPath(dir, rel string) string {
	var kept []string
	for _, c := range strings.Split(rel, "/") {
		if c == "" || c == "." || c == ".." {
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return ""
	}
	return filepath.Join(dir, filepath.Join(kept...))
}

func (d *Downloader) downloadFile(ctx context.Context, downloader *manager.Downloader, key, target string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(target)
	if err != nil {
		return 0, err
	}

	d.logger.Debug("Downloading s3://%s/%s to %q", d.dest.Bucket, key, target)

	n, err := downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(d.dest.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		f.Close()
		return 0, err
	}
	return n, f.Close()
}
