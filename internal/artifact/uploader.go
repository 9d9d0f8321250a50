package artifact

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/buildkite/roko"
	"github.com/dustin/go-humanize"
	"github.com/wheelhouse-ci/wheelhouse/logger"
)

type UploaderConfig struct {
	// Where the wheels go, e.g. s3://my-wheels/nightly
	Destination string

	// The commit the wheels were built from. Objects are keyed underneath it.
	Commit string
}

// Uploader pushes a local directory of built wheels to the store,
// preserving relative paths under prefix/commit/.
type Uploader struct {
	logger logger.Logger
	conf   UploaderConfig
	dest   Destination
	client *s3.Client
}

func NewUploader(ctx context.Context, l logger.Logger, c UploaderConfig) (*Uploader, error) {
	if c.Commit == "" {
		return nil, fmt.Errorf("uploading to %q: no commit to key the upload by", c.Destination)
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

	return &Uploader{
		logger: l,
		conf:   c,
		dest:   dest,
		client: client,
	}, nil
}

// localFile is one file found in the upload directory.
type localFile struct {
	// Absolute path on disk.
	absolutePath string

	// Path relative to the upload root, always forward-slashed. Becomes part
	// of the object key.
	path string

	size int64
}

// Upload walks dir recursively and uploads everything in it.
func (u *Uploader) Upload(ctx context.Context, dir string) error {
	files, err := collectFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files to upload in %q", dir)
	}

	u.logger.Info("Uploading %d files to %s (commit %s)", len(files), u.dest, u.conf.Commit)

	uploader := manager.NewUploader(u.client)

	for _, file := range files {
		key := u.dest.KeyFor(u.conf.Commit, file.path)

		r := roko.NewRetrier(
			roko.WithMaxAttempts(10),
			roko.WithStrategy(roko.Exponential(2*time.Second, 0)),
			roko.WithJitter(),
		)
		err := r.DoWithContext(ctx, func(rtr *roko.Retrier) error {
			if err := u.uploadFile(ctx, uploader, file, key); err != nil {
				u.logger.Warn("Error uploading %q (%s)", file.path, err)
				return err
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("uploading %q to s3://%s/%s: %w", file.path, u.dest.Bucket, key, err)
		}

		u.logger.Info("Uploaded %q (%s)", file.path, humanize.IBytes(uint64(file.size)))
	}

	return nil
}

func (u *Uploader) uploadFile(ctx context.Context, uploader *manager.Uploader, file localFile, key string) error {
	f, err := os.Open(file.absolutePath)
	if err != nil {
		return fmt.Errorf("opening %q: %w", file.absolutePath, err)
	}
	defer f.Close()

	u.logger.Debug("Uploading %q to s3://%s/%s", file.path, u.dest.Bucket, key)

	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.dest.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentTypeFor(file.path)),
		Body:        f,
	})
	return err
}

// collectFiles finds every regular file under dir, with paths relative to
// dir. Symlinks are not followed.
func collectFiles(dir string) ([]localFile, error) {
	var files []localFile
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		files = append(files, localFile{
			absolutePath: abs,
			path:         filepath.ToSlash(rel),
			size:         info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %q: %w", dir, err)
	}
	return files, nil
}

func contentTypeFor(p string) string {
	if mt := mime.TypeByExtension(filepath.Ext(p)); mt != "" {
		return mt
	}
	return "binary/octet-stream"
}
