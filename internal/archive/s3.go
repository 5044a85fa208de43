// Package archive uploads a run's output files (the three normalized
// outputs the pipeline driver passes it) to S3, when configured. This is
// the expansion's optional durability sink for SPEC_FULL.md §4.11 -- the
// pipeline driver itself has no S3 dependency, only the small Uploader
// interface it defines; this package is the concrete implementation,
// grounded on the teacher's archiveWorker.go (internal/repository) upload
// loop, generalized from its local-disk job archive to an S3 object sink.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/logweave/logweave/internal/logx"
)

// S3Archiver uploads local files under an "s3://bucket/prefix/" layout.
type S3Archiver struct {
	Bucket string
	Prefix string
	Client *s3.Client
}

// New constructs an S3Archiver from the standard AWS SDK v2 default
// credential chain (env vars, shared config, IMDS), scoped to region.
func New(ctx context.Context, bucket, prefix, region string) (*S3Archiver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("archive: loading AWS config: %w", err)
	}
	return &S3Archiver{Bucket: bucket, Prefix: prefix, Client: s3.NewFromConfig(cfg)}, nil
}

// UploadFiles uploads each local path under fileID's prefix, continuing on
// a per-file failure so one bad upload does not lose the rest.
func (a *S3Archiver) UploadFiles(ctx context.Context, fileID string, paths []string) error {
	var firstErr error
	for _, p := range paths {
		if err := a.uploadOne(ctx, fileID, p); err != nil {
			logx.Warnf("archive: uploading %s: %v", p, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (a *S3Archiver) uploadOne(ctx context.Context, fileID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	key := filepath.ToSlash(filepath.Join(a.Prefix, fileID, filepath.Base(path)))
	_, err = a.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	return err
}
