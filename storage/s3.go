package storage

import (
	"bytes"
	"context"
	"fmt"

	"gitpress/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectStore holds the published assets: article images and the markdown
// snapshot written at approval time.
type ObjectStore interface {
	PutImage(ctx context.Context, authorID, slug, filename string, data []byte, contentType string) (string, error)
	PutSnapshot(ctx context.Context, authorID, slug, markdown string) error
	DeleteAll(ctx context.Context, authorID, slug string) error
}

// NewS3Client builds an S3 client against the configured endpoint.
func NewS3Client(cfg *config.Config) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.S3URL,
				SigningRegion:     cfg.S3Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3Key, cfg.S3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}

// S3Store implements ObjectStore on a single bucket.
type S3Store struct {
	Client *s3.Client
	Config *config.Config
}

func NewS3Store(client *s3.Client, cfg *config.Config) *S3Store {
	return &S3Store{Client: client, Config: cfg}
}

func imagePrefix(authorID, slug string) string {
	return fmt.Sprintf("images/%s/%s/", authorID, slug)
}

func snapshotKey(authorID, slug string) string {
	return fmt.Sprintf("articles/%s/%s.md", authorID, slug)
}

// PutImage stores one image under the per-author/per-article prefix and
// returns the public URL it is served from.
func (s *S3Store) PutImage(ctx context.Context, authorID, slug, filename string, data []byte, contentType string) (string, error) {
	key := imagePrefix(authorID, slug) + filename
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Config.S3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	return s.Config.PublicImageURL(key), nil
}

// PutSnapshot writes the approved markdown next to the article's images.
func (s *S3Store) PutSnapshot(ctx context.Context, authorID, slug, markdown string) error {
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Config.S3Bucket),
		Key:         aws.String(snapshotKey(authorID, slug)),
		Body:        bytes.NewReader([]byte(markdown)),
		ContentType: aws.String("text/markdown"),
	})
	return err
}

// DeleteAll purges the article's images and its markdown snapshot.
func (s *S3Store) DeleteAll(ctx context.Context, authorID, slug string) error {
	prefix := imagePrefix(authorID, slug)
	var continuation *string
	for {
		list, err := s.Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.Config.S3Bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return err
		}
		for _, object := range list.Contents {
			_, err := s.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.Config.S3Bucket),
				Key:    object.Key,
			})
			if err != nil {
				return err
			}
		}
		if list.IsTruncated == nil || !*list.IsTruncated {
			break
		}
		continuation = list.NextContinuationToken
	}

	_, err := s.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Config.S3Bucket),
		Key:    aws.String(snapshotKey(authorID, slug)),
	})
	return err
}
