package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PriceSync/app/models"
)

// ObjectAPI is the part of the S3 client the store uses.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store fetches snapshots from and archives them to one bucket.
type Store struct {
	api ObjectAPI
	cfg *Config
	now func() time.Time
}

// NewStore creates an S3-backed store from cfg.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("S3 snapshots are disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	log.Infof("[Snapshot] S3 store ready for bucket: %s", cfg.BucketName)
	return NewStoreWithAPI(client, cfg), nil
}

func NewStoreWithAPI(api ObjectAPI, cfg *Config) *Store {
	return &Store{api: api, cfg: cfg, now: time.Now}
}

// Fetch downloads and decodes the snapshot stored under key.
func (s *Store) Fetch(ctx context.Context, key string) ([]models.PriceListRow, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot s3://%s/%s: %w", s.cfg.BucketName, key, err)
	}
	defer out.Body.Close()

	rows, err := Decode(out.Body)
	if err != nil {
		return nil, fmt.Errorf("snapshot s3://%s/%s: %w", s.cfg.BucketName, key, err)
	}
	log.Infof("[Snapshot] Fetched %d rows from s3://%s/%s", len(rows), s.cfg.BucketName, key)
	return rows, nil
}

// Archive uploads rows under a time-based key and returns that key.
func (s *Store) Archive(ctx context.Context, rows []models.PriceListRow) (string, error) {
	body, err := Encode(rows)
	if err != nil {
		return "", err
	}
	key := s.cfg.ArchiveKey(s.now())

	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.BucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(body))),
		Metadata: map[string]string{
			"rows":          fmt.Sprintf("%d", len(rows)),
			"upload-source": "pricesync",
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive snapshot to s3://%s/%s: %w", s.cfg.BucketName, key, err)
	}

	log.Infof("[Snapshot] Archived %d rows to s3://%s/%s", len(rows), s.cfg.BucketName, key)
	return key, nil
}
