// Package storage archives finalized landed-cost snapshots in object storage.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cardshellz/echelon/internal/domain/inbound"
	"github.com/cardshellz/echelon/internal/domain/shared"
	infraconfig "github.com/cardshellz/echelon/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultKeyPrefix = "landed-costs"
	snapshotMIME     = "application/json"
)

// objectAPI is the subset of the S3 client the archive calls
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3SnapshotArchive writes each finalized snapshot as one JSON object at
// <prefix>/<shipment_id>/rev-<n>.json. Objects are never overwritten with
// different content because a revision is finalized at most once.
// Works against AWS S3 and S3-compatible stores such as MinIO.
type S3SnapshotArchive struct {
	client objectAPI
	bucket string
	prefix string
	logger *zap.Logger
}

// S3SnapshotArchiveOption is a functional option for S3SnapshotArchive
type S3SnapshotArchiveOption func(*S3SnapshotArchive)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3SnapshotArchiveOption {
	return func(a *S3SnapshotArchive) {
		a.logger = logger
	}
}

// withClient swaps the S3 client, for tests
func withClient(c objectAPI) S3SnapshotArchiveOption {
	return func(a *S3SnapshotArchive) {
		a.client = c
	}
}

// NewS3SnapshotArchive builds an archive from configuration. Without static
// keys the default AWS credential chain is used.
func NewS3SnapshotArchive(ctx context.Context, cfg *infraconfig.StorageConfig, opts ...S3SnapshotArchiveOption) (*S3SnapshotArchive, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return nil, errors.New("storage access key and secret must be set together")
	}

	a := &S3SnapshotArchive{
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.KeyPrefix, "/"),
		logger: zap.NewNop(),
	}
	if a.prefix == "" {
		a.prefix = defaultKeyPrefix
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.client != nil {
		return a, nil
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	a.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(cfg.Endpoint))
		}
	})
	return a, nil
}

func endpointURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return "https://" + endpoint
}

// Key returns the object key of a snapshot revision
func (a *S3SnapshotArchive) Key(shipmentID uuid.UUID, revision int) string {
	return SnapshotKey(a.prefix, shipmentID, revision)
}

// SnapshotKey is <prefix>/<shipment_id>/rev-<n>.json
func SnapshotKey(prefix string, shipmentID uuid.UUID, revision int) string {
	return path.Join(prefix, shipmentID.String(), fmt.Sprintf("rev-%d.json", revision))
}

// EnsureBucket creates the bucket if it does not exist. Call during startup.
func (a *S3SnapshotArchive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	a.logger.Info("Creating snapshot bucket", zap.String("bucket", a.bucket))
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Put uploads the snapshot and returns its s3:// location
func (a *S3SnapshotArchive) Put(ctx context.Context, snapshot *inbound.LandedCostSnapshot) (string, error) {
	if snapshot == nil || snapshot.ShipmentID == uuid.Nil {
		return "", errors.New("snapshot with a shipment id is required")
	}
	body, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	key := a.Key(snapshot.ShipmentID, snapshot.Revision)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(snapshotMIME),
		Metadata: map[string]string{
			"shipment-number": snapshot.ShipmentNumber,
			"revision":        fmt.Sprint(snapshot.Revision),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}
	a.logger.Debug("snapshot uploaded", zap.String("key", key), zap.Int("bytes", len(body)))
	return "s3://" + a.bucket + "/" + key, nil
}

// Get reads one snapshot revision back; a missing object is NOT_FOUND
func (a *S3SnapshotArchive) Get(ctx context.Context, shipmentID uuid.UUID, revision int) (*inbound.LandedCostSnapshot, error) {
	key := a.Key(shipmentID, revision)
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound,
				fmt.Sprintf("no landed-cost snapshot for shipment %s revision %d", shipmentID, revision))
		}
		return nil, fmt.Errorf("failed to download snapshot: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap inbound.LandedCostSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return &snap, nil
}

// Bucket returns the bucket name
func (a *S3SnapshotArchive) Bucket() string {
	return a.bucket
}

var _ inbound.SnapshotArchive = (*S3SnapshotArchive)(nil)
