package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// UploadTimeout bounds a single archive upload.
const UploadTimeout = 15 * time.Second

// Archiver stores call payloads (recording metadata, transcripts) for audit.
// Archiving is best-effort: a failed upload never fails the billing path.
type Archiver interface {
	StoreCallPayload(ctx context.Context, eventID string, payload []byte) error
}

// S3Archiver writes payloads to an S3-compatible bucket, keyed by event id.
type S3Archiver struct {
	client *s3.Client
	bucket string
	logger zerolog.Logger
}

// NewS3Archiver creates an Archiver on the given bucket.
func NewS3Archiver(client *s3.Client, bucket string, logger zerolog.Logger) *S3Archiver {
	return &S3Archiver{
		client: client,
		bucket: bucket,
		logger: logger.With().Str("component", "s3_archiver").Logger(),
	}
}

func (a *S3Archiver) StoreCallPayload(ctx context.Context, eventID string, payload []byte) error {
	key := fmt.Sprintf("calls/%s/%s.json", time.Now().UTC().Format("2006/01/02"), eventID)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive call payload for event %s: %w", eventID, err)
	}
	a.logger.Debug().Str("event_id", eventID).Str("key", key).Msg("Archived call payload")
	return nil
}
