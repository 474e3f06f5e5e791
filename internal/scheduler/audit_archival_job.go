package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/fundops/compliance-engine/internal/compliance/alertregistry"
	"github.com/fundops/compliance-engine/internal/domain"
)

// Uploader is the subset of the S3 manager this job needs, so tests can
// substitute a fake without spinning up S3.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// AuditArchivalJob exports the previous day's alert activity to S3 as a
// newline-delimited JSON object, one per calendar day, so the alert table
// stays a live operational store while still leaving a durable audit copy
// off the compliance host.
type AuditArchivalJob struct {
	alerts   *alertregistry.Registry
	uploader Uploader
	bucket   string
	log      zerolog.Logger
}

// NewAuditArchivalJob builds an AuditArchivalJob uploading through the
// AWS SDK's default credential chain (environment, shared config, or
// instance role) resolved for the given region.
func NewAuditArchivalJob(ctx context.Context, alerts *alertregistry.Registry, bucket, region string, log zerolog.Logger) (*AuditArchivalJob, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)

	return &AuditArchivalJob{
		alerts:   alerts,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		log:      log.With().Str("job", "audit_archival").Logger(),
	}, nil
}

func (j *AuditArchivalJob) Name() string { return "audit_archival" }

func (j *AuditArchivalJob) Run(ctx context.Context) error {
	end := domain.Now()
	start := end.AddDate(0, 0, -1)

	alerts, err := j.alerts.List(ctx, alertregistry.Filter{From: &start, To: &end})
	if err != nil {
		return fmt.Errorf("list alerts for archival: %w", err)
	}
	if len(alerts) == 0 {
		j.log.Debug().Msg("no alerts to archive")
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, a := range alerts {
		if err := enc.Encode(a); err != nil {
			return fmt.Errorf("encode alert %d: %w", a.AlertID, err)
		}
	}

	key := fmt.Sprintf("alerts/%s.ndjson", start.Format("2006-01-02"))
	_, err = j.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &j.bucket,
		Key:    &key,
		Body:   &buf,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	j.log.Info().Str("key", key).Int("alerts", len(alerts)).Msg("audit archive uploaded")
	return nil
}
