package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/edvin/integrations/internal/model"
)

// S3Client is the subset of the S3 API the archiver uses.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client returns an S3 client for the archive endpoint.
func NewS3Client(endpoint, accessKey, secretKey string) *s3.Client {
	return s3.New(s3.Options{
		BaseEndpoint: aws.String(endpoint),
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		UsePathStyle: true,
	})
}

// AuditArchive contains activities that export old audit events to object
// storage and prune them from the database.
type AuditArchive struct {
	db     DB
	s3     S3Client
	bucket string
	logger zerolog.Logger
}

// NewAuditArchive creates a new AuditArchive activity struct.
func NewAuditArchive(db DB, s3c S3Client, bucket string, logger zerolog.Logger) *AuditArchive {
	return &AuditArchive{
		db:     db,
		s3:     s3c,
		bucket: bucket,
		logger: logger.With().Str("component", "audit-archive").Logger(),
	}
}

// ArchiveResult reports one archival run.
type ArchiveResult struct {
	Exported int    `json:"exported"`
	Key      string `json:"key,omitempty"`
}

// ArchiveOldAuditEvents exports audit events older than retentionDays to S3
// as a JSON document, then deletes exactly the exported rows. Rows are
// pruned only after a successful upload.
func (a *AuditArchive) ArchiveOldAuditEvents(ctx context.Context, retentionDays int) (ArchiveResult, error) {
	rows, err := a.db.Query(ctx,
		`SELECT id, tenant_id, project_id, provider, action, detail, created_at
		 FROM audit_events WHERE created_at < now() - make_interval(days => $1)
		 ORDER BY created_at`,
		retentionDays,
	)
	if err != nil {
		return ArchiveResult{}, fmt.Errorf("query old audit events: %w", err)
	}
	defer rows.Close()

	var events []model.AuditEvent
	var ids []string
	for rows.Next() {
		var e model.AuditEvent
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ProjectID, &e.Provider, &e.Action, &e.Detail, &e.CreatedAt); err != nil {
			return ArchiveResult{}, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, e)
		ids = append(ids, e.ID)
	}
	if err := rows.Err(); err != nil {
		return ArchiveResult{}, fmt.Errorf("iterate old audit events: %w", err)
	}

	if len(events) == 0 {
		return ArchiveResult{Exported: 0}, nil
	}

	body, err := json.Marshal(events)
	if err != nil {
		return ArchiveResult{}, fmt.Errorf("marshal audit archive: %w", err)
	}

	key := fmt.Sprintf("audit-archive/%s.json", time.Now().UTC().Format("2006-01-02T15-04-05Z"))
	_, err = a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return ArchiveResult{}, fmt.Errorf("upload audit archive %s: %w", key, err)
	}

	_, err = a.db.Exec(ctx, `DELETE FROM audit_events WHERE id = ANY($1)`, ids)
	if err != nil {
		// The export succeeded; the rows will be re-exported next run.
		return ArchiveResult{}, fmt.Errorf("prune archived audit events: %w", err)
	}

	a.logger.Info().Int("exported", len(events)).Str("key", key).Msg("archived audit events")
	return ArchiveResult{Exported: len(events), Key: key}, nil
}
