package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scholchat/scholchat-api/internal/models"
	"github.com/scholchat/scholchat-api/pkg/jobs"
	"github.com/scholchat/scholchat-api/pkg/middleware/requestid"
)

const auditJobType = "audit_log"

// Audit dispatch outcomes.
const (
	AuditResultQueued  = "queued"
	AuditResultWritten = "written"
	AuditResultFailed  = "failed"
	AuditResultDropped = "dropped"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type auditMetrics interface {
	RecordAuditEvent(result string)
}

// AuditDispatcher writes audit entries off the request path through a job queue.
// Failures are logged and counted, never returned.
type AuditDispatcher struct {
	writer  auditWriter
	queue   *jobs.Queue
	metrics auditMetrics
	logger  *zap.Logger
}

// NewAuditDispatcher builds the dispatcher and its worker queue. Call Start before Record.
func NewAuditDispatcher(writer auditWriter, metrics auditMetrics, cfg jobs.QueueConfig, logger *zap.Logger) *AuditDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &AuditDispatcher{writer: writer, metrics: metrics, logger: logger}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	d.queue = jobs.NewQueue("audit", d.handle, cfg)
	return d
}

// Start launches the queue workers.
func (d *AuditDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the workers.
func (d *AuditDispatcher) Stop() {
	d.queue.Stop()
}

// Record enqueues an audit entry.
func (d *AuditDispatcher) Record(ctx context.Context, entry *models.AuditLog) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if err := d.queue.Enqueue(jobs.Job{ID: entry.ID, Type: auditJobType, Payload: entry}); err != nil {
		d.count(AuditResultDropped)
		d.logger.Warn("audit entry dropped",
			zap.String("action", entry.Action),
			zap.String("audit_id", entry.ID),
			zap.String("request_id", requestid.FromContext(ctx)),
			zap.Error(err),
		)
		return
	}
	d.count(AuditResultQueued)
}

func (d *AuditDispatcher) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.AuditLog)
	if !ok {
		d.count(AuditResultFailed)
		d.logger.Error("unexpected audit payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	if err := d.writer.CreateAuditLog(ctx, entry); err != nil {
		d.count(AuditResultFailed)
		return fmt.Errorf("write audit %s: %w", entry.Action, err)
	}
	d.count(AuditResultWritten)
	return nil
}

func (d *AuditDispatcher) count(result string) {
	if d.metrics != nil {
		d.metrics.RecordAuditEvent(result)
	}
}
