package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/edvin/integrations/internal/model"
	"github.com/edvin/integrations/internal/platform"
)

// Execer is the single database operation the recorder needs.
// *pgxpool.Pool satisfies this interface.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Recorder is an async best-effort audit event writer. Recording never
// blocks the caller; when the buffer is full the event is dropped with a
// warning. Events are kept independently of credential rows, so history
// survives reconnects, expiry, and disconnects.
type Recorder struct {
	db     Execer
	logger zerolog.Logger
	ch     chan model.AuditEvent
	done   chan struct{}
}

func NewRecorder(db Execer, logger zerolog.Logger) *Recorder {
	r := &Recorder{
		db:     db,
		logger: logger,
		ch:     make(chan model.AuditEvent, 1024),
		done:   make(chan struct{}),
	}
	go r.drain()
	return r
}

func (r *Recorder) drain() {
	defer close(r.done)
	for event := range r.ch {
		// context.Background since this runs async of any request.
		_, err := r.db.Exec(context.Background(),
			`INSERT INTO audit_events (id, tenant_id, project_id, provider, action, detail, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, now())`,
			event.ID, event.TenantID, event.ProjectID, event.Provider, event.Action, event.Detail,
		)
		if err != nil {
			r.logger.Error().Err(err).
				Str("action", event.Action).
				Str("provider", event.Provider).
				Msg("failed to write audit event")
		}
	}
}

// Record queues an audit event for writing. Non-blocking.
func (r *Recorder) Record(event model.AuditEvent) {
	if event.ID == "" {
		event.ID = platform.NewID()
	}
	select {
	case r.ch <- event:
	default:
		r.logger.Warn().
			Str("action", event.Action).
			Msg("audit buffer full, dropping event")
	}
}

// Close stops accepting events and waits for queued events to flush.
func (r *Recorder) Close() {
	close(r.ch)
	<-r.done
}
