package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/muazhazali/lepakmasjid/internal/models"
	"github.com/muazhazali/lepakmasjid/internal/recordsource"
	"github.com/muazhazali/lepakmasjid/internal/safego"
	"github.com/muazhazali/lepakmasjid/internal/telemetry"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// shipTimeout bounds one asynchronous delivery to the configured shippers.
const shipTimeout = 10 * time.Second

// secretFields never appear in a snapshot.
var secretFields = []string{"password", "passwordConfirm", "oldPassword", "token", "refreshToken", "accessToken"}

// Logger writes audit entries to the audit_logs collection and forwards a copy
// to an optional Shipper. Every failure is logged and swallowed: auditing
// never fails the mutation it describes.
type Logger struct {
	src     recordsource.Source
	shipper Shipper
	logger  *slog.Logger
	now     func() time.Time
}

// NewLogger returns a Logger. shipper may be nil.
func NewLogger(src recordsource.Source, shipper Shipper, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{src: src, shipper: shipper, logger: logger, now: time.Now}
}

// Log records one mutation. The actor, client IP and user agent are read from
// ctx; without an actor nothing is written.
func (l *Logger) Log(ctx context.Context, action, entityType, entityID string, before, after any) {
	info, _ := RequestInfoFrom(ctx)
	if info.ActorID == "" {
		l.logger.WarnContext(ctx, "audit entry skipped: no authenticated actor",
			"action", action, "entity_type", entityType, "entity_id", entityID)
		return
	}

	entry := &Entry{
		ID:         uuid.NewString(),
		Timestamp:  l.now().UTC(),
		ActorID:    info.ActorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		IPAddress:  info.IPAddress,
		UserAgent:  info.UserAgent,
		Before:     Snapshot(before),
		After:      Snapshot(after),
	}

	fields := map[string]any{
		"actor_id":    entry.ActorID,
		"action":      entry.Action,
		"entity_type": entry.EntityType,
		"entity_id":   entry.EntityID,
		"timestamp":   models.NewDateTime(entry.Timestamp).String(),
		"ip_address":  entry.IPAddress,
		"user_agent":  entry.UserAgent,
	}
	if entry.Before != nil {
		fields["before"] = entry.Before
	}
	if entry.After != nil {
		fields["after"] = entry.After
	}

	if _, err := l.src.Create(ctx, recordsource.CollectionAuditLogs, fields); err != nil {
		telemetry.AuditWriteFailuresTotal.Inc()
		l.logger.ErrorContext(ctx, "failed to write audit log",
			"action", action, "entity_type", entityType, "entity_id", entityID, "error", err)
	}

	if l.shipper == nil {
		return
	}
	safego.Go("audit_ship", func() {
		shipCtx, cancel := context.WithTimeout(context.Background(), shipTimeout)
		defer cancel()
		if err := l.shipper.Ship(shipCtx, entry); err != nil {
			l.logger.Warn("failed to ship audit log", "entry_id", entry.ID, "error", err)
		}
	})
}

// Snapshot renders v as JSON with credential fields removed. nil, and values
// that encode to null, give nil.
func Snapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := codec.Marshal(v)
	if err != nil {
		return nil
	}
	var decoded any
	if err := codec.Unmarshal(raw, &decoded); err != nil || decoded == nil {
		return nil
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return raw
	}
	for _, k := range secretFields {
		delete(obj, k)
	}
	out, err := codec.Marshal(obj)
	if err != nil {
		return nil
	}
	return out
}
