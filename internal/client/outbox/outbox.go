// Package outbox is the device's durable queue of stock-affecting actions
// taken while the server is unreachable.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rl1809/pos-inventory/internal/core/domain"
)

// Sender submits one event to the server. A nil error means the server has
// applied the event, now or earlier.
type Sender interface {
	SubmitEvent(ctx context.Context, ev domain.InboundEvent) error
}

type record struct {
	Seq       uint64 `gorm:"primaryKey;autoIncrement"`
	EventID   string `gorm:"size:64;not null;uniqueIndex"`
	EventType string `gorm:"size:64;not null"`
	Payload   []byte `gorm:"not null"`
	CreatedAt time.Time
	Attempts  int
	LastError string
	Status    string `gorm:"size:16;not null;index"`
}

func (record) TableName() string {
	return "outbox_events"
}

func (r record) toDomain() domain.OutboxEvent {
	return domain.OutboxEvent{
		ID:        r.EventID,
		Seq:       r.Seq,
		EventType: r.EventType,
		Payload:   json.RawMessage(r.Payload),
		CreatedAt: r.CreatedAt,
		Attempts:  r.Attempts,
		LastError: r.LastError,
		Status:    domain.OutboxStatus(r.Status),
	}
}

type FlushReport struct {
	Delivered int
	Parked    int
	Pending   int
	// SendErr is the transport error that stopped the flush, if any
	SendErr error
}

type Outbox struct {
	db       *gorm.DB
	sender   Sender
	storeID  string
	deviceID string
	logger   *zap.Logger
	flushMu  sync.Mutex
	now      func() time.Time
}

// Open opens (or creates) the SQLite file at path. Use ":memory:" in tests.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open outbox: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One connection keeps writes ordered and lets ":memory:" work.
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func New(db *gorm.DB, sender Sender, storeID, deviceID string, logger *zap.Logger) (*Outbox, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("migrate outbox: %w", err)
	}
	return &Outbox{
		db:       db,
		sender:   sender,
		storeID:  storeID,
		deviceID: deviceID,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Enqueue appends an event with a fresh id.
func (o *Outbox) Enqueue(ctx context.Context, eventType string, payload any) (domain.OutboxEvent, error) {
	return o.EnqueueWithID(ctx, uuid.NewString(), eventType, payload)
}

// EnqueueWithID appends an event under an id the caller already used, so a
// replay of an attempt the server may have committed is deduplicated.
// Enqueuing an id that is already queued is a no-op.
func (o *Outbox) EnqueueWithID(ctx context.Context, eventID, eventType string, payload any) (domain.OutboxEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return domain.OutboxEvent{}, fmt.Errorf("encode payload: %w", err)
	}

	var existing record
	err = o.db.WithContext(ctx).Where("event_id = ?", eventID).Take(&existing).Error
	if err == nil {
		return existing.toDomain(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.OutboxEvent{}, fmt.Errorf("lookup outbox event: %w", err)
	}

	rec := record{
		EventID:   eventID,
		EventType: eventType,
		Payload:   raw,
		CreatedAt: o.now().UTC(),
		Status:    string(domain.OutboxPending),
	}
	if err := o.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.OutboxEvent{}, fmt.Errorf("enqueue: %w", err)
	}
	o.logger.Info("event queued offline",
		zap.String("event_id", eventID),
		zap.String("event_type", eventType),
		zap.Uint64("seq", rec.Seq))
	return rec.toDomain(), nil
}

// Flush submits pending events in enqueue order. Acknowledged events are
// deleted. A business rejection parks the event and moves on; a transport
// error stops the flush and leaves that event and everything after it queued.
func (o *Outbox) Flush(ctx context.Context) (FlushReport, error) {
	o.flushMu.Lock()
	defer o.flushMu.Unlock()

	var report FlushReport
	pending, err := o.Pending(ctx)
	if err != nil {
		return report, err
	}

	for i, rec := range pending {
		sendErr := o.sender.SubmitEvent(ctx, domain.InboundEvent{
			EventID:   rec.ID,
			DeviceID:  o.deviceID,
			StoreID:   o.storeID,
			EventType: rec.EventType,
			Payload:   rec.Payload,
		})

		switch {
		case sendErr == nil:
			if err := o.db.WithContext(ctx).Where("seq = ?", rec.Seq).Delete(&record{}).Error; err != nil {
				return report, fmt.Errorf("delete delivered event: %w", err)
			}
			report.Delivered++

		case domain.IsRejection(sendErr):
			if err := o.mark(ctx, rec.Seq, domain.OutboxParked, sendErr); err != nil {
				return report, err
			}
			report.Parked++
			o.logger.Warn("event rejected by server, parked",
				zap.String("event_id", rec.ID),
				zap.String("event_type", rec.EventType),
				zap.Error(sendErr))

		default:
			if err := o.mark(ctx, rec.Seq, domain.OutboxPending, sendErr); err != nil {
				return report, err
			}
			report.Pending = len(pending) - i
			report.SendErr = sendErr
			o.logger.Info("outbox flush interrupted",
				zap.String("event_id", rec.ID),
				zap.Int("pending", report.Pending),
				zap.Error(sendErr))
			return report, nil
		}
	}
	return report, nil
}

func (o *Outbox) mark(ctx context.Context, seq uint64, status domain.OutboxStatus, cause error) error {
	err := o.db.WithContext(ctx).Model(&record{}).Where("seq = ?", seq).Updates(map[string]any{
		"status":     string(status),
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": cause.Error(),
	}).Error
	if err != nil {
		return fmt.Errorf("update outbox event: %w", err)
	}
	return nil
}

func (o *Outbox) Pending(ctx context.Context) ([]domain.OutboxEvent, error) {
	return o.list(ctx, domain.OutboxPending)
}

// Parked lists events the server rejected. They stay until cleared.
func (o *Outbox) Parked(ctx context.Context) ([]domain.OutboxEvent, error) {
	return o.list(ctx, domain.OutboxParked)
}

func (o *Outbox) list(ctx context.Context, status domain.OutboxStatus) ([]domain.OutboxEvent, error) {
	var recs []record
	if err := o.db.WithContext(ctx).Where("status = ?", string(status)).Order("seq").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list outbox: %w", err)
	}
	out := make([]domain.OutboxEvent, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (o *Outbox) Len(ctx context.Context) (int64, error) {
	var n int64
	if err := o.db.WithContext(ctx).Model(&record{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count outbox: %w", err)
	}
	return n, nil
}

// Clear drops every queued and parked event.
func (o *Outbox) Clear(ctx context.Context) error {
	o.flushMu.Lock()
	defer o.flushMu.Unlock()
	return o.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&record{}).Error
}

// Run flushes every interval until ctx is done.
func (o *Outbox) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := o.Flush(ctx)
			if err != nil && ctx.Err() == nil {
				o.logger.Error("outbox flush failed", zap.Error(err))
				continue
			}
			if report.Delivered > 0 || report.Parked > 0 {
				o.logger.Info("outbox flushed",
					zap.Int("delivered", report.Delivered),
					zap.Int("parked", report.Parked),
					zap.Int("pending", report.Pending))
			}
		}
	}
}
