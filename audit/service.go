// Package audit persists combat telemetry asynchronously in batches so the
// arena tick never waits on the database.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kasuganosora/combatcore/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry is one combat event to be logged.
type Entry struct {
	EntityID   string
	EntityName string
	Variant    string
	Kind       string
	Tick       uint64
	Payload    interface{}
}

// Options tunes batching. Zero values use the defaults.
type Options struct {
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
	Retention     time.Duration // rows older than this are pruned; 0 keeps all
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 2 * time.Second
	}
	return o
}

// Service logs combat entries asynchronously in batches.
type Service struct {
	db       *gorm.DB
	opts     Options
	ch       chan *model.CombatLog
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	dropped  atomic.Uint64
	logger   *zap.Logger
}

// New creates a new audit Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	svc := &Service{
		db:     db,
		opts:   opts,
		ch:     make(chan *model.CombatLog, opts.QueueSize),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Log enqueues an entry for async DB write. It never blocks; when the queue
// is full the entry is dropped and false is returned.
func (svc *Service) Log(entry Entry) bool {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		svc.logger.Warn("combat log payload not encodable",
			zap.String("kind", entry.Kind), zap.Error(err))
		payload = []byte("null")
	}
	record := &model.CombatLog{
		EntityID:   entry.EntityID,
		EntityName: entry.EntityName,
		Variant:    entry.Variant,
		Kind:       entry.Kind,
		Tick:       entry.Tick,
		Payload:    datatypes.JSON(payload),
	}
	select {
	case <-svc.stopCh:
		return false
	default:
	}
	select {
	case svc.ch <- record:
		return true
	default:
		if svc.dropped.Add(1)%100 == 1 {
			svc.logger.Warn("combat log queue full, dropping entries",
				zap.String("kind", entry.Kind), zap.Uint64("dropped", svc.dropped.Load()))
		}
		return false
	}
}

// Dropped counts entries lost to a full queue.
func (svc *Service) Dropped() uint64 { return svc.dropped.Load() }

// Stop flushes remaining entries and shuts down the worker. It blocks until
// the worker has finished or ctx is done.
func (svc *Service) Stop(ctx context.Context) {
	svc.stopOnce.Do(func() { close(svc.stopCh) })
	if ctx == nil {
		ctx = context.Background()
	}
	done := make(chan struct{})
	go func() {
		svc.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		svc.logger.Warn("combat log flush abandoned", zap.Error(ctx.Err()))
	}
}

// Recent returns the newest rows for one entity, newest first. An empty
// entityID matches every entity.
func (svc *Service) Recent(ctx context.Context, entityID string, limit int) ([]model.CombatLog, error) {
	if limit <= 0 {
		limit = 50
	}
	q := svc.db.WithContext(ctx).Order("id DESC").Limit(limit)
	if entityID != "" {
		q = q.Where("entity_id = ?", entityID)
	}
	var rows []model.CombatLog
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Prune deletes rows older than the retention window.
func (svc *Service) Prune(ctx context.Context) (int64, error) {
	if svc.opts.Retention <= 0 {
		return 0, nil
	}
	return model.PruneCombatLogs(svc.db.WithContext(ctx), time.Now().Add(-svc.opts.Retention))
}

// PruneTask is a scheduler ticker body around Prune.
func (svc *Service) PruneTask(ctx context.Context) func() {
	return func() {
		n, err := svc.Prune(ctx)
		if err != nil {
			svc.logger.Warn("combat log prune failed", zap.Error(err))
			return
		}
		if n > 0 {
			svc.logger.Info("combat log pruned", zap.Int64("rows", n), zap.Duration("retention", svc.opts.Retention))
		}
	}
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(svc.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]*model.CombatLog, 0, svc.opts.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.CreateInBatches(&batch, svc.opts.BatchSize).Error; err != nil {
			svc.logger.Error("combat log batch write failed", zap.Int("rows", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= svc.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			// Drain remaining entries.
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
					if len(batch) >= svc.opts.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}
