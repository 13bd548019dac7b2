package audit

import (
	"context"
	"sync"
	"sync/atomic"

	"wifidog-auth/internal/common/logger"
	"wifidog-auth/internal/common/metrics"
	"wifidog-auth/internal/models"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	BufferSize int
	DropIfFull bool
}

// Dispatcher forwards entries to a sink from a single background goroutine so
// request handlers never wait on audit persistence.
type Dispatcher struct {
	cfg       Config
	sink      Sink
	logger    logger.Logger
	ch        chan *models.AuthLogEntry
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func NewDispatcher(cfg Config, sink Sink, log logger.Logger) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:    cfg,
		sink:   sink,
		logger: log,
		ch:     make(chan *models.AuthLogEntry, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case entry := <-d.ch:
			d.write(entry)
		case <-d.done:
			for {
				select {
				case entry := <-d.ch:
					d.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) write(entry *models.AuthLogEntry) {
	if err := d.sink.Append(context.Background(), entry); err != nil {
		fields := Fields(entry)
		fields["error"] = err.Error()
		d.logger.Warn("Failed to persist auth log", fields)
	}
}

// Append enqueues entry. With DropIfFull a full buffer drops the entry;
// otherwise it blocks until there is room or ctx is done.
func (d *Dispatcher) Append(ctx context.Context, entry *models.AuthLogEntry) error {
	if d.closed.Load() {
		return nil
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- entry:
		case <-d.done:
		default:
			d.dropped.Add(1)
			metrics.AuditDropped.Inc()
		}
		return nil
	}

	select {
	case d.ch <- entry:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return nil
	}
}

// Close stops accepting entries and drains the buffer.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}
