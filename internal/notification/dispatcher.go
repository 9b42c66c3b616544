package notification

import (
	"context"
	"sync"
	"time"

	"github.com/agrisense/farm-advisor/internal/conf"
	"github.com/agrisense/farm-advisor/internal/errors"
	"github.com/agrisense/farm-advisor/internal/logger"
)

const (
	DefaultQueueSize   = 64
	defaultSendTimeout = 15 * time.Second
	defaultMaxRetries  = 2
	defaultRetryDelay  = 2 * time.Second
)

// Dispatcher delivers events to providers from a single background worker.
// Publish never blocks the request path: when the queue is full the event is
// dropped and counted.
type Dispatcher struct {
	providers   []Provider
	recorder    Recorder
	queue       chan *Event
	sendTimeout time.Duration
	maxRetries  int
	retryDelay  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRecorder reports delivery outcomes to r.
func WithRecorder(r Recorder) DispatcherOption {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithSendTimeout bounds each provider attempt.
func WithSendTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.sendTimeout = timeout
		}
	}
}

// WithRetry retries network failures up to maxRetries extra times.
func WithRetry(maxRetries int, delay time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.maxRetries = max(maxRetries, 0)
		d.retryDelay = delay
	}
}

// NewDispatcher starts a worker draining a queue of queueSize events.
func NewDispatcher(queueSize int, providers []Provider, opts ...DispatcherOption) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		providers:   providers,
		queue:       make(chan *Event, queueSize),
		sendTimeout: defaultSendTimeout,
		maxRetries:  defaultMaxRetries,
		retryDelay:  defaultRetryDelay,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	go d.run()
	return d
}

// NewFromSettings builds the enabled providers and starts a dispatcher.
// A provider that fails to initialize is logged and skipped.
func NewFromSettings(settings *conf.NotificationSettings, recorder Recorder) *Dispatcher {
	log := GetLogger()
	var providers []Provider

	if settings.Shoutrrr.Enabled {
		p, err := NewShoutrrrProvider(settings.Shoutrrr.URLs, settings.Shoutrrr.Timeout)
		if err != nil {
			log.Error("Shoutrrr provider disabled", logger.Error(err))
		} else {
			providers = append(providers, p)
		}
	}

	if settings.MQTT.Enabled {
		p, err := NewMQTTProvider(settings.MQTT)
		if err != nil {
			log.Error("MQTT provider disabled", logger.String("broker", settings.MQTT.Broker), logger.Error(err))
		} else {
			providers = append(providers, p)
		}
	}

	d := NewDispatcher(settings.QueueSize, providers, WithRecorder(recorder))
	log.Info("Notification dispatcher started", logger.Int("providers", len(providers)))
	return d
}

// Providers returns the names of the registered providers.
func (d *Dispatcher) Providers() []string {
	if d == nil {
		return nil
	}
	names := make([]string, 0, len(d.providers))
	for _, p := range d.providers {
		names = append(names, p.Name())
	}
	return names
}

// Publish queues e for delivery. It reports false when the event was dropped
// because the dispatcher is closed, nil, or full.
func (d *Dispatcher) Publish(e *Event) bool {
	if d == nil || e == nil || len(d.providers) == 0 {
		return false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	select {
	case d.queue <- e:
		return true
	default:
		GetLogger().Warn("Notification queue full, dropping event",
			logger.String("event_id", e.ID),
			logger.String("kind", string(e.Kind)))
		if d.recorder != nil {
			d.recorder.RecordDropped()
		}
		return false
	}
}

// Close stops accepting events, waits for queued ones to be delivered and
// closes the providers. If ctx ends first, pending deliveries are abandoned.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	var drainErr error
	select {
	case <-d.done:
	case <-ctx.Done():
		d.cancel()
		<-d.done
		drainErr = ctx.Err()
	}
	d.cancel()

	var errs []error
	if drainErr != nil {
		errs = append(errs, drainErr)
	}
	for _, p := range d.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.queue {
		if d.ctx.Err() != nil {
			continue
		}
		d.dispatch(e)
	}
}

func (d *Dispatcher) dispatch(e *Event) {
	for _, p := range d.providers {
		if !p.Supports(e) {
			continue
		}
		err := d.deliver(p, e)
		if d.recorder != nil {
			d.recorder.RecordDelivery(p.Name(), err)
		}
		if err != nil {
			GetLogger().Error("Notification delivery failed",
				logger.String("provider", p.Name()),
				logger.String("event_id", e.ID),
				logger.Error(err))
		}
	}
}

func (d *Dispatcher) deliver(p Provider, e *Event) error {
	var err error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(d.retryDelay):
			case <-d.ctx.Done():
				return err
			}
		}

		ctx, cancel := context.WithTimeout(d.ctx, d.sendTimeout)
		err = p.Send(ctx, e)
		cancel()

		if err == nil || !errors.IsCategory(err, errors.CategoryNetwork) {
			return err
		}
		GetLogger().Debug("Retrying notification",
			logger.String("provider", p.Name()),
			logger.Int("attempt", attempt+1),
			logger.Error(err))
	}
	return err
}
