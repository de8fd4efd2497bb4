package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/meridianhq/meridian/internal/models"
)

// Options tunes dispatcher behavior. Zero values fall back to defaults.
type Options struct {
	Workers       int           // concurrent delivery workers (default 4)
	QueueSize     int           // buffered events before drops (default 256)
	Timeout       time.Duration // per-attempt HTTP timeout (default 10s)
	MaxRetries    uint64        // retries after the first attempt (default 5)
	RetryInterval time.Duration // initial backoff interval (default 500ms)
}

// Dispatcher fans resource events out to matching webhook registrations.
// Delivery is asynchronous: Publish enqueues and returns; workers deliver
// with exponential-backoff retry. Events that still fail after the retry
// budget are logged and dropped. There is no delivery guarantee beyond
// bounded retry.
type Dispatcher struct {
	registry *Registry
	client   *http.Client
	logger   *slog.Logger
	queue    chan models.Event

	workers       int
	maxRetries    uint64
	retryInterval time.Duration
}

// NewDispatcher creates a dispatcher over the registry. Call Run to start
// delivery workers.
func NewDispatcher(registry *Registry, logger *slog.Logger, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 5
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}
	return &Dispatcher{
		registry:      registry,
		client:        &http.Client{Timeout: opts.Timeout},
		logger:        logger,
		queue:         make(chan models.Event, opts.QueueSize),
		workers:       opts.Workers,
		maxRetries:    opts.MaxRetries,
		retryInterval: opts.RetryInterval,
	}
}

// Publish enqueues an event for delivery without blocking. When the queue is
// full the event is dropped and logged. Satisfies resourceservice.Notifier.
func (d *Dispatcher) Publish(evt models.Event) {
	select {
	case d.queue <- evt:
	default:
		d.logger.Warn("webhook queue full, dropping event",
			slog.String("type", evt.Type),
			slog.String("resource_id", evt.ResourceID))
	}
}

// Run starts the delivery workers and blocks until ctx is cancelled.
// Intended to run inside an errgroup.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case evt := <-d.queue:
					d.dispatch(ctx, evt)
				}
			}
		}()
	}
	wg.Wait()
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, evt models.Event) {
	hooks, err := d.registry.Matching(evt.Type)
	if err != nil {
		d.logger.Error("webhook lookup failed", slog.String("error", err.Error()))
		return
	}
	if len(hooks) == 0 {
		return
	}

	body, err := json.Marshal(evt)
	if err != nil {
		d.logger.Error("webhook payload marshal failed", slog.String("error", err.Error()))
		return
	}

	for _, hook := range hooks {
		d.deliver(ctx, hook, evt.Type, body)
	}
}

// deliver posts the signed payload, retrying transient failures with
// exponential backoff. Non-429 4xx responses are treated as permanent.
func (d *Dispatcher) deliver(ctx context.Context, hook models.Webhook, eventType string, body []byte) {
	op := func() error {
		return d.attempt(ctx, hook, eventType, body)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, d.maxRetries), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		d.logger.Error("webhook delivery failed",
			slog.String("webhook_id", hook.ID),
			slog.String("url", hook.URL),
			slog.String("event", eventType),
			slog.String("error", err.Error()))
		return
	}
	d.logger.Debug("webhook delivered",
		slog.String("webhook_id", hook.ID),
		slog.String("event", eventType))
}

func (d *Dispatcher) attempt(ctx context.Context, hook models.Webhook, eventType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", eventType)
	req.Header.Set("X-Webhook-ID", hook.ID)
	req.Header.Set(SignatureHeader, Sign(hook.Secret, body))

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return backoff.Permanent(fmt.Errorf("endpoint rejected delivery: %s", resp.Status))
	default:
		return fmt.Errorf("delivery attempt failed: %s", resp.Status)
	}
}
