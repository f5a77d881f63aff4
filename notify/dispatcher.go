// Package notify turns engine events into background web-push deliveries.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"roommatch/logging"
)

// Task is a background job with an opaque payload.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes a Task. Handlers must be idempotent; a returned error
// asks the dispatcher to retry where it supports that.
type Handler func(ctx context.Context, t Task) error

type Dispatcher interface {
	Register(taskType string, h Handler)
	Dispatch(ctx context.Context, t Task) error
	Close() error
}

var ErrNoHandler = errors.New("notify: no handler registered")

// InlineDispatcher runs handlers in-process on their own goroutine. Close
// waits for in-flight tasks.
type InlineDispatcher struct {
	logger   logging.Logger
	timeout  time.Duration
	mu       sync.RWMutex
	handlers map[string]Handler
	wg       sync.WaitGroup
}

func NewInlineDispatcher(logger logging.Logger) *InlineDispatcher {
	return &InlineDispatcher{logger: logger, timeout: 30 * time.Second, handlers: make(map[string]Handler)}
}

var _ Dispatcher = (*InlineDispatcher)(nil)

func (d *InlineDispatcher) Register(taskType string, h Handler) {
	d.mu.Lock()
	d.handlers[taskType] = h
	d.mu.Unlock()
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, t Task) error {
	d.mu.RLock()
	h, ok := d.handlers[t.Type]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, t.Type)
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		if err := h(ctx, t); err != nil {
			d.logger.Error(ctx, "task failed", "type", t.Type, "error", err)
		}
	}()
	return nil
}

func (d *InlineDispatcher) Close() error {
	d.wg.Wait()
	return nil
}

// AsynqDispatcher enqueues tasks on Redis and runs the registered handlers
// in an asynq worker server.
type AsynqDispatcher struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	logger logging.Logger
}

func NewAsynqDispatcher(redisURL string, concurrency int, logger logging.Logger) (*AsynqDispatcher, error) {
	if redisURL == "" {
		return nil, errors.New("asynq: redis url is empty")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 10
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{"notifications": 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error(ctx, "task failed", "type", task.Type(), "error", err)
		}),
	})
	return &AsynqDispatcher{
		client: asynq.NewClient(opt),
		server: srv,
		mux:    asynq.NewServeMux(),
		logger: logger,
	}, nil
}

var _ Dispatcher = (*AsynqDispatcher)(nil)

func (a *AsynqDispatcher) Register(taskType string, h Handler) {
	a.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		return h(ctx, Task{Type: t.Type(), Payload: t.Payload()})
	})
}

// Start runs the worker server in the background.
func (a *AsynqDispatcher) Start() error {
	return a.server.Start(a.mux)
}

func (a *AsynqDispatcher) Dispatch(ctx context.Context, t Task) error {
	if t.Type == "" {
		return errors.New("asynq: task type is required")
	}
	info, err := a.client.EnqueueContext(ctx, asynq.NewTask(t.Type, t.Payload),
		asynq.Queue("notifications"),
		asynq.MaxRetry(3),
		asynq.Timeout(time.Minute),
	)
	if err != nil {
		return fmt.Errorf("asynq: enqueue %s: %w", t.Type, err)
	}
	a.logger.Debug(ctx, "task enqueued", "type", t.Type, "id", info.ID)
	return nil
}

func (a *AsynqDispatcher) Close() error {
	a.server.Shutdown()
	return a.client.Close()
}
