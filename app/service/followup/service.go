package followup

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/do"
)

const bufferSize = 64

var _ do.Shutdownable = (*Service)(nil)

// Task is one unit of post-turn work: the log append, reward update or
// history write that must not block the response stream.
type Task struct {
	Name string
	Fn   func(ctx context.Context)
}

// Service runs post-turn tasks on a single background worker, decoupled from
// the request lifecycle. Tasks run in enqueue order.
type Service struct {
	queue chan Task
}

func New(_ *do.Injector) (*Service, error) {
	return NewService(), nil
}

func NewService() *Service {
	return &Service{
		queue: make(chan Task, bufferSize),
	}
}

func (s *Service) Enqueue(name string, fn func(ctx context.Context)) {
	defer func() {
		// Enqueue may race with Shutdown closing the channel.
		if r := recover(); r != nil {
			slog.Warn("Dropped followup task on shutdown", "task", name)
		}
	}()

	select {
	case s.queue <- Task{Name: name, Fn: fn}:
	default:
		slog.Warn("Followup queue is full, dropping task", "task", name)
	}
}

func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-s.queue:
			if !ok {
				return
			}

			s.runTask(ctx, task)
		}
	}
}

func (s *Service) runTask(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Followup task panicked", "task", task.Name, "panic", r)
		}
	}()

	start := time.Now()
	task.Fn(ctx)

	slog.Debug("Followup task finished", "task", task.Name, "duration", time.Since(start))
}

func (s *Service) Shutdown() error {
	close(s.queue)

	return nil
}
