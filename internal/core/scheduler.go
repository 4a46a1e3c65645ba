package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Job описывает периодическую задачу обслуживания.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler запускает задачи с фиксированным интервалом.
type Scheduler struct {
	interval time.Duration
	logger   *slog.Logger
	jobs     []Job
	wg       sync.WaitGroup
}

// NewScheduler создает scheduler с заданным интервалом.
func NewScheduler(interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{interval: interval, logger: logger}
}

// Add добавляет задачу в расписание.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" {
		return fmt.Errorf("job: %w", errEmptyName)
	}
	if job.Run == nil {
		return fmt.Errorf("job %s has no run func: %w", job.Name, ErrInvalid)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Start запускает scheduler до отмены контекста.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-ticker.C:
			for _, job := range s.jobs {
				job := job
				s.wg.Add(1)
				go func() {
					defer s.wg.Done()
					start := time.Now()
					if err := job.Run(ctx); err != nil {
						s.logger.Error("scheduled job failed", "job", job.Name, "err", err)
						return
					}
					s.logger.Debug("scheduled job done", "job", job.Name, "took", time.Since(start))
				}()
			}
		}
	}
}
