package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// StaleRequeuer requeues tokens left in the called state beyond a grace
// period; implemented by the queue engine.
type StaleRequeuer interface {
	RequeueStale(ctx context.Context, grace time.Duration, limit int) (int, error)
}

type AbsentScanner struct {
	requeuer  StaleRequeuer
	grace     time.Duration
	batchSize int
}

func NewAbsentScanner(requeuer StaleRequeuer, grace time.Duration, batchSize int) *AbsentScanner {
	return &AbsentScanner{requeuer: requeuer, grace: grace, batchSize: batchSize}
}

// Run performs a single scan.
func (s *AbsentScanner) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	count, err := s.requeuer.RequeueStale(ctx, s.grace, s.batchSize)
	if err != nil {
		log.Printf("absent scan error: %v", err)
		return
	}
	if count > 0 {
		log.Printf("absent scan requeued %d tokens", count)
	}
}

// Start schedules the scan on a fixed interval. Returns nil when the scan is
// disabled by configuration.
func (s *AbsentScanner) Start(interval time.Duration) *cron.Cron {
	if s.grace <= 0 || interval <= 0 {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), s.Run); err != nil {
		log.Printf("absent scan schedule error: %v", err)
		return nil
	}
	c.Start()
	return c
}
