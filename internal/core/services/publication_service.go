package services

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"edhub/internal/adapters/persistence/repositories"
)

// PublicationService flips scheduled courses to published once their
// publish time passes. It runs lazily from course read paths (cheap no-op
// when nothing is due) and from a periodic sweep, so the staleness window
// is bounded even without traffic.
type PublicationService struct {
	courseRepo repositories.CourseRepository
	cron       *cron.Cron
}

// NewPublicationService creates a new publication service
func NewPublicationService(courseRepo repositories.CourseRepository) *PublicationService {
	return &PublicationService{
		courseRepo: courseRepo,
		cron:       cron.New(),
	}
}

// ResolveScheduled publishes every course whose scheduled time has passed
// and returns how many were flipped
func (s *PublicationService) ResolveScheduled(ctx context.Context) (int64, error) {
	return s.courseRepo.PublishDue(ctx, time.Now())
}

// StartSweep launches the periodic publication sweep
func (s *PublicationService) StartSweep() {
	s.cron.Schedule(cron.Every(5*time.Minute), cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		count, err := s.ResolveScheduled(ctx)
		if err != nil {
			log.Printf("❌ Publication sweep error: %v", err)
			return
		}
		if count > 0 {
			log.Printf("📅 Published %d scheduled course(s)", count)
		}
	}))
	s.cron.Start()
	log.Println("🚀 PublicationService sweep started")
}

// Stop stops the periodic sweep
func (s *PublicationService) Stop() {
	s.cron.Stop()
	log.Println("🛑 PublicationService sweep stopped")
}
