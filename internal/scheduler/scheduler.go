package scheduler

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/robfig/cron"

	config "github.com/postloom/postloom/configs"
	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/repository"
	"github.com/postloom/postloom/internal/service"
)

// Scheduler is the time-driven trigger: it scans for due posts on a fixed
// interval (plus once at startup) and hands each one to the publisher,
// sequentially, so a failure on one post never touches the others.
type Scheduler struct {
	cfg config.Config
	pr  repository.PostRepository
	ps  service.PublisherService
	c   *cron.Cron
}

func New(cfg config.Config, pr repository.PostRepository, ps service.PublisherService) *Scheduler {
	return &Scheduler{
		cfg: cfg,
		pr:  pr,
		ps:  ps,
	}
}

// Start kicks off an immediate scan and then the recurring one. Stop tears
// the cron down.
func (s *Scheduler) Start() error {
	c := cron.New()
	if err := c.AddFunc(s.cfg.SchedulerInterval, s.RunOnce); err != nil {
		return fmt.Errorf("invalid scheduler interval %q: %w", s.cfg.SchedulerInterval, err)
	}
	c.Start()
	s.c = c

	go s.RunOnce()

	log.Printf("Scheduler started (interval %s)", s.cfg.SchedulerInterval)
	return nil
}

func (s *Scheduler) Stop() {
	if s.c != nil {
		s.c.Stop()
	}
}

// RunOnce claims every due post and publishes them one at a time. Claiming
// flips the status before any work starts, so a second tick that fires while
// this one is still running finds nothing to pick up.
func (s *Scheduler) RunOnce() {
	ctx := context.Background()

	now := time.Now()
	staleBefore := now.Add(-time.Duration(s.cfg.ClaimStaleMinutes) * time.Minute)

	posts, err := s.pr.ClaimDue(ctx, now, staleBefore)
	if err != nil {
		slog.Info(fmt.Sprintf("scheduler: failed to claim due posts: %v", err))
		return
	}

	if len(posts) == 0 {
		return
	}

	log.Printf("Scheduler: claimed %d due post(s)", len(posts))

	for _, post := range posts {
		s.publishPost(ctx, post)
	}
}

// publishPost is the failure boundary for one post: a publisher error or
// panic marks the post failed instead of taking the scheduler down. A
// publisher that returns a summary has already persisted the outcome itself.
func (s *Scheduler) publishPost(ctx context.Context, post *models.Post) {
	defer func() {
		if r := recover(); r != nil {
			slog.Info(fmt.Sprintf("scheduler: panic publishing post %d: %v", post.ID, r))
			s.markFailed(ctx, post.ID)
		}
	}()

	summary, err := s.ps.PublishPost(ctx, post)
	if err != nil {
		slog.Info(fmt.Sprintf("scheduler: publishing post %d failed: %v", post.ID, err))
		s.markFailed(ctx, post.ID)
		return
	}

	if summary.Success {
		log.Printf("Scheduler: post %d published (%d platform(s))", post.ID, len(summary.Records))
	} else {
		log.Printf("Scheduler: post %d failed on all platforms", post.ID)
	}
}

func (s *Scheduler) markFailed(ctx context.Context, postID int64) {
	if err := s.pr.UpdatePostStatus(ctx, models.PostStatusFailed, postID); err != nil {
		slog.Info(fmt.Sprintf("scheduler: failed to mark post %d failed: %v", postID, err))
	}
}
