package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	config "github.com/postloom/postloom/configs"
	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/service"
)

type mockPostRepo struct {
	claimDueFunc         func(ctx context.Context, now, staleBefore time.Time) ([]*models.Post, error)
	updatePostStatusFunc func(ctx context.Context, status string, postID int64) error
}

func (m *mockPostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	return 0, nil
}

func (m *mockPostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) { return nil, nil }

func (m *mockPostRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	return nil, nil
}

func (m *mockPostRepo) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	return false, nil
}

func (m *mockPostRepo) ClaimDue(ctx context.Context, now, staleBefore time.Time) ([]*models.Post, error) {
	if m.claimDueFunc != nil {
		return m.claimDueFunc(ctx, now, staleBefore)
	}
	return nil, nil
}

func (m *mockPostRepo) Update(ctx context.Context, post *models.Post) error { return nil }

func (m *mockPostRepo) UpdatePostStatus(ctx context.Context, status string, postID int64) error {
	if m.updatePostStatusFunc != nil {
		return m.updatePostStatusFunc(ctx, status, postID)
	}
	return nil
}

func (m *mockPostRepo) SetPublishOutcome(ctx context.Context, tx *sql.Tx, postID int64, status string, publishedAt *time.Time) error {
	return nil
}

func (m *mockPostRepo) Remove(ctx context.Context, id int64) error { return nil }

type mockPublisher struct {
	publishPostFunc func(ctx context.Context, post *models.Post) (*service.PublishSummary, error)
}

func (m *mockPublisher) PublishPost(ctx context.Context, post *models.Post) (*service.PublishSummary, error) {
	if m.publishPostFunc != nil {
		return m.publishPostFunc(ctx, post)
	}
	return &service.PublishSummary{Success: true}, nil
}

func testConfig() config.Config {
	return config.Config{
		SchedulerInterval: "@every 0h01m00s",
		ClaimStaleMinutes: 15,
	}
}

func TestRunOnce_PublishesClaimedPosts(t *testing.T) {
	posts := []*models.Post{{ID: 1}, {ID: 2}}
	pr := &mockPostRepo{
		claimDueFunc: func(ctx context.Context, now, staleBefore time.Time) ([]*models.Post, error) {
			return posts, nil
		},
	}

	var published []int64
	ps := &mockPublisher{
		publishPostFunc: func(ctx context.Context, post *models.Post) (*service.PublishSummary, error) {
			published = append(published, post.ID)
			return &service.PublishSummary{Success: true}, nil
		},
	}

	New(testConfig(), pr, ps).RunOnce()

	if len(published) != 2 || published[0] != 1 || published[1] != 2 {
		t.Errorf("expected posts 1 and 2 published in order, got %v", published)
	}
}

func TestRunOnce_StaleClaimWindow(t *testing.T) {
	var gotNow, gotStale time.Time
	pr := &mockPostRepo{
		claimDueFunc: func(ctx context.Context, now, staleBefore time.Time) ([]*models.Post, error) {
			gotNow, gotStale = now, staleBefore
			return nil, nil
		},
	}

	New(testConfig(), pr, &mockPublisher{}).RunOnce()

	window := gotNow.Sub(gotStale)
	if window != 15*time.Minute {
		t.Errorf("expected 15 minute stale window, got %v", window)
	}
}

func TestRunOnce_PublisherErrorMarksFailed(t *testing.T) {
	pr := &mockPostRepo{
		claimDueFunc: func(ctx context.Context, now, staleBefore time.Time) ([]*models.Post, error) {
			return []*models.Post{{ID: 1}, {ID: 2}}, nil
		},
	}

	var failed []int64
	pr.updatePostStatusFunc = func(ctx context.Context, status string, postID int64) error {
		if status != models.PostStatusFailed {
			t.Errorf("expected failed status, got %s", status)
		}
		failed = append(failed, postID)
		return nil
	}

	var published []int64
	ps := &mockPublisher{
		publishPostFunc: func(ctx context.Context, post *models.Post) (*service.PublishSummary, error) {
			if post.ID == 1 {
				return nil, errors.New("persisting outcome failed")
			}
			published = append(published, post.ID)
			return &service.PublishSummary{Success: true}, nil
		},
	}

	New(testConfig(), pr, ps).RunOnce()

	if len(failed) != 1 || failed[0] != 1 {
		t.Errorf("expected post 1 marked failed, got %v", failed)
	}
	if len(published) != 1 || published[0] != 2 {
		t.Errorf("a failing post must not block the next one, got %v", published)
	}
}

func TestRunOnce_PanicIsContained(t *testing.T) {
	pr := &mockPostRepo{
		claimDueFunc: func(ctx context.Context, now, staleBefore time.Time) ([]*models.Post, error) {
			return []*models.Post{{ID: 1}, {ID: 2}}, nil
		},
	}

	var failed []int64
	pr.updatePostStatusFunc = func(ctx context.Context, status string, postID int64) error {
		failed = append(failed, postID)
		return nil
	}

	var published []int64
	ps := &mockPublisher{
		publishPostFunc: func(ctx context.Context, post *models.Post) (*service.PublishSummary, error) {
			if post.ID == 1 {
				panic("adapter blew up")
			}
			published = append(published, post.ID)
			return &service.PublishSummary{Success: true}, nil
		},
	}

	New(testConfig(), pr, ps).RunOnce()

	if len(failed) != 1 || failed[0] != 1 {
		t.Errorf("expected panicking post marked failed, got %v", failed)
	}
	if len(published) != 1 || published[0] != 2 {
		t.Errorf("a panic must not stop the scan, got %v", published)
	}
}

func TestRunOnce_ClaimErrorDoesNothing(t *testing.T) {
	pr := &mockPostRepo{
		claimDueFunc: func(ctx context.Context, now, staleBefore time.Time) ([]*models.Post, error) {
			return nil, errors.New("database is unreachable")
		},
	}

	called := false
	ps := &mockPublisher{
		publishPostFunc: func(ctx context.Context, post *models.Post) (*service.PublishSummary, error) {
			called = true
			return nil, nil
		},
	}

	New(testConfig(), pr, ps).RunOnce()

	if called {
		t.Error("publisher must not run when claiming fails")
	}
}

func TestStart_RejectsInvalidInterval(t *testing.T) {
	cfg := testConfig()
	cfg.SchedulerInterval = "not-a-schedule"

	s := New(cfg, &mockPostRepo{}, &mockPublisher{})
	if err := s.Start(); err == nil {
		s.Stop()
		t.Fatal("expected error for invalid interval, got nil")
	}
}
