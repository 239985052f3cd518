package queue

import (
	"github.com/postloom/postloom/internal/service"
)

type Queue struct {
	as service.AnalyticsService
}

func NewQueue(as service.AnalyticsService) *Queue {
	return &Queue{
		as: as,
	}
}

const TaskTypeRefreshAnalytics = "analytics:refresh"

type RefreshAnalyticsPayload struct {
	PostID int64 `json:"post_id"`
}
