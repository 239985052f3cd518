package queue

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
)

func (j *Queue) HandleRefreshAnalyticsTask(ctx context.Context, task *asynq.Task) error {
	var payload RefreshAnalyticsPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	if err := j.as.RefreshPostAnalytics(ctx, payload.PostID); err != nil {
		log.Printf("Error refreshing analytics for PostID %d: %v", payload.PostID, err)
		return err
	}

	return nil
}
