package transfer

import "github.com/postloom/postloom/internal/models"

type PostCreation struct {
	Caption        string            `json:"caption"`
	Platforms      []string          `json:"platforms"`
	PageSelections map[string]string `json:"page_selections"`
	ScheduledTime  string            `json:"scheduled_time"`
}

type PostUpdate struct {
	Caption        string            `json:"caption"`
	Platforms      []string          `json:"platforms"`
	PageSelections map[string]string `json:"page_selections"`
	ScheduledTime  string            `json:"scheduled_time"`
}

type PostInfo struct {
	*models.Post
	PublishRecords []*models.PublishRecord `json:"publish_records"`
}
