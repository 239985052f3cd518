package service

import (
	"time"
)

func GetExpiresAt(expiresIn int64) time.Time {
	return time.Now().Add(time.Duration(expiresIn) * time.Second)
}

// TruncateCaption cuts a caption to a platform's character limit without
// splitting a multi-byte rune.
func TruncateCaption(caption string, limit int) string {
	runes := []rune(caption)
	if len(runes) <= limit {
		return caption
	}
	return string(runes[:limit])
}
