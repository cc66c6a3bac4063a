package cache

import "fmt"

// ProjectionKey holds the serialized projected analysis of one video.
func ProjectionKey(videoID int64) string {
	return fmt.Sprintf("analysis:projection:%d", videoID)
}

// ProjectionVersionKey counts committed writes to the analysis of one video.
// Cached projections are stamped with it.
func ProjectionVersionKey(videoID int64) string {
	return fmt.Sprintf("analysis:projection-version:%d", videoID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
