package storage

import (
	"fmt"
	"time"
)

// BucketStats summarises a listing.
type BucketStats struct {
	TotalObjects int
	TotalSize    int64
	LastModified time.Time
	// BytesByType is keyed by ContentTypeForKey.
	BytesByType map[string]int64
}

// Summarize aggregates objects into BucketStats.
func Summarize(objects []ObjectInfo) *BucketStats {
	stats := &BucketStats{BytesByType: make(map[string]int64)}
	for _, o := range objects {
		stats.TotalObjects++
		stats.TotalSize += o.Size
		stats.BytesByType[ContentTypeForKey(o.Key)] += o.Size
		if o.LastModified.After(stats.LastModified) {
			stats.LastModified = o.LastModified
		}
	}
	return stats
}

// FormatSize renders a byte count with a binary unit suffix.
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
