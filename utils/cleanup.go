package utils

import (
	"context"
	"errors"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/moodbloom/models"
)

// StartUploadCleaner periodically deletes expired voice recordings and their
// rows until ctx is cancelled. Failures are logged and retried next round.
func StartUploadCleaner(ctx context.Context, db *gorm.DB, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := SweepExpiredUploads(db, time.Now()); err != nil {
					Sugar.Warnf("upload cleaner failed: %v", err)
				} else if n > 0 {
					Sugar.Infof("upload cleaner removed %d files", n)
				}
			}
		}
	}()
}

// SweepExpiredUploads removes up to 100 uploads expired at now and returns how many rows were deleted.
func SweepExpiredUploads(db *gorm.DB, now time.Time) (int, error) {
	var items []models.UploadedFile
	if err := db.Where("expire_at <= ?", now).Limit(100).Find(&items).Error; err != nil {
		return 0, err
	}
	removed := 0
	for _, it := range items {
		if err := os.Remove(it.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			Sugar.Warnf("upload cleaner remove %s: %v", it.FilePath, err)
		}
		// Row goes regardless so a vanished file is not retried forever.
		if err := db.Delete(&models.UploadedFile{}, it.ID).Error; err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
