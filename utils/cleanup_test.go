package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/moodbloom/models"
)

func TestSweepExpiredUploads(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.UploadedFile{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	dir := t.TempDir()
	expired := filepath.Join(dir, "old.webm")
	fresh := filepath.Join(dir, "new.webm")
	require.NoError(t, os.WriteFile(expired, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("y"), 0o644))

	now := time.Now()
	require.NoError(t, db.Create(&models.UploadedFile{FilePath: expired, ExpireAt: now.Add(-time.Minute)}).Error)
	require.NoError(t, db.Create(&models.UploadedFile{FilePath: fresh, ExpireAt: now.Add(time.Hour)}).Error)
	require.NoError(t, db.Create(&models.UploadedFile{FilePath: filepath.Join(dir, "gone.webm"), ExpireAt: now.Add(-time.Hour)}).Error)

	n, err := SweepExpiredUploads(db, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = os.Stat(expired)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)

	var remaining int64
	require.NoError(t, db.Model(&models.UploadedFile{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)
}
