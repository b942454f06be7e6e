package controllers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/moodbloom/models"
)

func TestDashboardStats(t *testing.T) {
	e := newTestEnv(t)
	d := NewDashboardController(e.db)
	e.router.GET("/dashboard", e.auth, d.Stats)
	user, token := e.user("dash@example.com")

	var empty DashboardStats
	decode(t, e.request(http.MethodGet, "/dashboard", nil, token), http.StatusOK, &empty)
	assert.Zero(t, empty.TotalCheckIns)
	assert.Nil(t, empty.LastCheckIn)
	assert.Nil(t, empty.CurrentMood)

	_, err := e.ledger.RecordCheckIn(context.Background(), &models.CheckIn{
		UserID: user.ID, Mood: "calm", MoodScore: 7, EnergyLevel: 6, EmotionalState: "calm", Method: models.MethodText,
	})
	require.NoError(t, err)
	require.NoError(t, e.db.Create(&models.Journal{UserID: user.ID, Title: "Day one", Content: "Fine", IsPrivate: true}).Error)

	var stats DashboardStats
	decode(t, e.request(http.MethodGet, "/dashboard", nil, token), http.StatusOK, &stats)
	assert.Equal(t, 1, stats.StreakCount)
	assert.EqualValues(t, 1, stats.TotalCheckIns)
	assert.EqualValues(t, 1, stats.CompletedJournals)
	assert.Equal(t, 10, stats.TokenBalance)
	require.NotNil(t, stats.CurrentMood)
	assert.Equal(t, "calm", *stats.CurrentMood)
	require.NotNil(t, stats.LastCheckIn)
	assert.WithinDuration(t, time.Now(), *stats.LastCheckIn, time.Minute)
}
