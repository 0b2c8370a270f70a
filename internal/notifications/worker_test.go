package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/TalentPoolPicos/talentpool-backend/internal/database/testutil"
	"github.com/TalentPoolPicos/talentpool-backend/internal/models"
	"github.com/TalentPoolPicos/talentpool-backend/internal/realtime"
)

func makeJob(t *testing.T, payload jobPayload) *models.Job {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	return &models.Job{Kind: JobKindCreate, Payload: datatypes.JSON(raw), Attempts: 1, MaxAttempts: 3}
}

func TestWorkerPersistsNotification(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	worker, err := NewWorker(db, nil)
	require.NoError(t, err)

	expires := time.Now().UTC().Add(time.Hour)
	job := makeJob(t, jobPayload{
		Target:    RouteToUser("user-1"),
		UserID:    "user-1",
		Type:      models.TypeProfileViewed,
		Title:     "Profile viewed",
		Message:   "An enterprise viewed your profile.",
		Priority:  models.PriorityMedium,
		Metadata:  map[string]any{"viewer": "acme"},
		ExpiresAt: &expires,
	})

	result := worker.Process(context.Background(), job)
	require.True(t, result.Success)
	require.NotEmpty(t, result.NotificationID)

	var row models.Notification
	require.NoError(t, db.Where("uuid = ?", result.NotificationID).First(&row).Error)
	require.Equal(t, "user-1", row.UserID)
	require.Equal(t, models.TypeProfileViewed, row.Type)
	require.Equal(t, models.PriorityMedium, row.Priority)
	require.NotNil(t, row.ExpiresAt)
	require.False(t, row.IsRead)
}

func TestWorkerRejectsMalformedPayloadPermanently(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	worker, err := NewWorker(db, nil)
	require.NoError(t, err)

	job := &models.Job{Kind: JobKindCreate, Payload: datatypes.JSON([]byte("{not json")), Attempts: 1, MaxAttempts: 3}

	result := worker.Process(context.Background(), job)
	require.False(t, result.Success)
	require.True(t, result.Permanent)
	require.Error(t, result.Err)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestWorkerRejectsIncompletePayloadPermanently(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	worker, err := NewWorker(db, nil)
	require.NoError(t, err)

	cases := []jobPayload{
		{Target: RouteToUser("user-1"), Type: "custom", Title: "t", Message: "m"},
		{Target: RouteToUser("user-1"), UserID: "user-1", Title: "t", Message: "m"},
		{Target: RouteToUser("user-1"), UserID: "user-1", Type: "custom", Message: "m"},
		{Target: RouteToUser("user-1"), UserID: "user-1", Type: "custom", Title: "t"},
		{Target: RoutingTarget{Kind: "mystery"}, UserID: "user-1", Type: "custom", Title: "t", Message: "m"},
	}

	for _, payload := range cases {
		result := worker.Process(context.Background(), makeJob(t, payload))
		require.False(t, result.Success)
		require.True(t, result.Permanent)
	}
}

func TestWorkerDefaultsMissingPriority(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	worker, err := NewWorker(db, nil)
	require.NoError(t, err)

	job := makeJob(t, jobPayload{
		Target:  RouteToUser("user-1"),
		UserID:  "user-1",
		Type:    models.TypeCustom,
		Title:   "t",
		Message: "m",
	})

	result := worker.Process(context.Background(), job)
	require.True(t, result.Success)

	var row models.Notification
	require.NoError(t, db.Where("uuid = ?", result.NotificationID).First(&row).Error)
	require.Equal(t, models.PriorityLow, row.Priority)
}

func TestWorkerSucceedsWhenRecipientOffline(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	worker, err := NewWorker(db, realtime.NewHub())
	require.NoError(t, err)

	job := makeJob(t, jobPayload{
		Target:  RouteToUser("offline-user"),
		UserID:  "offline-user",
		Type:    models.TypeCustom,
		Title:   "t",
		Message: "m",
	})

	// No connections registered: delivery is skipped, persistence still counts.
	result := worker.Process(context.Background(), job)
	require.True(t, result.Success)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Where("user_id = ?", "offline-user").Count(&count).Error)
	require.Equal(t, int64(1), count)
}
