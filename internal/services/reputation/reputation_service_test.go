package reputation

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/woworkers/woworkers-api/internal/models"
)

func setup(t *testing.T) (*Service, *gorm.DB, uuid.UUID) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Profile{}))

	u := models.User{
		Name:     "freelancer",
		Email:    "freelancer@example.com",
		Password: "x",
		Role:     models.RoleFreelancer,
		IsActive: true,
	}
	require.NoError(t, db.Create(&u).Error)
	require.NoError(t, db.Create(&models.Profile{UserID: u.ID}).Error)

	return NewService(db), db, u.ID
}

func TestRecordReview(t *testing.T) {
	svc, db, freelancerID := setup(t)

	require.NoError(t, svc.RecordReview(db, freelancerID, 5))
	require.NoError(t, svc.RecordReview(db, freelancerID, 3))

	var profile models.Profile
	require.NoError(t, db.First(&profile, "user_id = ?", freelancerID).Error)
	assert.Equal(t, int64(8), profile.RatingTotal)
	assert.Equal(t, int64(2), profile.RatingCount)
	assert.Equal(t, int64(2), profile.JobsCompleted)
	assert.Equal(t, 4.0, profile.AverageRating())
}

func TestRecordReviewRejectsBadInput(t *testing.T) {
	svc, db, freelancerID := setup(t)

	require.Error(t, svc.RecordReview(db, freelancerID, 0))
	require.Error(t, svc.RecordReview(db, freelancerID, 6))

	// unknown freelancer means no row to update
	require.Error(t, svc.RecordReview(db, uuid.New(), 4))

	var profile models.Profile
	require.NoError(t, db.First(&profile, "user_id = ?", freelancerID).Error)
	assert.Equal(t, int64(0), profile.RatingCount)
}

func TestSummary(t *testing.T) {
	svc, db, freelancerID := setup(t)

	avg, count, err := svc.Summary(freelancerID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, avg)
	assert.Equal(t, int64(0), count)

	require.NoError(t, svc.RecordReview(db, freelancerID, 4))

	avg, count, err = svc.Summary(freelancerID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, avg)
	assert.Equal(t, int64(1), count)

	_, _, err = svc.Summary(uuid.New())
	require.Error(t, err)
}
