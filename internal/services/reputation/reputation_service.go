package reputation

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/woworkers/woworkers-api/internal/models"
)

type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// RecordReview folds a new rating into the freelancer's profile aggregates.
// This must be called within the contract completion transaction so the
// aggregates never drift from the review rows.
func (s *Service) RecordReview(tx *gorm.DB, freelancerID uuid.UUID, rating int) error {
	if rating < 1 || rating > 5 {
		return errors.New("rating must be between 1 and 5")
	}

	result := tx.Model(&models.Profile{}).
		Where("user_id = ?", freelancerID).
		Updates(map[string]any{
			"rating_total":   gorm.Expr("rating_total + ?", rating),
			"rating_count":   gorm.Expr("rating_count + 1"),
			"jobs_completed": gorm.Expr("jobs_completed + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("freelancer profile not found for user %s", freelancerID)
	}

	return nil
}

// Summary returns the freelancer's current aggregates.
func (s *Service) Summary(freelancerID uuid.UUID) (avg float64, count int64, err error) {
	var profile models.Profile
	if err := s.DB.First(&profile, "user_id = ?", freelancerID).Error; err != nil {
		return 0, 0, err
	}
	return profile.AverageRating(), profile.RatingCount, nil
}
