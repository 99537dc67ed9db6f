package handlers

import (
	"log"
	"math"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/woworkers/woworkers-api/internal/models"
	"github.com/woworkers/woworkers-api/internal/services/reputation"
)

type ReviewHandler struct {
	DB         *gorm.DB
	Reputation *reputation.Service
}

func NewReviewHandler(db *gorm.DB, rep *reputation.Service) *ReviewHandler {
	return &ReviewHandler{DB: db, Reputation: rep}
}

// ListForFreelancer is the public review feed on a freelancer's profile page.
func (h *ReviewHandler) ListForFreelancer(c *fiber.Ctx) error {
	freelancerUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid freelancer ID"})
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	q := h.DB.Model(&models.Review{}).Where("freelancer_id = ?", freelancerUUID)

	var total int64
	q.Count(&total)

	var reviews []models.Review
	if err := q.
		Preload("Client").
		Preload("Contract").
		Preload("Contract.Job").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&reviews).Error; err != nil {
		log.Println("Error fetching reviews:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to fetch reviews"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    reviews,
		"meta": fiber.Map{
			"page":      page,
			"limit":     limit,
			"total":     total,
			"last_page": int(math.Ceil(float64(total) / float64(limit))),
		},
	})
}

// Summary returns the profile aggregates the completion transaction maintains.
func (h *ReviewHandler) Summary(c *fiber.Ctx) error {
	freelancerUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid freelancer ID"})
	}

	avg, count, err := h.Reputation.Summary(freelancerUUID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Freelancer not found"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"freelancer_id":  freelancerUUID,
			"average_rating": avg,
			"review_count":   count,
		},
	})
}
