package handlers

import (
	"encoding/json"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/woworkers/woworkers-api/internal/models"
)

type ProfileHandler struct {
	DB *gorm.DB
}

func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{DB: db}
}

// Me returns the caller's account and profile.
func (h *ProfileHandler) Me(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var user models.User
	if err := h.DB.Preload("Profile").First(&user, "id = ?", userID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "User not found"})
	}

	return c.JSON(fiber.Map{"success": true, "data": user})
}

type UpdateProfileReq struct {
	FirstName  *string   `json:"first_name"`
	LastName   *string   `json:"last_name"`
	Title      *string   `json:"title"`
	Bio        *string   `json:"bio"`
	AvatarURL  *string   `json:"avatar_url"`
	HourlyRate *int64    `json:"hourly_rate"`
	Skills     *[]string `json:"skills"`
	Location   *string   `json:"location"`
}

// UpdateMe edits the caller's profile. The reputation aggregates are not
// reachable from here.
func (h *ProfileHandler) UpdateMe(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req UpdateProfileReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request body"})
	}

	errs := FieldErrors{}
	if req.HourlyRate != nil && *req.HourlyRate < 0 {
		errs.Add("hourly_rate", "Hourly rate cannot be negative")
	}
	if req.Skills != nil && len(*req.Skills) > 10 {
		errs.Add("skills", "At most 10 skills can be selected")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	updates := map[string]any{}
	if req.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*req.LastName)
	}
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Bio != nil {
		updates["bio"] = strings.TrimSpace(*req.Bio)
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*req.AvatarURL)
	}
	if req.HourlyRate != nil {
		updates["hourly_rate"] = *req.HourlyRate
	}
	if req.Location != nil {
		updates["location"] = strings.TrimSpace(*req.Location)
	}
	if req.Skills != nil {
		b, _ := json.Marshal(*req.Skills)
		updates["skills"] = b
	}

	if len(updates) == 0 {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Nothing to update"})
	}

	res := h.DB.Model(&models.Profile{}).Where("user_id = ?", userID).Updates(updates)
	if res.Error != nil {
		log.Println("Error updating profile:", res.Error)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to update profile"})
	}
	if res.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Profile not found"})
	}

	var profile models.Profile
	if err := h.DB.First(&profile, "user_id = ?", userID).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to fetch profile"})
	}

	return c.JSON(fiber.Map{"success": true, "data": profile})
}

// GetFreelancer is the public profile page for a freelancer.
func (h *ProfileHandler) GetFreelancer(c *fiber.Ctx) error {
	freelancerUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid freelancer ID"})
	}

	var user models.User
	if err := h.DB.Preload("Profile").
		First(&user, "id = ? AND role = ?", freelancerUUID, models.RoleFreelancer).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Freelancer not found"})
	}

	out := fiber.Map{
		"id":      user.ID,
		"name":    user.Name,
		"profile": user.Profile,
	}
	if user.Profile != nil {
		out["average_rating"] = user.Profile.AverageRating()
		out["review_count"] = user.Profile.RatingCount
		out["jobs_completed"] = user.Profile.JobsCompleted
	}

	return c.JSON(fiber.Map{"success": true, "data": out})
}
