package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/woworkers/woworkers-api/internal/models"
)

type DashboardHandler struct {
	DB *gorm.DB
}

func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{DB: db}
}

// Stats returns the numbers the dashboard cards show, shaped by role.
func (h *DashboardHandler) Stats(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var user models.User
	if err := h.DB.Preload("Profile").First(&user, "id = ?", userID).Error; err != nil {
		log.Println("Error fetching user for dashboard:", err)
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "User not found"})
	}

	var unread int64
	h.DB.Model(&models.Message{}).
		Joins("JOIN conversations ON messages.conversation_id = conversations.id").
		Where("(conversations.client_id = ? OR conversations.freelancer_id = ?) AND messages.sender_id != ? AND messages.is_read = false",
			userID, userID, userID).
		Count(&unread)

	stats := fiber.Map{"unread_messages": unread}

	switch user.Role {
	case models.RoleFreelancer:
		var pendingProposals, activeContracts, completedContracts int64
		h.DB.Model(&models.Proposal{}).
			Where("freelancer_id = ? AND status = ?", userID, models.ProposalPending).
			Count(&pendingProposals)
		h.DB.Model(&models.Contract{}).
			Where("freelancer_id = ? AND status = ?", userID, models.ContractActive).
			Count(&activeContracts)
		h.DB.Model(&models.Contract{}).
			Where("freelancer_id = ? AND status = ?", userID, models.ContractCompleted).
			Count(&completedContracts)

		var earned int64
		h.DB.Model(&models.Contract{}).
			Where("freelancer_id = ? AND status = ?", userID, models.ContractCompleted).
			Select("COALESCE(SUM(amount), 0)").
			Scan(&earned)

		stats["pending_proposals"] = pendingProposals
		stats["active_contracts"] = activeContracts
		stats["completed_contracts"] = completedContracts
		stats["total_earned"] = earned
		if user.Profile != nil {
			stats["average_rating"] = user.Profile.AverageRating()
			stats["review_count"] = user.Profile.RatingCount
		}

	default: // client and admin see the client view
		var openJobs, inProgressJobs, activeContracts, receivedProposals int64
		h.DB.Model(&models.Job{}).
			Where("client_id = ? AND status = ?", userID, models.JobOpen).
			Count(&openJobs)
		h.DB.Model(&models.Job{}).
			Where("client_id = ? AND status = ?", userID, models.JobInProgress).
			Count(&inProgressJobs)
		h.DB.Model(&models.Contract{}).
			Where("client_id = ? AND status = ?", userID, models.ContractActive).
			Count(&activeContracts)
		h.DB.Model(&models.Proposal{}).
			Joins("JOIN jobs ON proposals.job_id = jobs.id").
			Where("jobs.client_id = ? AND proposals.status = ?", userID, models.ProposalPending).
			Count(&receivedProposals)

		var spent int64
		h.DB.Model(&models.Contract{}).
			Where("client_id = ? AND status = ?", userID, models.ContractCompleted).
			Select("COALESCE(SUM(amount), 0)").
			Scan(&spent)

		stats["open_jobs"] = openJobs
		stats["in_progress_jobs"] = inProgressJobs
		stats["active_contracts"] = activeContracts
		stats["pending_proposals"] = receivedProposals
		stats["total_spent"] = spent
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"role":  user.Role,
			"stats": stats,
		},
	})
}
