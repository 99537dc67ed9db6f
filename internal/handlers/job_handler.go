package handlers

import (
	"encoding/json"
	"log"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/woworkers/woworkers-api/internal/models"
	"github.com/woworkers/woworkers-api/internal/services/contracts"
)

type JobHandler struct {
	DB        *gorm.DB
	Contracts *contracts.Service
}

func NewJobHandler(db *gorm.DB, svc *contracts.Service) *JobHandler {
	return &JobHandler{DB: db, Contracts: svc}
}

type CreateJobReq struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	Skills          []string `json:"skills"`
	BudgetMin       int64    `json:"budget_min"`
	BudgetMax       int64    `json:"budget_max"`
	BudgetType      string   `json:"budget_type"` // fixed | hourly
	Duration        string   `json:"duration"`
	ExperienceLevel string   `json:"experience_level"`
	IsRemote        *bool    `json:"is_remote"`
	Location        string   `json:"location"`
}

func (h *JobHandler) CreateJob(c *fiber.Ctx) error {
	clientID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req CreateJobReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request body"})
	}

	title := strings.TrimSpace(req.Title)
	desc := strings.TrimSpace(req.Description)

	errs := FieldErrors{}
	if n := utf8.RuneCountInString(title); n < 10 || n > 200 {
		errs.Add("title", "Title must be between 10 and 200 characters")
	}
	if n := utf8.RuneCountInString(desc); n < 50 || n > 5000 {
		errs.Add("description", "Description must be between 50 and 5000 characters")
	}
	if strings.TrimSpace(req.Category) == "" {
		errs.Add("category", "Category is required")
	}
	if req.BudgetMin <= 0 || req.BudgetMax <= 0 {
		errs.Add("budget", "Budget must be greater than zero")
	} else if req.BudgetMax < req.BudgetMin {
		errs.Add("budget", "Maximum budget must be greater than or equal to minimum budget")
	}
	if len(req.Skills) > 10 {
		errs.Add("skills", "At most 10 skills can be selected")
	}
	budgetType := models.BudgetFixed
	switch req.BudgetType {
	case "", string(models.BudgetFixed):
	case string(models.BudgetHourly):
		budgetType = models.BudgetHourly
	default:
		errs.Add("budget_type", "Budget type must be fixed or hourly")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	skillsJSON, _ := json.Marshal(req.Skills)

	isRemote := true
	if req.IsRemote != nil {
		isRemote = *req.IsRemote
	}

	job := models.Job{
		ClientID:        clientID,
		Title:           title,
		Description:     desc,
		Category:        strings.TrimSpace(req.Category),
		Skills:          skillsJSON,
		BudgetMin:       req.BudgetMin,
		BudgetMax:       req.BudgetMax,
		BudgetType:      budgetType,
		Duration:        strings.TrimSpace(req.Duration),
		ExperienceLevel: strings.TrimSpace(req.ExperienceLevel),
		IsRemote:        isRemote,
		Location:        strings.TrimSpace(req.Location),
		Status:          models.JobOpen,
	}

	if err := h.DB.Create(&job).Error; err != nil {
		log.Println("Error creating job:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to create job"})
	}

	return c.Status(201).JSON(fiber.Map{"success": true, "data": job})
}

// ListPublic returns open jobs for the public job board, newest first.
func (h *JobHandler) ListPublic(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	q := h.DB.Model(&models.Job{}).Where("status = ?", models.JobOpen)

	if category := c.Query("category"); category != "" {
		q = q.Where("category = ?", category)
	}
	if bt := c.Query("budget_type"); bt != "" {
		q = q.Where("budget_type = ?", bt)
	}
	if exp := c.Query("experience_level"); exp != "" {
		q = q.Where("experience_level = ?", exp)
	}
	if search := strings.TrimSpace(c.Query("q")); search != "" {
		like := "%" + search + "%"
		q = q.Where("title LIKE ? OR description LIKE ?", like, like)
	}

	var total int64
	q.Count(&total)

	var jobs []models.Job
	if err := q.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error; err != nil {
		log.Println("Error fetching jobs:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to fetch jobs"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    jobs,
		"meta": fiber.Map{
			"page":      page,
			"limit":     limit,
			"total":     total,
			"last_page": int(math.Ceil(float64(total) / float64(limit))),
		},
	})
}

// GetCategories returns the distinct categories currently open for proposals.
func (h *JobHandler) GetCategories(c *fiber.Ctx) error {
	var categories []string

	err := h.DB.
		Model(&models.Job{}).
		Where("status = ?", models.JobOpen).
		Distinct("category").
		Pluck("category", &categories).
		Error
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to fetch categories"})
	}

	return c.JSON(fiber.Map{"success": true, "data": categories})
}

func (h *JobHandler) GetJob(c *fiber.Ctx) error {
	jobUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid job ID"})
	}

	var job models.Job
	if err := h.DB.Preload("Client").First(&job, "id = ?", jobUUID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Job not found"})
	}

	var proposalCount int64
	h.DB.Model(&models.Proposal{}).
		Where("job_id = ? AND status = ?", job.ID, models.ProposalPending).
		Count(&proposalCount)

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"job":            job,
			"proposal_count": proposalCount,
		},
	})
}

// MyJobs lists the calling client's own jobs with pending proposal counts.
func (h *JobHandler) MyJobs(c *fiber.Ctx) error {
	clientID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	q := h.DB.Model(&models.Job{}).Where("client_id = ?", clientID)
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var jobs []models.Job
	if err := q.Order("created_at DESC").Find(&jobs).Error; err != nil {
		log.Println("Error fetching client jobs:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to fetch jobs"})
	}

	type jobWithCount struct {
		models.Job
		ProposalCount int64 `json:"proposal_count"`
	}

	out := make([]jobWithCount, 0, len(jobs))
	for _, job := range jobs {
		var count int64
		h.DB.Model(&models.Proposal{}).
			Where("job_id = ? AND status = ?", job.ID, models.ProposalPending).
			Count(&count)
		out = append(out, jobWithCount{Job: job, ProposalCount: count})
	}

	return c.JSON(fiber.Map{"success": true, "data": out})
}

// CancelJob cancels an open job; pending proposals are rejected in the same
// step by the contracts service.
func (h *JobHandler) CancelJob(c *fiber.Ctx) error {
	clientID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	jobUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid job ID"})
	}

	if err := h.Contracts.CancelJob(jobUUID, clientID); err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "message": "Job cancelled"})
}
