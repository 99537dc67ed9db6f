package handlers

import (
	"log"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/woworkers/woworkers-api/internal/models"
	"github.com/woworkers/woworkers-api/internal/realtime"
	"github.com/woworkers/woworkers-api/internal/services/contracts"
)

const maxBidAmount = 1_000_000

type ProposalHandler struct {
	DB        *gorm.DB
	Hub       *realtime.Hub
	Contracts *contracts.Service
}

func NewProposalHandler(db *gorm.DB, hub *realtime.Hub, svc *contracts.Service) *ProposalHandler {
	return &ProposalHandler{DB: db, Hub: hub, Contracts: svc}
}

type SubmitProposalReq struct {
	BidAmount   int64  `json:"bid_amount"`
	CoverLetter string `json:"cover_letter"`
	Timeline    string `json:"timeline"`
}

// SubmitProposal creates a pending proposal on an open job. Status changes
// after this point belong to the contracts service.
func (h *ProposalHandler) SubmitProposal(c *fiber.Ctx) error {
	freelancerID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	jobUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid job ID"})
	}

	var req SubmitProposalReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request body"})
	}

	cover := strings.TrimSpace(req.CoverLetter)

	errs := FieldErrors{}
	if req.BidAmount <= 0 {
		errs.Add("bid_amount", "Bid amount must be greater than zero")
	} else if req.BidAmount > maxBidAmount {
		errs.Add("bid_amount", "Bid amount is too large")
	}
	if n := utf8.RuneCountInString(cover); n < 50 || n > 5000 {
		errs.Add("cover_letter", "Cover letter must be between 50 and 5000 characters")
	}
	if utf8.RuneCountInString(req.Timeline) > 200 {
		errs.Add("timeline", "Timeline must be at most 200 characters")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	var job models.Job
	if err := h.DB.First(&job, "id = ?", jobUUID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Job not found"})
	}
	if job.Status != models.JobOpen {
		return c.Status(422).JSON(fiber.Map{"success": false, "message": "Job is no longer accepting proposals"})
	}
	if job.ClientID == freelancerID {
		return c.Status(422).JSON(fiber.Map{"success": false, "message": "You cannot bid on your own job"})
	}

	// one live proposal per freelancer per job; withdrawn ones don't count
	var existing int64
	h.DB.Model(&models.Proposal{}).
		Where("job_id = ? AND freelancer_id = ? AND status <> ?",
			jobUUID, freelancerID, models.ProposalWithdrawn).
		Count(&existing)
	if existing > 0 {
		return c.Status(422).JSON(fiber.Map{"success": false, "message": "You already submitted a proposal for this job"})
	}

	prop := models.Proposal{
		JobID:        jobUUID,
		FreelancerID: freelancerID,
		BidAmount:    req.BidAmount,
		CoverLetter:  cover,
		Timeline:     strings.TrimSpace(req.Timeline),
		Status:       models.ProposalPending,
	}

	if err := h.DB.Create(&prop).Error; err != nil {
		log.Println("Error creating proposal:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to submit proposal"})
	}

	h.Hub.SendToUser(job.ClientID, fiber.Map{
		"type":     "new_proposal",
		"job_id":   job.ID.String(),
		"proposal": prop,
	})

	return c.Status(201).JSON(fiber.Map{"success": true, "data": prop})
}

// ListForJob returns all proposals on a job, owner only.
func (h *ProposalHandler) ListForJob(c *fiber.Ctx) error {
	clientID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	jobUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid job ID"})
	}

	var job models.Job
	if err := h.DB.First(&job, "id = ?", jobUUID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Job not found"})
	}
	if job.ClientID != clientID {
		return c.Status(403).JSON(fiber.Map{"success": false, "message": "Access denied"})
	}

	var proposals []models.Proposal
	if err := h.DB.
		Preload("Freelancer").
		Preload("Freelancer.Profile").
		Where("job_id = ?", jobUUID).
		Order("created_at DESC").
		Find(&proposals).Error; err != nil {
		log.Println("Error fetching proposals:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to fetch proposals"})
	}

	return c.JSON(fiber.Map{"success": true, "data": proposals})
}

// ListMine returns the calling freelancer's proposals.
func (h *ProposalHandler) ListMine(c *fiber.Ctx) error {
	freelancerID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	q := h.DB.Model(&models.Proposal{}).
		Preload("Job").
		Where("freelancer_id = ?", freelancerID)
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var proposals []models.Proposal
	if err := q.Order("created_at DESC").Find(&proposals).Error; err != nil {
		log.Println("Error fetching proposals:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to fetch proposals"})
	}

	return c.JSON(fiber.Map{"success": true, "data": proposals})
}

// Accept runs the atomic acceptance: one winner, the rest rejected, contract
// created, job moved to in-progress.
func (h *ProposalHandler) Accept(c *fiber.Ctx) error {
	clientID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	jobUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid job ID"})
	}
	propUUID, err := uuid.Parse(c.Params("proposalId"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid proposal ID"})
	}

	contractID, err := h.Contracts.AcceptProposal(jobUUID, propUUID, clientID)
	if err != nil {
		return serviceError(c, err)
	}

	var contract models.Contract
	if err := h.DB.First(&contract, "id = ?", contractID).Error; err == nil {
		h.Hub.SendToUser(contract.FreelancerID, fiber.Map{
			"type":        "proposal_accepted",
			"job_id":      jobUUID.String(),
			"contract_id": contractID.String(),
		})
	}

	return c.Status(201).JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"contract_id": contractID},
	})
}

// Reject turns down a single proposal without deciding the job.
func (h *ProposalHandler) Reject(c *fiber.Ctx) error {
	clientID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	propUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid proposal ID"})
	}

	if err := h.Contracts.RejectProposal(propUUID, clientID); err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "message": "Proposal rejected"})
}

// Withdraw pulls back the caller's own pending proposal.
func (h *ProposalHandler) Withdraw(c *fiber.Ctx) error {
	freelancerID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	propUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid proposal ID"})
	}

	if err := h.Contracts.WithdrawProposal(propUUID, freelancerID); err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "message": "Proposal withdrawn"})
}
