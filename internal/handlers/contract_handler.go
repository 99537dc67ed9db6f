package handlers

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/woworkers/woworkers-api/internal/models"
	"github.com/woworkers/woworkers-api/internal/realtime"
	"github.com/woworkers/woworkers-api/internal/services/contracts"
)

type ContractHandler struct {
	DB        *gorm.DB
	Hub       *realtime.Hub
	RDB       *redis.Client
	Contracts *contracts.Service
}

func NewContractHandler(db *gorm.DB, hub *realtime.Hub, rdb *redis.Client, svc *contracts.Service) *ContractHandler {
	return &ContractHandler{DB: db, Hub: hub, RDB: rdb, Contracts: svc}
}

// notifyContract pushes a contract event to one user over the hub and, for
// other instances, over Redis.
func (h *ContractHandler) notifyContract(userID uuid.UUID, payload fiber.Map) {
	h.Hub.SendToUser(userID, payload)

	if h.RDB == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := h.RDB.Publish(context.Background(), "notifications:"+userID.String(), b).Err(); err != nil {
		log.Println("Error publishing contract notification:", err)
	}
}

// ListMine returns the contracts the caller is party to, either side.
func (h *ContractHandler) ListMine(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	q := h.DB.Model(&models.Contract{}).
		Preload("Job").
		Preload("Client").
		Preload("Freelancer").
		Where("client_id = ? OR freelancer_id = ?", userID, userID)
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var list []models.Contract
	if err := q.Order("created_at DESC").Find(&list).Error; err != nil {
		log.Println("Error fetching contracts:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to fetch contracts"})
	}

	return c.JSON(fiber.Map{"success": true, "data": list})
}

// Get returns a single contract, parties only.
func (h *ContractHandler) Get(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	contractUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid contract ID"})
	}

	var contract models.Contract
	if err := h.DB.
		Preload("Job").
		Preload("Proposal").
		Preload("Client").
		Preload("Freelancer").
		First(&contract, "id = ?", contractUUID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Contract not found"})
	}
	if contract.ClientID != userID && contract.FreelancerID != userID {
		return c.Status(403).JSON(fiber.Map{"success": false, "message": "Access denied"})
	}

	return c.JSON(fiber.Map{"success": true, "data": contract})
}

type DeliverReq struct {
	DeliveryText string `json:"delivery_text"`
}

// Deliver records the freelancer's submitted work on an active contract.
func (h *ContractHandler) Deliver(c *fiber.Ctx) error {
	freelancerID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	contractUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid contract ID"})
	}

	var req DeliverReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request body"})
	}

	if err := h.Contracts.SubmitDelivery(contractUUID, req.DeliveryText, freelancerID); err != nil {
		return serviceError(c, err)
	}

	var contract models.Contract
	if err := h.DB.First(&contract, "id = ?", contractUUID).Error; err == nil {
		h.notifyContract(contract.ClientID, fiber.Map{
			"type":        "contract_update",
			"event":       "delivered",
			"contract_id": contractUUID.String(),
		})
	}

	return c.JSON(fiber.Map{"success": true, "message": "Work delivered"})
}

// RequestRevision sends delivered work back to the freelancer.
func (h *ContractHandler) RequestRevision(c *fiber.Ctx) error {
	clientID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	contractUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid contract ID"})
	}

	if err := h.Contracts.RequestRevision(contractUUID, clientID); err != nil {
		return serviceError(c, err)
	}

	var contract models.Contract
	if err := h.DB.First(&contract, "id = ?", contractUUID).Error; err == nil {
		h.notifyContract(contract.FreelancerID, fiber.Map{
			"type":        "contract_update",
			"event":       "revision_requested",
			"contract_id": contractUUID.String(),
		})
	}

	return c.JSON(fiber.Map{"success": true, "message": "Revision requested"})
}

type CompleteReq struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Complete accepts the work, closes the contract and job, and records the
// review, all in one service transaction.
func (h *ContractHandler) Complete(c *fiber.Ctx) error {
	clientID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	contractUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid contract ID"})
	}

	var req CompleteReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request body"})
	}

	if err := h.Contracts.CompleteContract(contractUUID, req.Rating, req.Comment, clientID); err != nil {
		return serviceError(c, err)
	}

	var contract models.Contract
	if err := h.DB.First(&contract, "id = ?", contractUUID).Error; err == nil {
		h.notifyContract(contract.FreelancerID, fiber.Map{
			"type":        "contract_update",
			"event":       "completed",
			"contract_id": contractUUID.String(),
			"rating":      req.Rating,
		})
	}

	return c.JSON(fiber.Map{"success": true, "message": "Contract completed"})
}

// Cancel cancels an active contract. Client side only for now.
func (h *ContractHandler) Cancel(c *fiber.Ctx) error {
	clientID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	contractUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid contract ID"})
	}

	if err := h.Contracts.CancelContract(contractUUID, clientID); err != nil {
		return serviceError(c, err)
	}

	var contract models.Contract
	if err := h.DB.First(&contract, "id = ?", contractUUID).Error; err == nil {
		h.notifyContract(contract.FreelancerID, fiber.Map{
			"type":        "contract_update",
			"event":       "cancelled",
			"contract_id": contractUUID.String(),
		})
	}

	return c.JSON(fiber.Map{"success": true, "message": "Contract cancelled"})
}
