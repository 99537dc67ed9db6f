package handlers

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/woworkers/woworkers-api/internal/models"
	"github.com/woworkers/woworkers-api/internal/realtime"
)

type ChatHandler struct {
	DB  *gorm.DB
	Hub *realtime.Hub
	RDB *redis.Client
}

func NewChatHandler(db *gorm.DB, hub *realtime.Hub, rdb *redis.Client) *ChatHandler {
	return &ChatHandler{DB: db, Hub: hub, RDB: rdb}
}

type StartConversationReq struct {
	FreelancerID *string `json:"freelancer_id"`
	JobID        *string `json:"job_id"`
}

// StartConversation opens a thread with a freelancer, or returns the one that
// already exists for the pair. The job reference is optional context.
func (h *ChatHandler) StartConversation(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req StartConversationReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request"})
	}
	if req.FreelancerID == nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "freelancer_id is required"})
	}

	freelancerUUID, err := uuid.Parse(*req.FreelancerID)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid freelancer ID"})
	}
	if freelancerUUID == userUUID {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Cannot start a conversation with yourself"})
	}

	var jobUUID *uuid.UUID
	if req.JobID != nil {
		parsed, err := uuid.Parse(*req.JobID)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid job ID"})
		}
		var job models.Job
		if err := h.DB.First(&job, "id = ?", parsed).Error; err != nil {
			return c.Status(404).JSON(fiber.Map{"success": false, "message": "Job not found"})
		}
		jobUUID = &parsed
	}

	var conv models.Conversation
	err = h.DB.
		Where("client_id = ? AND freelancer_id = ?", userUUID, freelancerUUID).
		Order("updated_at DESC").
		First(&conv).Error

	created := false
	if err == gorm.ErrRecordNotFound {
		conv = models.Conversation{
			ClientID:      userUUID,
			FreelancerID:  freelancerUUID,
			JobID:         jobUUID,
			LastMessageAt: time.Now(),
		}
		if err := h.DB.Create(&conv).Error; err != nil {
			log.Println("Error creating conversation:", err)
			return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to create conversation"})
		}
		created = true
	} else if err != nil {
		log.Println("Error fetching conversation:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to fetch conversation"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"created": created,
		"data":    conv,
	})
}

type UserMini struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Title     string `json:"title,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type MessageOut struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Type           string    `json:"type"`
	Text           string    `json:"text"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

type ConversationOut struct {
	ID           string    `json:"id"`
	ClientID     string    `json:"client_id"`
	FreelancerID string    `json:"freelancer_id"`
	JobID        *string   `json:"job_id,omitempty"`
	JobTitle     string    `json:"job_title,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
	UnreadCount  int64     `json:"unread_count"`

	Client      *UserMini   `json:"client,omitempty"`
	Freelancer  *UserMini   `json:"freelancer,omitempty"`
	LastMessage *MessageOut `json:"last_message,omitempty"`
}

func userMini(u *models.User) *UserMini {
	if u == nil {
		return nil
	}
	out := &UserMini{ID: u.ID.String(), Name: u.Name}
	if u.Profile != nil {
		out.Title = u.Profile.Title
		out.AvatarURL = u.Profile.AvatarURL
	}
	return out
}

func messageOut(m models.Message) MessageOut {
	return MessageOut{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID.String(),
		SenderID:       m.SenderID.String(),
		Type:           m.Type,
		Text:           m.Text,
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
	}
}

// GetConversations returns the caller's threads, most recent activity first.
func (h *ChatHandler) GetConversations(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var convs []models.Conversation
	if err := h.DB.
		Preload("Client").
		Preload("Client.Profile").
		Preload("Freelancer").
		Preload("Freelancer.Profile").
		Preload("Job").
		Where("client_id = ? OR freelancer_id = ?", userUUID, userUUID).
		Order("last_message_at DESC").
		Find(&convs).Error; err != nil {

		log.Println("Error fetching conversations:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to fetch conversations"})
	}

	out := make([]ConversationOut, 0, len(convs))

	for _, conv := range convs {
		var unreadCount int64
		h.DB.Model(&models.Message{}).
			Where("conversation_id = ? AND sender_id != ? AND is_read = false", conv.ID, userUUID).
			Count(&unreadCount)

		var lastPtr *MessageOut
		var last models.Message
		if err := h.DB.
			Where("conversation_id = ?", conv.ID).
			Order("created_at DESC").
			Limit(1).
			First(&last).Error; err == nil {
			m := messageOut(last)
			lastPtr = &m
		}

		row := ConversationOut{
			ID:           conv.ID.String(),
			ClientID:     conv.ClientID.String(),
			FreelancerID: conv.FreelancerID.String(),
			UpdatedAt:    conv.LastMessageAt,
			UnreadCount:  unreadCount,
			Client:       userMini(conv.Client),
			Freelancer:   userMini(conv.Freelancer),
			LastMessage:  lastPtr,
		}
		if conv.JobID != nil {
			id := conv.JobID.String()
			row.JobID = &id
		}
		if conv.Job != nil {
			row.JobTitle = conv.Job.Title
		}

		out = append(out, row)
	}

	return c.JSON(fiber.Map{"success": true, "data": out})
}

// GetUnreadTotal counts unread messages across all of the caller's threads.
func (h *ChatHandler) GetUnreadTotal(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var count int64
	err = h.DB.Model(&models.Message{}).
		Joins("JOIN conversations ON messages.conversation_id = conversations.id").
		Where("(conversations.client_id = ? OR conversations.freelancer_id = ?) AND messages.sender_id != ? AND messages.is_read = false",
			userUUID, userUUID, userUUID).
		Count(&count).Error
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to count unread messages"})
	}

	return c.JSON(fiber.Map{"success": true, "data": count})
}

// GetMessages returns a thread's messages oldest first and marks the other
// side's messages read.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	convUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid conversation ID"})
	}

	var conv models.Conversation
	if err := h.DB.First(&conv, "id = ?", convUUID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Conversation not found"})
	}
	if conv.ClientID != userUUID && conv.FreelancerID != userUUID {
		return c.Status(403).JSON(fiber.Map{"success": false, "message": "Access denied"})
	}

	var messages []models.Message
	if err := h.DB.
		Where("conversation_id = ?", convUUID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		log.Println("Error fetching messages:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to fetch messages"})
	}

	if err := h.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id != ? AND is_read = false", convUUID, userUUID).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": time.Now(),
		}).Error; err != nil {
		// reading still succeeds, the flag catches up next time
		log.Println("Error marking messages as read:", err)
	}

	out := make([]MessageOut, 0, len(messages))
	for _, msg := range messages {
		out = append(out, messageOut(msg))
	}

	return c.JSON(fiber.Map{"success": true, "data": out})
}

// MarkAsRead flags the other party's messages in a thread as read.
func (h *ChatHandler) MarkAsRead(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	convUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid conversation ID"})
	}

	var conv models.Conversation
	if err := h.DB.First(&conv, "id = ?", convUUID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Conversation not found"})
	}
	if conv.ClientID != userUUID && conv.FreelancerID != userUUID {
		return c.Status(403).JSON(fiber.Map{"success": false, "message": "Access denied"})
	}

	if err := h.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id != ? AND is_read = false", convUUID, userUUID).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": time.Now(),
		}).Error; err != nil {
		log.Println("Error marking messages as read:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to mark messages as read"})
	}

	return c.JSON(fiber.Map{"success": true})
}

type SendMessageReq struct {
	Text string `json:"text"`
}

// SendMessage appends a message to a thread and fans it out to both parties.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	convUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid conversation ID"})
	}

	var req SendMessageReq
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Text is required"})
	}

	var conv models.Conversation
	if err := h.DB.First(&conv, "id = ?", convUUID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Conversation not found"})
	}
	if conv.ClientID != userUUID && conv.FreelancerID != userUUID {
		return c.Status(403).JSON(fiber.Map{"success": false, "message": "Access denied"})
	}

	msg := models.Message{
		ConversationID: convUUID,
		SenderID:       userUUID,
		Text:           strings.TrimSpace(req.Text),
		IsRead:         false,
	}
	if err := h.DB.Create(&msg).Error; err != nil {
		log.Println("Error creating message:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to send message"})
	}

	_ = h.DB.Model(&models.Conversation{}).
		Where("id = ?", conv.ID).
		Update("last_message_at", msg.CreatedAt).Error

	msgResp := messageOut(msg)

	h.Hub.SendToConversation(conv.ClientID, conv.FreelancerID, fiber.Map{
		"type":    "new_message",
		"message": msgResp,
	})

	// cross-instance push for the recipient
	recipientID := conv.ClientID
	if userUUID == conv.ClientID {
		recipientID = conv.FreelancerID
	}
	notif := map[string]interface{}{
		"type":            "chat_message",
		"conversation_id": convUUID.String(),
		"sender_id":       userUUID.String(),
		"text":            msg.Text,
	}
	payload, _ := json.Marshal(notif)
	h.RDB.Publish(context.Background(), "notifications:"+recipientID.String(), payload)

	return c.JSON(fiber.Map{"success": true, "data": msgResp})
}

// WebSocketHandler upgrades a connection and parks it on the hub.
func (h *ChatHandler) WebSocketHandler(c *websocket.Conn) {
	userID := c.Query("user_id")
	if userID == "" {
		log.Println("WebSocket: user_id parameter missing")
		c.Close()
		return
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		log.Println("WebSocket: invalid user_id:", userID, "error:", err)
		c.Close()
		return
	}

	log.Printf("WebSocket: user %s connected\n", userID)

	client := &realtime.Client{
		ID:     uuid.New().String(),
		UserID: userUUID,
		Conn:   &realtime.WebSocketConn{Conn: c},
		Send:   make(chan []byte, 256),
	}

	h.Hub.RegisterClient(client)
	defer func() {
		h.Hub.UnregisterClient(client)
		log.Printf("WebSocket: user %s disconnected\n", userID)
	}()

	go func() {
		for msg := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Println("WebSocket write error:", err)
				return
			}
		}
	}()

	for {
		var payload map[string]interface{}
		if err := c.ReadJSON(&payload); err != nil {
			log.Printf("WebSocket read error for user %s: %v\n", userID, err)
			break
		}

		if msgType, ok := payload["type"].(string); ok && msgType == "pong" {
			continue
		}
	}
}
