// internal/models/contract.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ContractStatus string

const (
	ContractActive    ContractStatus = "active"
	ContractCompleted ContractStatus = "completed"
	ContractCancelled ContractStatus = "cancelled"
)

var contractTransitions = map[ContractStatus][]ContractStatus{
	ContractActive: {ContractCompleted, ContractCancelled},
}

func (s ContractStatus) CanTransition(to ContractStatus) bool {
	for _, next := range contractTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s ContractStatus) Terminal() bool {
	return len(contractTransitions[s]) == 0
}

// DeliveryStatus is the sub-state nested inside an active contract. The empty
// value means nothing has been delivered yet.
type DeliveryStatus string

const (
	DeliveryNone              DeliveryStatus = ""
	DeliveryDelivered         DeliveryStatus = "delivered"
	DeliveryRevisionRequested DeliveryStatus = "revision_requested"
	DeliveryAccepted          DeliveryStatus = "accepted" // set by the completion transaction
)

var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryNone:              {DeliveryDelivered},
	DeliveryDelivered:         {DeliveryRevisionRequested, DeliveryAccepted},
	DeliveryRevisionRequested: {DeliveryDelivered},
}

func (s DeliveryStatus) CanTransition(to DeliveryStatus) bool {
	for _, next := range deliveryTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type ContractType string

const (
	ContractFixed  ContractType = "fixed"
	ContractHourly ContractType = "hourly"
)

type Contract struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	JobID        uuid.UUID `gorm:"type:uuid;index;not null" json:"job_id"`
	ProposalID   uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"proposal_id"` // 1:1 with the accepted proposal
	ClientID     uuid.UUID `gorm:"type:uuid;index;not null" json:"client_id"`
	FreelancerID uuid.UUID `gorm:"type:uuid;index;not null" json:"freelancer_id"`

	Amount       int64        `gorm:"not null" json:"amount"` // snapshot of the accepted bid
	ContractType ContractType `gorm:"type:varchar(10);default:'fixed'" json:"contract_type"`

	Status    ContractStatus `gorm:"type:varchar(20);default:'active';index" json:"status"`
	StartDate time.Time      `json:"start_date"`
	EndDate   *time.Time     `json:"end_date"`

	DeliveryStatus DeliveryStatus `gorm:"type:varchar(30);default:''" json:"delivery_status"`
	DeliveryText   string         `gorm:"type:text" json:"delivery_text"`
	DeliveredAt    *time.Time     `json:"delivered_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Job        *Job      `gorm:"foreignKey:JobID" json:"job,omitempty"`
	Proposal   *Proposal `gorm:"foreignKey:ProposalID" json:"proposal,omitempty"`
	Client     *User     `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Freelancer *User     `gorm:"foreignKey:FreelancerID" json:"freelancer,omitempty"`
}

func (c *Contract) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}
