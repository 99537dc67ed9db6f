// internal/models/proposal.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProposalStatus string

const (
	ProposalPending   ProposalStatus = "pending"
	ProposalAccepted  ProposalStatus = "accepted"  // set only by the acceptance transaction
	ProposalRejected  ProposalStatus = "rejected"  // by the client, or as a side effect of acceptance
	ProposalWithdrawn ProposalStatus = "withdrawn" // by the submitting freelancer
)

var proposalTransitions = map[ProposalStatus][]ProposalStatus{
	ProposalPending: {ProposalAccepted, ProposalRejected, ProposalWithdrawn},
}

func (s ProposalStatus) CanTransition(to ProposalStatus) bool {
	for _, next := range proposalTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s ProposalStatus) Terminal() bool {
	return len(proposalTransitions[s]) == 0
}

type Proposal struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	JobID        uuid.UUID `gorm:"type:uuid;index;not null" json:"job_id"`
	FreelancerID uuid.UUID `gorm:"type:uuid;index;not null" json:"freelancer_id"`

	BidAmount   int64  `gorm:"not null" json:"bid_amount"`
	CoverLetter string `gorm:"type:text;not null" json:"cover_letter"`
	Timeline    string `gorm:"type:varchar(200)" json:"timeline"` // e.g. "7 days"

	Status ProposalStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Job        *Job  `gorm:"foreignKey:JobID" json:"job,omitempty"`
	Freelancer *User `gorm:"foreignKey:FreelancerID" json:"freelancer,omitempty"`
}

func (p *Proposal) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}
