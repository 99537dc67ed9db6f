// internal/models/job.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JobStatus string

const (
	JobOpen       JobStatus = "open"        // accepting proposals
	JobInProgress JobStatus = "in-progress" // a proposal was accepted, contract active
	JobCompleted  JobStatus = "completed"   // contract completed
	JobCancelled  JobStatus = "cancelled"   // cancelled by client before acceptance
)

// jobTransitions is the closed set of legal job status moves. Status fields
// are written only by the contracts service, which checks this table.
var jobTransitions = map[JobStatus][]JobStatus{
	JobOpen:       {JobInProgress, JobCancelled},
	JobInProgress: {JobCompleted},
}

// CanTransition reports whether s -> to is a legal move.
func (s JobStatus) CanTransition(to JobStatus) bool {
	for _, next := range jobTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s JobStatus) Terminal() bool {
	return len(jobTransitions[s]) == 0
}

type BudgetType string

const (
	BudgetFixed  BudgetType = "fixed"
	BudgetHourly BudgetType = "hourly"
)

type Job struct {
	ID       uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID uuid.UUID `gorm:"type:uuid;index;not null" json:"client_id"`

	Title       string         `gorm:"type:varchar(200);not null" json:"title"`
	Description string         `gorm:"type:text;not null" json:"description"`
	Category    string         `gorm:"type:varchar(80);index" json:"category"`
	Skills      datatypes.JSON `json:"skills"` // up to 10 skill tags

	BudgetMin  int64      `json:"budget_min"`
	BudgetMax  int64      `json:"budget_max"`
	BudgetType BudgetType `gorm:"type:varchar(10);default:'fixed'" json:"budget_type"`

	Duration        string `gorm:"type:varchar(50)" json:"duration"`         // e.g. "1-2 weeks"
	ExperienceLevel string `gorm:"type:varchar(30)" json:"experience_level"` // entry | intermediate | expert
	IsRemote        bool   `gorm:"default:true" json:"is_remote"`
	Location        string `gorm:"type:varchar(120)" json:"location"`

	Status JobStatus `gorm:"type:varchar(20);default:'open';index" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Client    *User      `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Proposals []Proposal `gorm:"foreignKey:JobID" json:"proposals,omitempty"`
}

func (j *Job) BeforeCreate(tx *gorm.DB) (err error) {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return
}
