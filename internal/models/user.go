// internal/models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Role string

const (
	RoleClient     Role = "client"
	RoleFreelancer Role = "freelancer"
	RoleAdmin      Role = "admin"
)

type User struct {
	ID    uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name  string    `gorm:"not null" json:"name"`
	Email string    `gorm:"uniqueIndex;not null" json:"email"`

	Password string `gorm:"not null" json:"-"`
	Role     Role   `gorm:"type:varchar(20);not null;index" json:"role"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// HAS ONE profile (profiles.user_id -> users.id)
	Profile *Profile `gorm:"foreignKey:UserID;references:ID" json:"profile,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}

// Profile holds the public-facing info for a user plus the freelancer
// reputation aggregates. The aggregates are written only by the contract
// completion transaction; everything else is editable by the owner.
type Profile struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`

	FirstName string `gorm:"type:varchar(80)" json:"first_name"`
	LastName  string `gorm:"type:varchar(80)" json:"last_name"`
	Title     string `gorm:"type:varchar(120)" json:"title"` // e.g. "Graphic Designer"
	Bio       string `gorm:"type:text" json:"bio"`
	AvatarURL string `gorm:"type:text" json:"avatar_url"`

	HourlyRate int64          `json:"hourly_rate"`
	Skills     datatypes.JSON `json:"skills"` // ["logo design", "branding", ...]
	Location   string         `gorm:"type:varchar(120)" json:"location"`

	// Reputation aggregates (see internal/services/reputation)
	RatingTotal   int64 `gorm:"default:0" json:"rating_total"`
	RatingCount   int64 `gorm:"default:0" json:"rating_count"`
	JobsCompleted int64 `gorm:"default:0" json:"jobs_completed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Profile) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}

// AverageRating returns the mean rating, or 0 when there are no reviews yet.
func (p *Profile) AverageRating() float64 {
	if p.RatingCount == 0 {
		return 0
	}
	return float64(p.RatingTotal) / float64(p.RatingCount)
}
