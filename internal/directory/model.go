package directory

import (
	"strings"
	"time"
)

// Homeowner is one entry in the homeowner directory. The inventory core
// treats the directory as read-only; only assignment records are ever filed
// under a homeowner.
type Homeowner struct {
	HomeownerID string    `gorm:"column:homeowner_id;primaryKey;size:190;not null" json:"homeowner_id"`
	FirstName   string    `gorm:"column:first_name;size:190;not null" json:"first_name"`
	LastName    string    `gorm:"column:last_name;size:190;not null" json:"last_name"`
	Username    string    `gorm:"column:username;size:190;not null;uniqueIndex" json:"username"`
	Role        string    `gorm:"column:role;size:64;not null;default:'homeowner'" json:"role"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Homeowner) TableName() string {
	return "homeowners"
}

// DisplayName formats the name shown on lot rows and assignment records.
// Falls back to the username when both name parts are blank.
func (h Homeowner) DisplayName() string {
	full := strings.TrimSpace(strings.TrimSpace(h.FirstName) + " " + strings.TrimSpace(h.LastName))
	if full == "" {
		return strings.TrimSpace(h.Username)
	}
	return full
}
