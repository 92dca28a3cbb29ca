package model

import (
	"time"

	"gorm.io/datatypes"
)

// ConfusionSnapshot is a stored rollup of one course's pain points over a
// time window. It is written once and never updated.
type ConfusionSnapshot struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	CourseID    uint           `gorm:"not null;index" json:"course"`
	WindowStart time.Time      `gorm:"not null" json:"window_start"`
	WindowEnd   time.Time      `gorm:"not null" json:"window_end"`
	Count       int            `gorm:"not null;default:0" json:"count"`
	TopTopics   datatypes.JSON `gorm:"type:jsonb" json:"top_topics"` // ["recursion", "matrix mult"]
	Summary     string         `gorm:"type:text" json:"summary"`
}
