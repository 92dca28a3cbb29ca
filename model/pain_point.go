package model

import (
	"time"
)

// GeneralTopic is the bucket for pain points submitted without a topic.
const GeneralTopic = "general"

// PainPoint is a single confusion report. AuthorID is kept for the author's
// own bookkeeping and is never shown to teachers.
type PainPoint struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	CourseID    uint      `gorm:"not null;index" json:"course"`
	AuthorID    *uint     `gorm:"index" json:"author"`
	Title       string    `gorm:"type:varchar(200);not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Topic       string    `gorm:"type:varchar(120)" json:"topic"`

	Author *User `gorm:"foreignKey:AuthorID;constraint:OnDelete:SET NULL" json:"-"`
}

// TopicKey returns the topic used for aggregation.
func (p *PainPoint) TopicKey() string {
	if p.Topic == "" {
		return GeneralTopic
	}
	return p.Topic
}
