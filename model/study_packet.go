package model

import (
	"time"

	"gorm.io/datatypes"
)

// StudyPacketStatus is the lifecycle state of a study packet.
type StudyPacketStatus string

const (
	StudyPacketPending  StudyPacketStatus = "PENDING"
	StudyPacketReady    StudyPacketStatus = "READY"
	StudyPacketApproved StudyPacketStatus = "APPROVED"
	StudyPacketSent     StudyPacketStatus = "SENT"
)

// StudyPacket holds generated study material (quizzes, flashcards, summaries)
// awaiting teacher approval.
type StudyPacket struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"-"`
	CourseID   uint              `gorm:"not null;index" json:"course"`
	Status     StudyPacketStatus `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	Payload    datatypes.JSON    `gorm:"type:jsonb" json:"payload"`
	CreatedBy  *uint             `gorm:"index" json:"created_by"`
	ApprovedAt *time.Time        `json:"approved_at"`

	Creator *User `gorm:"foreignKey:CreatedBy;constraint:OnDelete:SET NULL" json:"-"`
}
