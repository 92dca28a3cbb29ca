package model

import (
	"time"
)

// Course is a class section owned by exactly one professor.
type Course struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Code        string    `gorm:"type:varchar(50);not null" json:"code"`  // e.g. CS101
	Name        string    `gorm:"type:varchar(120);not null" json:"name"` // e.g. Intro to CS
	CRN         string    `gorm:"type:varchar(50);not null" json:"crn"`   // section id
	ProfessorID uint      `gorm:"not null;index" json:"professor"`

	// Relationships
	Professor   User                `gorm:"foreignKey:ProfessorID;constraint:OnDelete:CASCADE" json:"-"`
	Enrollments []Enrollment        `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Materials   []Material          `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	PainPoints  []PainPoint         `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Snapshots   []ConfusionSnapshot `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Packets     []StudyPacket       `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}

// Enrollment links a student to a course. The composite primary key keeps
// the pair unique.
type Enrollment struct {
	StudentID uint      `gorm:"primaryKey" json:"student"`
	CourseID  uint      `gorm:"primaryKey;index" json:"course"`
	CreatedAt time.Time `json:"created_at"`
}

// Material is a file attached to a course. The bytes live in the blob store
// under StorageKey.
type Material struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	CourseID    uint      `gorm:"not null;index" json:"course"`
	Title       string    `gorm:"type:varchar(200);not null" json:"title"`
	FileName    string    `gorm:"type:varchar(255)" json:"file_name"`
	StorageKey  string    `gorm:"type:varchar(512);not null" json:"-"`
	FileURL     string    `gorm:"type:text" json:"file_url"`
	ContentType string    `gorm:"type:varchar(100)" json:"content_type"`
	FileSize    int64     `json:"file_size"`
	PageCount   int       `json:"page_count,omitempty"`
	UploadedBy  *uint     `gorm:"index" json:"uploaded_by"`

	Uploader *User `gorm:"foreignKey:UploadedBy;constraint:OnDelete:SET NULL" json:"-"`
}
