package model

import (
	"strings"
	"time"
)

// Role is the coarse permission class of a user.
type Role string

const (
	RoleTeacher Role = "TEACHER"
	RoleStudent Role = "STUDENT"
)

// ParseRole normalises a role claim. Anything that is not a teacher is a student.
func ParseRole(raw string) Role {
	if strings.EqualFold(strings.TrimSpace(raw), string(RoleTeacher)) {
		return RoleTeacher
	}
	return RoleStudent
}

// User is provisioned from the claims of the external identity provider on
// first contact. The role is fixed at that point.
type User struct {
	ID          uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Email       string    `gorm:"type:varchar(255);index" json:"email"`
	DisplayName string    `gorm:"type:varchar(120)" json:"display_name"`
	Role        Role      `gorm:"type:varchar(10);not null;default:'STUDENT'" json:"role"`

	// Relationships
	Courses     []Course     `gorm:"foreignKey:ProfessorID;constraint:OnDelete:CASCADE" json:"-"`
	Enrollments []Enrollment `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsTeacher reports whether the user holds the teacher role.
func (u *User) IsTeacher() bool {
	return u != nil && u.Role == RoleTeacher
}
