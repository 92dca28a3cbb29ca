package painpoint

import (
	"time"

	"github.com/MEmshousen/CodeRED2025-404NotFound/model"
)

// TeacherView is what a teacher sees. It has no author field at all.
type TeacherView struct {
	ID          uint      `json:"id"`
	Course      uint      `json:"course"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Topic       string    `json:"topic"`
	CreatedAt   time.Time `json:"created_at"`
}

// StudentView is what a student sees, including the author.
type StudentView struct {
	TeacherView
	Author *uint `json:"author"`
}

// Present picks the representation for the caller's role. The record
// itself always keeps the author.
func Present(user *model.User, pp *model.PainPoint) interface{} {
	base := TeacherView{
		ID:          pp.ID,
		Course:      pp.CourseID,
		Title:       pp.Title,
		Description: pp.Description,
		Topic:       pp.Topic,
		CreatedAt:   pp.CreatedAt,
	}
	if user.IsTeacher() {
		return base
	}
	return StudentView{TeacherView: base, Author: pp.AuthorID}
}

// PresentAll applies Present to a listing.
func PresentAll(user *model.User, points []model.PainPoint) []interface{} {
	out := make([]interface{}, len(points))
	for i := range points {
		out[i] = Present(user, &points[i])
	}
	return out
}
