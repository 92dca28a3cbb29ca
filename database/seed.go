package database

import (
	"context"
	"fmt"

	"github.com/MEmshousen/CodeRED2025-404NotFound/model"
	"go.uber.org/zap"
)

// Demo identities. The IDs stand in for subjects issued by the identity
// provider.
const (
	SeedTeacherID  uint = 1001
	SeedStudentID  uint = 2001
	SeedCourseCode      = "CS101"
)

// SeedResult lists what the seeder created or found.
type SeedResult struct {
	Teacher *model.User
	Student *model.User
	Course  *model.Course
}

// Seeder handles database seeding operations
type Seeder struct {
	store Storage
	log   *zap.Logger
}

// NewSeeder creates a new seeder instance
func NewSeeder(store Storage, log *zap.Logger) *Seeder {
	return &Seeder{store: store, log: log}
}

// SeedAll creates a teacher, a student and a course the student is enrolled
// in. Running it again reuses the existing rows.
func (s *Seeder) SeedAll(ctx context.Context) (*SeedResult, error) {
	s.log.Info("starting database seeding")

	teacher, err := s.store.EnsureUser(ctx, &model.User{
		ID:          SeedTeacherID,
		Email:       "professor@example.edu",
		DisplayName: "Demo Professor",
		Role:        model.RoleTeacher,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to seed teacher: %w", err)
	}

	student, err := s.store.EnsureUser(ctx, &model.User{
		ID:          SeedStudentID,
		Email:       "student@example.edu",
		DisplayName: "Demo Student",
		Role:        model.RoleStudent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to seed student: %w", err)
	}

	course, err := s.seedCourse(ctx, teacher)
	if err != nil {
		return nil, err
	}

	created, err := s.store.Enroll(ctx, student.ID, course.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to seed enrollment: %w", err)
	}

	s.log.Info("database seeding completed",
		zap.Uint("course_id", course.ID),
		zap.Bool("enrollment_created", created))
	return &SeedResult{Teacher: teacher, Student: student, Course: course}, nil
}

func (s *Seeder) seedCourse(ctx context.Context, teacher *model.User) (*model.Course, error) {
	courses, err := s.store.ListCourses(ctx, Scope{ProfessorID: teacher.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	for i := range courses {
		if courses[i].Code == SeedCourseCode {
			s.log.Info("course already exists, skipping", zap.String("code", SeedCourseCode))
			return &courses[i], nil
		}
	}

	course := &model.Course{
		Code:        SeedCourseCode,
		Name:        "Introduction to Computer Science",
		CRN:         "10001",
		ProfessorID: teacher.ID,
	}
	if err := s.store.CreateCourse(ctx, course); err != nil {
		return nil, fmt.Errorf("failed to seed course: %w", err)
	}
	return course, nil
}
