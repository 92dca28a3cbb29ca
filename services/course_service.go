package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/MEmshousen/CodeRED2025-404NotFound/database"
	"github.com/MEmshousen/CodeRED2025-404NotFound/model"
	"go.uber.org/zap"
)

// CourseInput carries the client-writable course fields.
type CourseInput struct {
	Code string
	Name string
	CRN  string
}

// CourseService manages courses and enrollments
type CourseService struct {
	store  database.CourseStore
	access courseAccess
	log    *zap.Logger
}

// NewCourseService creates a new course service
func NewCourseService(store database.CourseStore, log *zap.Logger) *CourseService {
	return &CourseService{
		store:  store,
		access: courseAccess{store: store},
		log:    log,
	}
}

// Create stores a new course owned by the calling teacher.
func (s *CourseService) Create(ctx context.Context, user *model.User, in CourseInput) (*model.Course, error) {
	if !user.IsTeacher() {
		return nil, fmt.Errorf("%w: only teachers can create courses", ErrForbidden)
	}

	course := &model.Course{
		Code:        in.Code,
		Name:        in.Name,
		CRN:         in.CRN,
		ProfessorID: user.ID,
	}
	if err := s.store.CreateCourse(ctx, course); err != nil {
		return nil, fmt.Errorf("failed to create course: %w", err)
	}

	s.log.Info("course created", zap.Uint("course_id", course.ID), zap.Uint("professor_id", user.ID))
	return course, nil
}

// List returns the caller's courses: owned for teachers, enrolled for students.
func (s *CourseService) List(ctx context.Context, user *model.User) ([]model.Course, error) {
	courses, err := s.store.ListCourses(ctx, database.ScopeFor(user))
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	return courses, nil
}

// Get returns a course within the caller's scope.
func (s *CourseService) Get(ctx context.Context, user *model.User, id uint) (*model.Course, error) {
	return s.access.visible(ctx, user, id)
}

// CourseDetail is a course with the size of its roster.
type CourseDetail struct {
	*model.Course
	EnrollmentCount int64 `json:"enrollment_count"`
}

// Detail returns a course within the caller's scope with its enrollment count.
func (s *CourseService) Detail(ctx context.Context, user *model.User, id uint) (*CourseDetail, error) {
	course, err := s.access.visible(ctx, user, id)
	if err != nil {
		return nil, err
	}
	n, err := s.store.CountEnrollments(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count enrollments: %w", err)
	}
	return &CourseDetail{Course: course, EnrollmentCount: n}, nil
}

// Update changes the course fields. Only the professor may update.
func (s *CourseService) Update(ctx context.Context, user *model.User, id uint, in CourseInput) (*model.Course, error) {
	course, err := s.access.visible(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if course.ProfessorID != user.ID {
		return nil, fmt.Errorf("%w: only the course professor may update it", ErrForbidden)
	}

	course.Code, course.Name, course.CRN = in.Code, in.Name, in.CRN
	if err := s.store.UpdateCourse(ctx, course); err != nil {
		return nil, fmt.Errorf("failed to update course: %w", err)
	}
	return s.store.GetCourse(ctx, id)
}

// Delete removes the course and everything attached to it.
func (s *CourseService) Delete(ctx context.Context, user *model.User, id uint) error {
	course, err := s.access.visible(ctx, user, id)
	if err != nil {
		return err
	}
	if course.ProfessorID != user.ID {
		return fmt.Errorf("%w: only the course professor may delete it", ErrForbidden)
	}

	if err := s.store.DeleteCourse(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return notFound("course", id)
		}
		return fmt.Errorf("failed to delete course: %w", err)
	}

	s.log.Info("course deleted", zap.Uint("course_id", id))
	return nil
}

// Join enrolls the caller. Joining an already joined course succeeds with
// created=false.
func (s *CourseService) Join(ctx context.Context, user *model.User, id uint) (bool, error) {
	if _, err := s.access.load(ctx, id); err != nil {
		return false, err
	}

	created, err := s.store.Enroll(ctx, user.ID, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return false, notFound("course", id)
		}
		return false, fmt.Errorf("failed to enroll: %w", err)
	}
	if created {
		s.log.Info("student enrolled", zap.Uint("course_id", id), zap.Uint("user_id", user.ID))
	}
	return created, nil
}
