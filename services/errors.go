package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/MEmshousen/CodeRED2025-404NotFound/database"
	"github.com/MEmshousen/CodeRED2025-404NotFound/model"
)

var (
	// ErrNotFound means the resource does not exist or is outside the
	// caller's scope.
	ErrNotFound = errors.New("resource not found")
	// ErrForbidden means the caller can see the resource but lacks the role
	// or ownership the operation requires.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition means a study packet is not in a state the
	// requested transition starts from.
	ErrInvalidTransition = errors.New("invalid study packet transition")
	// ErrInvalidInput wraps request values the service rejects.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorageUnavailable means no blob store is configured.
	ErrStorageUnavailable = errors.New("file storage is not configured")
)

func notFound(what string, id uint) error {
	return fmt.Errorf("%w: %s %d", ErrNotFound, what, id)
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// courseAccess answers visibility questions shared by every service. A
// course is visible to its professor and to enrolled students.
type courseAccess struct {
	store database.CourseStore
}

// load returns the course regardless of scope.
func (a courseAccess) load(ctx context.Context, courseID uint) (*model.Course, error) {
	course, err := a.store.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, notFound("course", courseID)
		}
		return nil, fmt.Errorf("failed to load course: %w", err)
	}
	return course, nil
}

func (a courseAccess) canView(ctx context.Context, user *model.User, course *model.Course) (bool, error) {
	if user.IsTeacher() {
		return course.ProfessorID == user.ID, nil
	}
	enrolled, err := a.store.IsEnrolled(ctx, user.ID, course.ID)
	if err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	return enrolled, nil
}

// visible loads a course the caller may see. Courses outside the caller's
// scope are reported as not found.
func (a courseAccess) visible(ctx context.Context, user *model.User, courseID uint) (*model.Course, error) {
	course, err := a.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	ok, err := a.canView(ctx, user, course)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("course", courseID)
	}
	return course, nil
}

// member loads an existing course and requires the caller to see it.
// Unlike visible, a course the caller cannot see is forbidden.
func (a courseAccess) member(ctx context.Context, user *model.User, courseID uint) (*model.Course, error) {
	course, err := a.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	ok, err := a.canView(ctx, user, course)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: not a member of course %d", ErrForbidden, courseID)
	}
	return course, nil
}

// owned loads an existing course and requires the caller to be its
// professor.
func (a courseAccess) owned(ctx context.Context, user *model.User, courseID uint) (*model.Course, error) {
	course, err := a.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.ProfessorID != user.ID {
		return nil, fmt.Errorf("%w: only the course professor may do this", ErrForbidden)
	}
	return course, nil
}
