package services

import (
	"context"
	"errors"
	"testing"

	"github.com/MEmshousen/CodeRED2025-404NotFound/database"
	"github.com/MEmshousen/CodeRED2025-404NotFound/model"
	"go.uber.org/zap"
)

type fixture struct {
	store   *database.MemoryStore
	teacher *model.User
	other   *model.User
	student *model.User
	outside *model.User
	course  *model.Course
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := database.NewMemoryStore()

	users := []*model.User{
		{ID: 1, Email: "prof@example.edu", Role: model.RoleTeacher},
		{ID: 2, Email: "other@example.edu", Role: model.RoleTeacher},
		{ID: 3, Email: "student@example.edu", Role: model.RoleStudent},
		{ID: 4, Email: "outside@example.edu", Role: model.RoleStudent},
	}
	for _, u := range users {
		if _, err := store.EnsureUser(ctx, u); err != nil {
			t.Fatalf("EnsureUser: %v", err)
		}
	}

	course := &model.Course{Code: "CS101", Name: "Intro to CS", ProfessorID: 1}
	if err := store.CreateCourse(ctx, course); err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	if _, err := store.Enroll(ctx, 3, course.ID); err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	return &fixture{
		store:   store,
		teacher: users[0],
		other:   users[1],
		student: users[2],
		outside: users[3],
		course:  course,
	}
}

func TestCourseService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewCourseService(f.store, zap.NewNop())

	if _, err := svc.Create(ctx, f.student, CourseInput{Code: "X", Name: "X"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("student create: expected ErrForbidden, got %v", err)
	}

	created, err := svc.Create(ctx, f.teacher, CourseInput{Code: "CS201", Name: "Data Structures", CRN: "12345"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ProfessorID != f.teacher.ID {
		t.Fatalf("expected professor %d, got %d", f.teacher.ID, created.ProfessorID)
	}

	courses, err := svc.List(ctx, f.student)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(courses) != 1 || courses[0].ID != f.course.ID {
		t.Fatalf("student should see only the enrolled course, got %+v", courses)
	}

	if _, err := svc.Get(ctx, f.outside, f.course.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("outsider get: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Update(ctx, f.student, f.course.ID, CourseInput{Code: "Y", Name: "Y"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("student update: expected ErrForbidden, got %v", err)
	}

	updated, err := svc.Update(ctx, f.teacher, f.course.ID, CourseInput{Code: "CS101", Name: "Intro to Computing"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "Intro to Computing" {
		t.Fatalf("expected updated name, got %q", updated.Name)
	}

	if err := svc.Delete(ctx, f.other, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other teacher delete: expected ErrNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, f.teacher, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestCourseServiceJoinIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewCourseService(f.store, zap.NewNop())

	first, err := svc.Join(ctx, f.outside, f.course.ID)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	second, err := svc.Join(ctx, f.outside, f.course.ID)
	if err != nil {
		t.Fatalf("second Join: %v", err)
	}
	if !first || second {
		t.Fatalf("expected created=true then false, got %v then %v", first, second)
	}

	detail, err := svc.Detail(ctx, f.teacher, f.course.ID)
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if detail.ID != f.course.ID || detail.EnrollmentCount != 2 {
		t.Fatalf("expected 2 enrollments, got %+v", detail)
	}
	if _, err := svc.Detail(ctx, f.other, f.course.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other teacher detail: expected ErrNotFound, got %v", err)
	}

	if _, err := svc.Join(ctx, f.outside, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("join missing course: expected ErrNotFound, got %v", err)
	}
}
