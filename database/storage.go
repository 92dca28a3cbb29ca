package database

import (
	"context"
	"errors"
	"time"

	"github.com/MEmshousen/CodeRED2025-404NotFound/model"
	"gorm.io/datatypes"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional update matched no row in the
	// expected state.
	ErrConflict = errors.New("record is not in the expected state")
)

// Scope restricts reads to the courses a user may see. A teacher sees the
// courses they own, a student the courses they are enrolled in. The zero
// value is unscoped.
type Scope struct {
	ProfessorID uint
	StudentID   uint
}

// ScopeFor returns the read scope of a user.
func ScopeFor(user *model.User) Scope {
	if user.IsTeacher() {
		return Scope{ProfessorID: user.ID}
	}
	return Scope{StudentID: user.ID}
}

// PainPointFilter narrows a pain point listing. The course filter is applied
// before the scope.
type PainPointFilter struct {
	CourseID uint
	Scope    Scope
}

// StudyPacketFilter narrows a study packet listing.
type StudyPacketFilter struct {
	CourseID uint
	Scope    Scope
}

// StudyPacketUpdate holds the fields written by a state transition. Nil
// fields are left unchanged.
type StudyPacketUpdate struct {
	Status     model.StudyPacketStatus
	Payload    datatypes.JSON
	ApprovedAt *time.Time
}

// Storage defines the interface that all database implementations must satisfy
type Storage interface {
	// Lifecycle methods
	Init() error
	Close() error
	HealthCheck() error

	UserStore
	CourseStore
	PainPointStore
	SnapshotStore
	StudyPacketStore
	CronLogStore
}

// UserStore persists provisioned users.
type UserStore interface {
	// EnsureUser inserts the user unless a row with the same ID exists, and
	// returns the stored row.
	EnsureUser(ctx context.Context, user *model.User) (*model.User, error)
	GetUser(ctx context.Context, id uint) (*model.User, error)
}

// CourseStore persists courses, enrollments and materials.
type CourseStore interface {
	CreateCourse(ctx context.Context, course *model.Course) error
	GetCourse(ctx context.Context, id uint) (*model.Course, error)
	UpdateCourse(ctx context.Context, course *model.Course) error
	DeleteCourse(ctx context.Context, id uint) error
	ListCourses(ctx context.Context, scope Scope) ([]model.Course, error)

	// Enroll creates the enrollment if it does not exist. created is false
	// when the pair was already enrolled.
	Enroll(ctx context.Context, studentID, courseID uint) (created bool, err error)
	IsEnrolled(ctx context.Context, studentID, courseID uint) (bool, error)
	CountEnrollments(ctx context.Context, courseID uint) (int64, error)

	CreateMaterial(ctx context.Context, material *model.Material) error
	GetMaterial(ctx context.Context, courseID, id uint) (*model.Material, error)
	ListMaterials(ctx context.Context, courseID uint) ([]model.Material, error)
}

// PainPointStore persists the pain point ledger.
type PainPointStore interface {
	CreatePainPoint(ctx context.Context, pp *model.PainPoint) error
	GetPainPoint(ctx context.Context, id uint) (*model.PainPoint, error)
	DeletePainPoint(ctx context.Context, id uint) error
	// ListPainPoints returns matching pain points newest first.
	ListPainPoints(ctx context.Context, filter PainPointFilter) ([]model.PainPoint, error)
	// PainPointsBetween returns the course's pain points created at or after
	// from and, when until is non-zero, strictly before until. Oldest first.
	PainPointsBetween(ctx context.Context, courseID uint, from, until time.Time) ([]model.PainPoint, error)
	CountPainPoints(ctx context.Context, courseID uint) (int64, error)
}

// SnapshotStore persists confusion snapshots. Snapshots are write-once.
type SnapshotStore interface {
	CreateSnapshot(ctx context.Context, snapshot *model.ConfusionSnapshot) error
	ListSnapshots(ctx context.Context, courseID uint) ([]model.ConfusionSnapshot, error)
}

// StudyPacketStore persists study packets.
type StudyPacketStore interface {
	CreateStudyPacket(ctx context.Context, packet *model.StudyPacket) error
	GetStudyPacket(ctx context.Context, id uint) (*model.StudyPacket, error)
	ListStudyPackets(ctx context.Context, filter StudyPacketFilter) ([]model.StudyPacket, error)
	// TransitionStudyPacket applies update when the packet's current status is
	// one of from. An empty from matches any status. Returns ErrConflict when
	// the packet exists in another state.
	TransitionStudyPacket(ctx context.Context, id uint, from []model.StudyPacketStatus, update StudyPacketUpdate) (*model.StudyPacket, error)
}

// CronLogStore persists background job runs.
type CronLogStore interface {
	CreateCronJobLog(ctx context.Context, entry *model.CronJobLog) error
	SaveCronJobLog(ctx context.Context, entry *model.CronJobLog) error
	// PruneCronJobLogs deletes logs started before the cutoff.
	PruneCronJobLogs(ctx context.Context, before time.Time) (int64, error)
}
