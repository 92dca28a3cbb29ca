package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MEmshousen/CodeRED2025-404NotFound/model"
)

type enrollmentKey struct {
	studentID uint
	courseID  uint
}

// MemoryStore is a process-local Storage used with DB_DRIVER=memory and in
// tests. Rows are copied in and out so callers never share state with it.
type MemoryStore struct {
	mu sync.RWMutex

	nextID      map[string]uint
	users       map[uint]model.User
	courses     map[uint]model.Course
	enrollments map[enrollmentKey]model.Enrollment
	materials   map[uint]model.Material
	painPoints  map[uint]model.PainPoint
	snapshots   map[uint]model.ConfusionSnapshot
	packets     map[uint]model.StudyPacket
	cronLogs    map[uint]model.CronJobLog

	now func() time.Time
}

var _ Storage = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:      make(map[string]uint),
		users:       make(map[uint]model.User),
		courses:     make(map[uint]model.Course),
		enrollments: make(map[enrollmentKey]model.Enrollment),
		materials:   make(map[uint]model.Material),
		painPoints:  make(map[uint]model.PainPoint),
		snapshots:   make(map[uint]model.ConfusionSnapshot),
		packets:     make(map[uint]model.StudyPacket),
		cronLogs:    make(map[uint]model.CronJobLog),
		now:         time.Now,
	}
}

func (s *MemoryStore) Init() error        { return nil }
func (s *MemoryStore) Close() error       { return nil }
func (s *MemoryStore) HealthCheck() error { return nil }

func (s *MemoryStore) id(table string) uint {
	s.nextID[table]++
	return s.nextID[table]
}

func (s *MemoryStore) stamp(t *time.Time) {
	if t.IsZero() {
		*t = s.now().UTC()
	}
}

func (s *MemoryStore) inScope(courseID uint, scope Scope) bool {
	if scope.ProfessorID != 0 {
		c, ok := s.courses[courseID]
		if !ok || c.ProfessorID != scope.ProfessorID {
			return false
		}
	}
	if scope.StudentID != 0 {
		if _, ok := s.enrollments[enrollmentKey{scope.StudentID, courseID}]; !ok {
			return false
		}
	}
	return true
}

// newestFirst orders by created_at then id, both descending.
func newestFirst(ti, tj time.Time, idi, idj uint) bool {
	if !ti.Equal(tj) {
		return ti.After(tj)
	}
	return idi > idj
}

// Users

func (s *MemoryStore) EnsureUser(_ context.Context, user *model.User) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[user.ID]; ok {
		return &existing, nil
	}
	u := *user
	s.stamp(&u.CreatedAt)
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = u
	*user = u
	return &u, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id uint) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// Courses

func (s *MemoryStore) CreateCourse(_ context.Context, course *model.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	course.ID = s.id("courses")
	s.stamp(&course.CreatedAt)
	course.UpdatedAt = course.CreatedAt
	s.courses[course.ID] = *course
	return nil
}

func (s *MemoryStore) GetCourse(_ context.Context, id uint) (*model.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.courses[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *MemoryStore) UpdateCourse(_ context.Context, course *model.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.courses[course.ID]
	if !ok {
		return ErrNotFound
	}
	c.Code, c.Name, c.CRN = course.Code, course.Name, course.CRN
	c.UpdatedAt = s.now().UTC()
	s.courses[c.ID] = c
	return nil
}

// DeleteCourse removes the course and everything that cascades from it.
func (s *MemoryStore) DeleteCourse(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[id]; !ok {
		return ErrNotFound
	}
	delete(s.courses, id)
	for k := range s.enrollments {
		if k.courseID == id {
			delete(s.enrollments, k)
		}
	}
	for k, m := range s.materials {
		if m.CourseID == id {
			delete(s.materials, k)
		}
	}
	for k, p := range s.painPoints {
		if p.CourseID == id {
			delete(s.painPoints, k)
		}
	}
	for k, snap := range s.snapshots {
		if snap.CourseID == id {
			delete(s.snapshots, k)
		}
	}
	for k, p := range s.packets {
		if p.CourseID == id {
			delete(s.packets, k)
		}
	}
	return nil
}

func (s *MemoryStore) ListCourses(_ context.Context, scope Scope) ([]model.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Course, 0)
	for _, c := range s.courses {
		if s.inScope(c.ID, scope) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Enroll(_ context.Context, studentID, courseID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[courseID]; !ok {
		return false, ErrNotFound
	}
	key := enrollmentKey{studentID, courseID}
	if _, ok := s.enrollments[key]; ok {
		return false, nil
	}
	s.enrollments[key] = model.Enrollment{StudentID: studentID, CourseID: courseID, CreatedAt: s.now().UTC()}
	return true, nil
}

func (s *MemoryStore) IsEnrolled(_ context.Context, studentID, courseID uint) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.enrollments[enrollmentKey{studentID, courseID}]
	return ok, nil
}

func (s *MemoryStore) CountEnrollments(_ context.Context, courseID uint) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for k := range s.enrollments {
		if k.courseID == courseID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CreateMaterial(_ context.Context, material *model.Material) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[material.CourseID]; !ok {
		return ErrNotFound
	}
	material.ID = s.id("materials")
	s.stamp(&material.CreatedAt)
	s.materials[material.ID] = *material
	return nil
}

func (s *MemoryStore) GetMaterial(_ context.Context, courseID, id uint) (*model.Material, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.materials[id]
	if !ok || m.CourseID != courseID {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (s *MemoryStore) ListMaterials(_ context.Context, courseID uint) ([]model.Material, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Material, 0)
	for _, m := range s.materials {
		if m.CourseID == courseID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

// Pain points

func (s *MemoryStore) CreatePainPoint(_ context.Context, pp *model.PainPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[pp.CourseID]; !ok {
		return ErrNotFound
	}
	pp.ID = s.id("pain_points")
	s.stamp(&pp.CreatedAt)
	s.painPoints[pp.ID] = *pp
	return nil
}

func (s *MemoryStore) GetPainPoint(_ context.Context, id uint) (*model.PainPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.painPoints[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) DeletePainPoint(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.painPoints[id]; !ok {
		return ErrNotFound
	}
	delete(s.painPoints, id)
	return nil
}

func (s *MemoryStore) ListPainPoints(_ context.Context, filter PainPointFilter) ([]model.PainPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.PainPoint, 0)
	for _, p := range s.painPoints {
		if filter.CourseID != 0 && p.CourseID != filter.CourseID {
			continue
		}
		if !s.inScope(p.CourseID, filter.Scope) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s *MemoryStore) PainPointsBetween(_ context.Context, courseID uint, from, until time.Time) ([]model.PainPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.PainPoint, 0)
	for _, p := range s.painPoints {
		if p.CourseID != courseID || p.CreatedAt.Before(from) {
			continue
		}
		if !until.IsZero() && !p.CreatedAt.Before(until) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[j].CreatedAt, out[i].CreatedAt, out[j].ID, out[i].ID)
	})
	return out, nil
}

func (s *MemoryStore) CountPainPoints(_ context.Context, courseID uint) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, p := range s.painPoints {
		if p.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

// Snapshots

func (s *MemoryStore) CreateSnapshot(_ context.Context, snapshot *model.ConfusionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[snapshot.CourseID]; !ok {
		return ErrNotFound
	}
	snapshot.ID = s.id("confusion_snapshots")
	s.stamp(&snapshot.CreatedAt)
	s.snapshots[snapshot.ID] = *snapshot
	return nil
}

func (s *MemoryStore) ListSnapshots(_ context.Context, courseID uint) ([]model.ConfusionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ConfusionSnapshot, 0)
	for _, snap := range s.snapshots {
		if snap.CourseID == courseID {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

// Study packets

func (s *MemoryStore) CreateStudyPacket(_ context.Context, packet *model.StudyPacket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[packet.CourseID]; !ok {
		return ErrNotFound
	}
	packet.ID = s.id("study_packets")
	s.stamp(&packet.CreatedAt)
	packet.UpdatedAt = packet.CreatedAt
	s.packets[packet.ID] = *packet
	return nil
}

func (s *MemoryStore) GetStudyPacket(_ context.Context, id uint) (*model.StudyPacket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.packets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ListStudyPackets(_ context.Context, filter StudyPacketFilter) ([]model.StudyPacket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.StudyPacket, 0)
	for _, p := range s.packets {
		if filter.CourseID != 0 && p.CourseID != filter.CourseID {
			continue
		}
		if !s.inScope(p.CourseID, filter.Scope) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s *MemoryStore) TransitionStudyPacket(_ context.Context, id uint, from []model.StudyPacketStatus, update StudyPacketUpdate) (*model.StudyPacket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.packets[id]
	if !ok {
		return nil, ErrNotFound
	}
	if len(from) > 0 {
		allowed := false
		for _, st := range from {
			if p.Status == st {
				allowed = true
				break
			}
		}
		if !allowed {
			return &p, ErrConflict
		}
	}

	p.Status = update.Status
	if update.Payload != nil {
		p.Payload = append(p.Payload[:0:0], update.Payload...)
	}
	if update.ApprovedAt != nil {
		at := *update.ApprovedAt
		p.ApprovedAt = &at
	}
	p.UpdatedAt = s.now().UTC()
	s.packets[id] = p
	return &p, nil
}

// Cron job logs

func (s *MemoryStore) CreateCronJobLog(_ context.Context, entry *model.CronJobLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = s.id("cron_job_logs")
	s.stamp(&entry.CreatedAt)
	entry.UpdatedAt = entry.CreatedAt
	s.cronLogs[entry.ID] = *entry
	return nil
}

func (s *MemoryStore) SaveCronJobLog(_ context.Context, entry *model.CronJobLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cronLogs[entry.ID]; !ok {
		return ErrNotFound
	}
	entry.UpdatedAt = s.now().UTC()
	s.cronLogs[entry.ID] = *entry
	return nil
}

func (s *MemoryStore) PruneCronJobLogs(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, entry := range s.cronLogs {
		if entry.StartedAt.Before(before) {
			delete(s.cronLogs, id)
			n++
		}
	}
	return n, nil
}

// CronJobLogs returns every stored job log, oldest first.
func (s *MemoryStore) CronJobLogs() []model.CronJobLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.CronJobLog, 0, len(s.cronLogs))
	for _, entry := range s.cronLogs {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
