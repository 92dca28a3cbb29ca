package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MEmshousen/CodeRED2025-404NotFound/config"
	"github.com/MEmshousen/CodeRED2025-404NotFound/model"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type GORMStore struct {
	db  *gorm.DB
	log *zap.Logger
}

var _ Storage = (*GORMStore)(nil)

// StartGORM initializes a GORM connection to PostgreSQL
func StartGORM(cfg *config.Config, log *zap.Logger) (*GORMStore, error) {
	gormLogger := logger.Default.LogMode(logger.Warn)
	if cfg.IsProduction() {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:      gormLogger,
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to connect to PostgreSQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("connected to PostgreSQL", zap.String("host", cfg.DBHost), zap.String("database", cfg.DBName))

	return NewGORMStore(db, log), nil
}

// NewGORMStore wraps an open connection.
func NewGORMStore(db *gorm.DB, log *zap.Logger) *GORMStore {
	return &GORMStore{db: db, log: log}
}

// Init runs the AutoMigrate to create/update tables
func (s *GORMStore) Init() error {
	s.log.Info("running AutoMigrate")

	err := s.db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.Enrollment{},
		&model.Material{},
		&model.PainPoint{},
		&model.ConfusionSnapshot{},
		&model.StudyPacket{},
		&model.CronJobLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB exposes the connection for components that need raw SQL.
func (s *GORMStore) DB() *gorm.DB {
	return s.db
}

// HealthCheck verifies the database connection is alive
func (s *GORMStore) HealthCheck() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// scoped restricts a query on a table with a course_id column.
func (s *GORMStore) scoped(ctx context.Context, q *gorm.DB, column string, scope Scope) *gorm.DB {
	if scope.ProfessorID != 0 {
		owned := s.db.WithContext(ctx).Model(&model.Course{}).Select("id").Where("professor_id = ?", scope.ProfessorID)
		q = q.Where(column+" IN (?)", owned)
	}
	if scope.StudentID != 0 {
		enrolled := s.db.WithContext(ctx).Model(&model.Enrollment{}).Select("course_id").Where("student_id = ?", scope.StudentID)
		q = q.Where(column+" IN (?)", enrolled)
	}
	return q
}

// ============================================================================
// Users
// ============================================================================

func (s *GORMStore) EnsureUser(ctx context.Context, user *model.User) (*model.User, error) {
	db := s.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}
	var stored model.User
	if err := db.First(&stored, user.ID).Error; err != nil {
		return nil, translate(err)
	}
	return &stored, nil
}

func (s *GORMStore) GetUser(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// ============================================================================
// Courses
// ============================================================================

func (s *GORMStore) CreateCourse(ctx context.Context, course *model.Course) error {
	return s.db.WithContext(ctx).Create(course).Error
}

func (s *GORMStore) GetCourse(ctx context.Context, id uint) (*model.Course, error) {
	var course model.Course
	if err := s.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return nil, translate(err)
	}
	return &course, nil
}

func (s *GORMStore) UpdateCourse(ctx context.Context, course *model.Course) error {
	result := s.db.WithContext(ctx).Model(&model.Course{}).Where("id = ?", course.ID).Updates(map[string]interface{}{
		"code": course.Code,
		"name": course.Name,
		"crn":  course.CRN,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GORMStore) DeleteCourse(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&model.Course{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GORMStore) ListCourses(ctx context.Context, scope Scope) ([]model.Course, error) {
	var courses []model.Course
	q := s.scoped(ctx, s.db.WithContext(ctx).Model(&model.Course{}), "id", scope)
	if err := q.Order("id ASC").Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (s *GORMStore) Enroll(ctx context.Context, studentID, courseID uint) (bool, error) {
	enrollment := model.Enrollment{StudentID: studentID, CourseID: courseID}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&enrollment)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *GORMStore) IsEnrolled(ctx context.Context, studentID, courseID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Enrollment{}).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Count(&count).Error
	return count > 0, err
}

func (s *GORMStore) CountEnrollments(ctx context.Context, courseID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Enrollment{}).Where("course_id = ?", courseID).Count(&count).Error
	return count, err
}

func (s *GORMStore) CreateMaterial(ctx context.Context, material *model.Material) error {
	return s.db.WithContext(ctx).Create(material).Error
}

func (s *GORMStore) GetMaterial(ctx context.Context, courseID, id uint) (*model.Material, error) {
	var material model.Material
	err := s.db.WithContext(ctx).Where("course_id = ?", courseID).First(&material, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &material, nil
}

func (s *GORMStore) ListMaterials(ctx context.Context, courseID uint) ([]model.Material, error) {
	var materials []model.Material
	err := s.db.WithContext(ctx).Where("course_id = ?", courseID).Order("created_at DESC, id DESC").Find(&materials).Error
	return materials, err
}

// ============================================================================
// Pain points
// ============================================================================

func (s *GORMStore) CreatePainPoint(ctx context.Context, pp *model.PainPoint) error {
	return s.db.WithContext(ctx).Create(pp).Error
}

func (s *GORMStore) GetPainPoint(ctx context.Context, id uint) (*model.PainPoint, error) {
	var pp model.PainPoint
	if err := s.db.WithContext(ctx).First(&pp, id).Error; err != nil {
		return nil, translate(err)
	}
	return &pp, nil
}

func (s *GORMStore) DeletePainPoint(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&model.PainPoint{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GORMStore) ListPainPoints(ctx context.Context, filter PainPointFilter) ([]model.PainPoint, error) {
	q := s.db.WithContext(ctx).Model(&model.PainPoint{})
	if filter.CourseID != 0 {
		q = q.Where("course_id = ?", filter.CourseID)
	}
	q = s.scoped(ctx, q, "course_id", filter.Scope)

	var points []model.PainPoint
	if err := q.Order("created_at DESC, id DESC").Find(&points).Error; err != nil {
		return nil, err
	}
	return points, nil
}

func (s *GORMStore) PainPointsBetween(ctx context.Context, courseID uint, from, until time.Time) ([]model.PainPoint, error) {
	q := s.db.WithContext(ctx).Where("course_id = ? AND created_at >= ?", courseID, from)
	if !until.IsZero() {
		q = q.Where("created_at < ?", until)
	}

	var points []model.PainPoint
	if err := q.Order("created_at ASC, id ASC").Find(&points).Error; err != nil {
		return nil, err
	}
	return points, nil
}

func (s *GORMStore) CountPainPoints(ctx context.Context, courseID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.PainPoint{}).Where("course_id = ?", courseID).Count(&count).Error
	return count, err
}

// ============================================================================
// Snapshots
// ============================================================================

func (s *GORMStore) CreateSnapshot(ctx context.Context, snapshot *model.ConfusionSnapshot) error {
	return s.db.WithContext(ctx).Create(snapshot).Error
}

func (s *GORMStore) ListSnapshots(ctx context.Context, courseID uint) ([]model.ConfusionSnapshot, error) {
	var snapshots []model.ConfusionSnapshot
	err := s.db.WithContext(ctx).Where("course_id = ?", courseID).Order("created_at DESC, id DESC").Find(&snapshots).Error
	return snapshots, err
}

// ============================================================================
// Study packets
// ============================================================================

func (s *GORMStore) CreateStudyPacket(ctx context.Context, packet *model.StudyPacket) error {
	return s.db.WithContext(ctx).Create(packet).Error
}

func (s *GORMStore) GetStudyPacket(ctx context.Context, id uint) (*model.StudyPacket, error) {
	var packet model.StudyPacket
	if err := s.db.WithContext(ctx).First(&packet, id).Error; err != nil {
		return nil, translate(err)
	}
	return &packet, nil
}

func (s *GORMStore) ListStudyPackets(ctx context.Context, filter StudyPacketFilter) ([]model.StudyPacket, error) {
	q := s.db.WithContext(ctx).Model(&model.StudyPacket{})
	if filter.CourseID != 0 {
		q = q.Where("course_id = ?", filter.CourseID)
	}
	q = s.scoped(ctx, q, "course_id", filter.Scope)

	var packets []model.StudyPacket
	if err := q.Order("created_at DESC, id DESC").Find(&packets).Error; err != nil {
		return nil, err
	}
	return packets, nil
}

func (s *GORMStore) TransitionStudyPacket(ctx context.Context, id uint, from []model.StudyPacketStatus, update StudyPacketUpdate) (*model.StudyPacket, error) {
	updates := map[string]interface{}{"status": update.Status}
	if update.Payload != nil {
		updates["payload"] = update.Payload
	}
	if update.ApprovedAt != nil {
		updates["approved_at"] = *update.ApprovedAt
	}

	q := s.db.WithContext(ctx).Model(&model.StudyPacket{}).Where("id = ?", id)
	if len(from) > 0 {
		q = q.Where("status IN ?", from)
	}
	result := q.Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update study packet: %w", result.Error)
	}

	packet, err := s.GetStudyPacket(ctx, id)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected == 0 {
		return packet, ErrConflict
	}
	return packet, nil
}

// ============================================================================
// Cron job logs
// ============================================================================

func (s *GORMStore) CreateCronJobLog(ctx context.Context, entry *model.CronJobLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *GORMStore) SaveCronJobLog(ctx context.Context, entry *model.CronJobLog) error {
	return s.db.WithContext(ctx).Save(entry).Error
}

func (s *GORMStore) PruneCronJobLogs(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("started_at < ?", before).Delete(&model.CronJobLog{})
	return result.RowsAffected, result.Error
}
