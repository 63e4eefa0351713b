package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/scholchat/scholchat-api/internal/models"
)

var scheduledCourseColumns = []string{
	"id", "course_id", "professor_id", "class_id", "planned_at", "actual_start_at", "actual_end_at",
	"location", "description", "max_capacity", "status", "cancellation_reason", "version", "created_at", "updated_at",
}

func selectScheduledCourseColumns(alias string) string {
	if alias == "" {
		return strings.Join(scheduledCourseColumns, ", ")
	}
	cols := make([]string, len(scheduledCourseColumns))
	for i, col := range scheduledCourseColumns {
		cols[i] = alias + "." + col
	}
	return strings.Join(cols, ", ")
}

// ScheduledCourseRepository persists scheduled courses and their participant sets.
type ScheduledCourseRepository struct {
	db *sqlx.DB
}

// NewScheduledCourseRepository creates a new scheduled course repository.
func NewScheduledCourseRepository(db *sqlx.DB) *ScheduledCourseRepository {
	return &ScheduledCourseRepository{db: db}
}

// Create stores a new scheduled course together with its participants.
func (r *ScheduledCourseRepository) Create(ctx context.Context, course *models.ScheduledCourse) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	course.Version = 1

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create scheduled course: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO scheduled_courses (id, course_id, professor_id, class_id, planned_at, actual_start_at, actual_end_at, location, description, max_capacity, status, cancellation_reason, version, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	if _, err := tx.ExecContext(ctx, query,
		course.ID, course.CourseID, course.ProfessorID, course.ClassID, course.PlannedAt,
		course.ActualStartAt, course.ActualEndAt, course.Location, course.Description, course.MaxCapacity,
		string(course.Status), course.CancellationReason, course.Version, course.CreatedAt, course.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create scheduled course: %w", err)
	}

	if err := insertParticipants(ctx, tx, course.ID, course.ParticipantIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create scheduled course: %w", err)
	}
	return nil
}

// Update overwrites the mutable columns when the stored version still matches
// course.Version. A stale version yields sql.ErrNoRows.
func (r *ScheduledCourseRepository) Update(ctx context.Context, course *models.ScheduledCourse) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update scheduled course: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	const query = `UPDATE scheduled_courses SET class_id = $1, planned_at = $2, actual_start_at = $3, actual_end_at = $4, location = $5, description = $6, max_capacity = $7, status = $8, cancellation_reason = $9, version = version + 1, updated_at = $10 WHERE id = $11 AND version = $12`
	res, err := tx.ExecContext(ctx, query,
		course.ClassID, course.PlannedAt, course.ActualStartAt, course.ActualEndAt, course.Location,
		course.Description, course.MaxCapacity, string(course.Status), course.CancellationReason,
		now, course.ID, course.Version,
	)
	if err != nil {
		return fmt.Errorf("update scheduled course: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update scheduled course rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM scheduled_course_participants WHERE scheduled_course_id = $1`, course.ID); err != nil {
		return fmt.Errorf("clear scheduled course participants: %w", err)
	}
	if err := insertParticipants(ctx, tx, course.ID, course.ParticipantIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update scheduled course: %w", err)
	}
	course.Version++
	course.UpdatedAt = now
	return nil
}

// GetByID loads a scheduled course with its participants.
func (r *ScheduledCourseRepository) GetByID(ctx context.Context, id string) (*models.ScheduledCourse, error) {
	query := fmt.Sprintf("SELECT %s FROM scheduled_courses WHERE id = $1", selectScheduledCourseColumns(""))
	var course models.ScheduledCourse
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}

	const participantsQuery = `SELECT user_id FROM scheduled_course_participants WHERE scheduled_course_id = $1 ORDER BY position ASC`
	var participants []string
	if err := r.db.SelectContext(ctx, &participants, participantsQuery, id); err != nil {
		return nil, fmt.Errorf("load scheduled course participants: %w", err)
	}
	course.ParticipantIDs = nonNil(participants)
	return &course, nil
}

// ListByCourse returns scheduled occurrences of a course in insertion order.
func (r *ScheduledCourseRepository) ListByCourse(ctx context.Context, courseID string) ([]models.ScheduledCourse, error) {
	return r.listWhere(ctx, "list scheduled courses by course", "course_id = $1", courseID)
}

// ListByClass returns scheduled courses attached to a class in insertion order.
func (r *ScheduledCourseRepository) ListByClass(ctx context.Context, classID string) ([]models.ScheduledCourse, error) {
	return r.listWhere(ctx, "list scheduled courses by class", "class_id = $1", classID)
}

// ListByProfessor returns scheduled courses owned by a professor in insertion order.
func (r *ScheduledCourseRepository) ListByProfessor(ctx context.Context, professorID string) ([]models.ScheduledCourse, error) {
	return r.listWhere(ctx, "list scheduled courses by professor", "professor_id = $1", professorID)
}

// ListByParticipant returns scheduled courses a user takes part in.
func (r *ScheduledCourseRepository) ListByParticipant(ctx context.Context, participantID string) ([]models.ScheduledCourse, error) {
	query := fmt.Sprintf(`SELECT %s FROM scheduled_courses sc JOIN scheduled_course_participants p ON p.scheduled_course_id = sc.id WHERE p.user_id = $1 ORDER BY sc.created_at ASC, sc.id ASC`, selectScheduledCourseColumns("sc"))
	var courses []models.ScheduledCourse
	if err := r.db.SelectContext(ctx, &courses, query, participantID); err != nil {
		return nil, fmt.Errorf("list scheduled courses by participant: %w", err)
	}
	if err := r.attachParticipants(ctx, courses); err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *ScheduledCourseRepository) listWhere(ctx context.Context, label, condition string, arg interface{}) ([]models.ScheduledCourse, error) {
	query := fmt.Sprintf("SELECT %s FROM scheduled_courses WHERE %s ORDER BY created_at ASC, id ASC", selectScheduledCourseColumns(""), condition)
	var courses []models.ScheduledCourse
	if err := r.db.SelectContext(ctx, &courses, query, arg); err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	if err := r.attachParticipants(ctx, courses); err != nil {
		return nil, err
	}
	return courses, nil
}

type participantRow struct {
	ScheduledCourseID string `db:"scheduled_course_id"`
	UserID            string `db:"user_id"`
}

func (r *ScheduledCourseRepository) attachParticipants(ctx context.Context, courses []models.ScheduledCourse) error {
	if len(courses) == 0 {
		return nil
	}
	ids := make([]string, len(courses))
	for i := range courses {
		ids[i] = courses[i].ID
	}

	const query = `SELECT scheduled_course_id, user_id FROM scheduled_course_participants WHERE scheduled_course_id = ANY($1) ORDER BY scheduled_course_id ASC, position ASC`
	var rows []participantRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("load scheduled course participants: %w", err)
	}

	byCourse := make(map[string][]string, len(courses))
	for _, row := range rows {
		byCourse[row.ScheduledCourseID] = append(byCourse[row.ScheduledCourseID], row.UserID)
	}
	for i := range courses {
		courses[i].ParticipantIDs = nonNil(byCourse[courses[i].ID])
	}
	return nil
}

func insertParticipants(ctx context.Context, tx *sqlx.Tx, courseID string, participantIDs []string) error {
	const query = `INSERT INTO scheduled_course_participants (scheduled_course_id, user_id, position) VALUES ($1, $2, $3)`
	for i, userID := range participantIDs {
		if _, err := tx.ExecContext(ctx, query, courseID, userID, i); err != nil {
			return fmt.Errorf("insert scheduled course participant: %w", err)
		}
	}
	return nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
