package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scholchat/scholchat-api/internal/dto"
	"github.com/scholchat/scholchat-api/internal/models"
	appErrors "github.com/scholchat/scholchat-api/pkg/errors"
	"github.com/scholchat/scholchat-api/pkg/validation"
)

const scheduledCourseAuditAgent = "scheduled-course-service"

// marshalAudit encodes audit snapshots.
var marshalAudit = json.Marshal

// Transition outcomes reported to metrics.
const (
	TransitionResultSuccess  = "success"
	TransitionResultRejected = "rejected"
	TransitionResultNotFound = "not_found"
	TransitionResultConflict = "conflict"
	TransitionResultError    = "error"
)

type scheduledCourseStore interface {
	Create(ctx context.Context, course *models.ScheduledCourse) error
	Update(ctx context.Context, course *models.ScheduledCourse) error
	GetByID(ctx context.Context, id string) (*models.ScheduledCourse, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.ScheduledCourse, error)
	ListByClass(ctx context.Context, classID string) ([]models.ScheduledCourse, error)
	ListByProfessor(ctx context.Context, professorID string) ([]models.ScheduledCourse, error)
	ListByParticipant(ctx context.Context, participantID string) ([]models.ScheduledCourse, error)
}

type courseCatalog interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type classDirectory interface {
	FindDetails(ctx context.Context, id string) (*models.ClassDetails, error)
}

type accessRegistry interface {
	ListByClass(ctx context.Context, classID string) ([]models.ClassAccess, error)
	ListApproved(ctx context.Context, classID string) ([]models.ClassAccess, error)
}

type listingDirectory interface {
	CourseTitle(ctx context.Context, courseID string) (string, error)
	ClassDetails(ctx context.Context, classID string) (*models.ClassDetails, error)
}

// AuditRecorder receives an audit entry for every successful mutation.
type AuditRecorder interface {
	Record(ctx context.Context, entry *models.AuditLog)
}

type transitionRecorder interface {
	RecordTransition(operation, result string)
}

type actorContextKey struct{}

// ContextWithActor records the id of the user performing lifecycle operations.
func ContextWithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, userID)
}

// ActorFromContext returns the user id stored by ContextWithActor, or an empty string.
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(actorContextKey{}).(string)
	return id
}

func actorFromContext(ctx context.Context) *string {
	if id := ActorFromContext(ctx); id != "" {
		return &id
	}
	return nil
}

// ScheduledCourseService owns the scheduled course lifecycle.
type ScheduledCourseService struct {
	store     scheduledCourseStore
	catalog   courseCatalog
	classes   classDirectory
	access    accessRegistry
	lookups   listingDirectory
	audit     AuditRecorder
	metrics   transitionRecorder
	validator *validation.Validator
	logger    *zap.Logger
	now       func() time.Time
}

// NewScheduledCourseService wires the lifecycle manager. audit, metrics and lookups are optional.
func NewScheduledCourseService(
	store scheduledCourseStore,
	catalog courseCatalog,
	classes classDirectory,
	access accessRegistry,
	lookups listingDirectory,
	audit AuditRecorder,
	metrics transitionRecorder,
	validate *validation.Validator,
	logger *zap.Logger,
) *ScheduledCourseService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduledCourseService{
		store:     store,
		catalog:   catalog,
		classes:   classes,
		access:    access,
		lookups:   lookups,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Schedule plans a new course occurrence in PLANNED state.
func (s *ScheduledCourseService) Schedule(ctx context.Context, req dto.ScheduleCourseRequest) (*models.ScheduledCourse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if err := ensureFuture(*req.PlannedAt, s.now()); err != nil {
		return nil, err
	}

	course := models.ScheduledCourse{
		CourseID:       strings.TrimSpace(req.CourseID),
		ProfessorID:    strings.TrimSpace(req.ProfessorID),
		ClassID:        normaliseClassID(req.ClassID),
		PlannedAt:      req.PlannedAt.UTC(),
		Location:       strings.TrimSpace(req.Location),
		Description:    normaliseText(req.Description),
		MaxCapacity:    req.MaxCapacity,
		Status:         models.ScheduledCourseStatusPlanned,
		ParticipantIDs: dedupeIDs(req.ParticipantIDs),
	}
	course = ApplyStatusGating(course)
	if err := validateRecord(course); err != nil {
		return nil, err
	}

	if err := s.ensureCourseExists(ctx, course.CourseID); err != nil {
		return nil, err
	}
	if course.HasClass() {
		if err := s.ensureClassExists(ctx, *course.ClassID); err != nil {
			return nil, err
		}
	}
	if err := s.ensureParticipantsInRoster(ctx, course); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, &course); err != nil {
		return nil, appErrors.Collaborator(err, "create scheduled course")
	}

	s.logger.Info("scheduled course planned",
		zap.String("scheduled_course_id", course.ID),
		zap.String("course_id", course.CourseID),
		zap.String("professor_id", course.ProfessorID),
		zap.Time("planned_at", course.PlannedAt),
	)
	s.emitAudit(ctx, models.AuditActionScheduledCourseCreate, nil, &course)
	return &course, nil
}

// Reschedule merges a partial update into the stored record and re-validates the result.
func (s *ScheduledCourseService) Reschedule(ctx context.Context, id string, patch dto.RescheduleCourseRequest) (*models.ScheduledCourse, error) {
	if err := s.validator.Struct(patch); err != nil {
		return nil, err
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := current.Clone()
	plannedChanged := false

	if patch.ClassID != nil {
		classID := normaliseClassID(patch.ClassID)
		if !sameClass(merged.ClassID, classID) {
			if classID != nil {
				if err := s.ensureClassExists(ctx, *classID); err != nil {
					return nil, err
				}
			} else if patch.ParticipantIDs == nil {
				merged.ParticipantIDs = []string{}
			}
			merged.ClassID = classID
		}
	}
	if patch.PlannedAt != nil {
		planned := patch.PlannedAt.UTC()
		plannedChanged = !planned.Equal(merged.PlannedAt)
		merged.PlannedAt = planned
	}
	if patch.ActualStartAt != nil {
		started := patch.ActualStartAt.UTC()
		merged.ActualStartAt = &started
	}
	if patch.ActualEndAt != nil {
		ended := patch.ActualEndAt.UTC()
		merged.ActualEndAt = &ended
	}
	if patch.Location != nil {
		merged.Location = strings.TrimSpace(*patch.Location)
	}
	if patch.Description != nil {
		merged.Description = normaliseText(patch.Description)
	}
	if patch.MaxCapacity != nil {
		capacity := *patch.MaxCapacity
		merged.MaxCapacity = &capacity
	}
	if patch.ParticipantIDs != nil {
		merged.ParticipantIDs = dedupeIDs(*patch.ParticipantIDs)
	}
	if patch.Status != nil {
		status, err := models.ParseScheduledCourseStatus(*patch.Status)
		if err != nil {
			return nil, appErrors.Validation("status", err.Error())
		}
		merged.Status = status
	}
	if merged.Status != models.ScheduledCourseStatusCancelled {
		merged.CancellationReason = nil
	}

	merged = ApplyStatusGating(merged)
	if plannedChanged && merged.Status == models.ScheduledCourseStatusPlanned {
		if err := ensureFuture(merged.PlannedAt, s.now()); err != nil {
			return nil, err
		}
	}
	if err := validateRecord(merged); err != nil {
		return nil, err
	}
	if err := s.ensureParticipantsInRoster(ctx, merged); err != nil {
		return nil, err
	}

	if err := s.persist(ctx, &merged); err != nil {
		return nil, err
	}

	s.logger.Info("scheduled course rescheduled",
		zap.String("scheduled_course_id", merged.ID),
		zap.String("status", string(merged.Status)),
		zap.Int("version", merged.Version),
	)
	s.emitAudit(ctx, models.AuditActionScheduledCourseReschedule, current, &merged)
	return &merged, nil
}

type transition struct {
	operation string
	action    string
	allowed   func(models.ScheduledCourseStatus) bool
	apply     func(course *models.ScheduledCourse, now time.Time)
}

// Start moves a PLANNED course to IN_PROGRESS and stamps the actual start.
// An early start brings plannedAt forward so the start never precedes the plan.
func (s *ScheduledCourseService) Start(ctx context.Context, id string) (*models.ScheduledCourse, error) {
	return s.runTransition(ctx, id, transition{
		operation: "start",
		action:    models.AuditActionScheduledCourseStart,
		allowed: func(status models.ScheduledCourseStatus) bool {
			switch status {
			case models.ScheduledCourseStatusPlanned:
				return true
			case models.ScheduledCourseStatusInProgress, models.ScheduledCourseStatusCompleted, models.ScheduledCourseStatusCancelled:
				return false
			}
			return false
		},
		apply: func(course *models.ScheduledCourse, now time.Time) {
			course.Status = models.ScheduledCourseStatusInProgress
			course.ActualStartAt = &now
			course.ActualEndAt = nil
			if now.Before(course.PlannedAt) {
				course.PlannedAt = now
			}
		},
	})
}

// Complete moves an IN_PROGRESS course to COMPLETED and stamps the actual end.
func (s *ScheduledCourseService) Complete(ctx context.Context, id string) (*models.ScheduledCourse, error) {
	return s.runTransition(ctx, id, transition{
		operation: "complete",
		action:    models.AuditActionScheduledCourseComplete,
		allowed: func(status models.ScheduledCourseStatus) bool {
			switch status {
			case models.ScheduledCourseStatusInProgress:
				return true
			case models.ScheduledCourseStatusPlanned, models.ScheduledCourseStatusCompleted, models.ScheduledCourseStatusCancelled:
				return false
			}
			return false
		},
		apply: func(course *models.ScheduledCourse, now time.Time) {
			course.Status = models.ScheduledCourseStatusCompleted
			if course.ActualStartAt != nil && now.Before(*course.ActualStartAt) {
				now = *course.ActualStartAt
			}
			course.ActualEndAt = &now
		},
	})
}

// Cancel stops a PLANNED or IN_PROGRESS course. The reason is appended to the
// description and kept in CancellationReason.
func (s *ScheduledCourseService) Cancel(ctx context.Context, id, reason string) (*models.ScheduledCourse, error) {
	reason = strings.TrimSpace(reason)
	return s.runTransition(ctx, id, transition{
		operation: "cancel",
		action:    models.AuditActionScheduledCourseCancel,
		allowed: func(status models.ScheduledCourseStatus) bool {
			switch status {
			case models.ScheduledCourseStatusPlanned, models.ScheduledCourseStatusInProgress:
				return true
			case models.ScheduledCourseStatusCompleted, models.ScheduledCourseStatusCancelled:
				return false
			}
			return false
		},
		apply: func(course *models.ScheduledCourse, _ time.Time) {
			course.Status = models.ScheduledCourseStatusCancelled
			course.ActualStartAt = nil
			course.ActualEndAt = nil
			if reason != "" {
				course.Description = appendCancellation(course.Description, reason)
				course.CancellationReason = &reason
			}
		},
	})
}

func (s *ScheduledCourseService) runTransition(ctx context.Context, id string, t transition) (*models.ScheduledCourse, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		s.recordTransition(t.operation, err)
		return nil, err
	}
	if !t.allowed(current.Status) {
		err := appErrors.Transition(t.operation, string(current.Status))
		s.recordTransition(t.operation, err)
		s.logger.Warn("scheduled course transition rejected",
			zap.String("scheduled_course_id", current.ID),
			zap.String("operation", t.operation),
			zap.String("status", string(current.Status)),
		)
		return nil, err
	}

	next := current.Clone()
	t.apply(&next, s.now())
	next = ApplyStatusGating(next)
	if err := validateRecord(next); err != nil {
		s.recordTransition(t.operation, err)
		return nil, err
	}

	if err := s.persist(ctx, &next); err != nil {
		s.recordTransition(t.operation, err)
		return nil, err
	}
	s.recordTransition(t.operation, nil)

	fields := []zap.Field{
		zap.String("scheduled_course_id", next.ID),
		zap.String("operation", t.operation),
		zap.String("from", string(current.Status)),
		zap.String("to", string(next.Status)),
	}
	if !next.PlannedAt.Equal(current.PlannedAt) {
		fields = append(fields,
			zap.Time("planned_at_was", current.PlannedAt),
			zap.Time("planned_at", next.PlannedAt),
		)
	}
	s.logger.Info("scheduled course transitioned", fields...)
	s.emitAudit(ctx, t.action, current, &next)
	return &next, nil
}

// Get loads a single scheduled course.
func (s *ScheduledCourseService) Get(ctx context.Context, id string) (*models.ScheduledCourse, error) {
	return s.load(ctx, id)
}

// FindByCourse lists the occurrences of a course in store order.
func (s *ScheduledCourseService) FindByCourse(ctx context.Context, courseID string) ([]models.ScheduledCourse, error) {
	courses, err := s.store.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Collaborator(err, "list scheduled courses by course")
	}
	return courses, nil
}

// FindByClass lists the scheduled courses attached to a class in store order.
func (s *ScheduledCourseService) FindByClass(ctx context.Context, classID string) ([]models.ScheduledCourse, error) {
	courses, err := s.store.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Collaborator(err, "list scheduled courses by class")
	}
	return courses, nil
}

// FindByProfessor lists a professor's scheduled courses in store order.
func (s *ScheduledCourseService) FindByProfessor(ctx context.Context, professorID string) ([]models.ScheduledCourse, error) {
	courses, err := s.store.ListByProfessor(ctx, professorID)
	if err != nil {
		return nil, appErrors.Collaborator(err, "list scheduled courses by professor")
	}
	return courses, nil
}

// FindByParticipant lists the scheduled courses a user takes part in.
func (s *ScheduledCourseService) FindByParticipant(ctx context.Context, participantID string) ([]models.ScheduledCourse, error) {
	courses, err := s.store.ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, appErrors.Collaborator(err, "list scheduled courses by participant")
	}
	return courses, nil
}

// Find dispatches to the first populated key of the query.
func (s *ScheduledCourseService) Find(ctx context.Context, query models.ScheduledCourseQuery) ([]models.ScheduledCourse, error) {
	switch {
	case strings.TrimSpace(query.CourseID) != "":
		return s.FindByCourse(ctx, strings.TrimSpace(query.CourseID))
	case strings.TrimSpace(query.ClassID) != "":
		return s.FindByClass(ctx, strings.TrimSpace(query.ClassID))
	case strings.TrimSpace(query.ProfessorID) != "":
		return s.FindByProfessor(ctx, strings.TrimSpace(query.ProfessorID))
	case strings.TrimSpace(query.ParticipantID) != "":
		return s.FindByParticipant(ctx, strings.TrimSpace(query.ParticipantID))
	}
	return nil, appErrors.Validation("professorId", "one of courseId, classId, professorId or participantId is required")
}

// List finds, enriches and filters scheduled courses for listing views.
func (s *ScheduledCourseService) List(ctx context.Context, query models.ScheduledCourseQuery, filter models.ScheduledCourseFilter) ([]models.ScheduledCourseListItem, error) {
	courses, err := s.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	items, err := s.enrich(ctx, courses)
	if err != nil {
		return nil, err
	}
	return Filter(items, filter), nil
}

func (s *ScheduledCourseService) enrich(ctx context.Context, courses []models.ScheduledCourse) ([]models.ScheduledCourseListItem, error) {
	items := make([]models.ScheduledCourseListItem, 0, len(courses))
	titles := make(map[string]string)
	classes := make(map[string]*models.ClassDetails)

	for _, course := range courses {
		item := models.ScheduledCourseListItem{ScheduledCourse: course}
		if s.lookups == nil {
			items = append(items, item)
			continue
		}

		title, ok := titles[course.CourseID]
		if !ok {
			found, err := s.lookups.CourseTitle(ctx, course.CourseID)
			if err != nil && !errors.Is(err, appErrors.ErrNotFound) {
				return nil, appErrors.Collaborator(err, "look up course title")
			}
			title = found
			titles[course.CourseID] = title
		}
		item.CourseTitle = title

		if course.HasClass() {
			details, ok := classes[*course.ClassID]
			if !ok {
				found, err := s.lookups.ClassDetails(ctx, *course.ClassID)
				if err != nil && !errors.Is(err, appErrors.ErrNotFound) {
					return nil, appErrors.Collaborator(err, "look up class details")
				}
				details = found
				classes[*course.ClassID] = details
			}
			if details != nil {
				item.ClassName = details.Name
				if details.EstablishmentName != nil {
					item.EstablishmentName = *details.EstablishmentName
				}
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *ScheduledCourseService) load(ctx context.Context, id string) (*models.ScheduledCourse, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, appErrors.Validation("id", "id is required")
	}
	course, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "scheduled course not found")
		}
		return nil, appErrors.Collaborator(err, "load scheduled course")
	}
	return course, nil
}

func (s *ScheduledCourseService) persist(ctx context.Context, course *models.ScheduledCourse) error {
	if err := s.store.Update(ctx, course); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "scheduled course was modified concurrently, reload and retry")
		}
		return appErrors.Collaborator(err, "update scheduled course")
	}
	return nil
}

func (s *ScheduledCourseService) ensureCourseExists(ctx context.Context, courseID string) error {
	if s.catalog == nil {
		return nil
	}
	if _, err := s.catalog.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Validation("courseId", "course does not exist")
		}
		return appErrors.Collaborator(err, "look up course")
	}
	return nil
}

func (s *ScheduledCourseService) ensureClassExists(ctx context.Context, classID string) error {
	if s.classes == nil {
		return nil
	}
	if _, err := s.classes.FindDetails(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Validation("classId", "class does not exist")
		}
		return appErrors.Collaborator(err, "look up class")
	}
	return nil
}

func (s *ScheduledCourseService) recordTransition(operation string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordTransition(operation, transitionResult(err))
}

func transitionResult(err error) string {
	switch {
	case err == nil:
		return TransitionResultSuccess
	case errors.Is(err, appErrors.ErrInvalidTransition), errors.Is(err, appErrors.ErrValidation):
		return TransitionResultRejected
	case errors.Is(err, appErrors.ErrNotFound):
		return TransitionResultNotFound
	case errors.Is(err, appErrors.ErrConflict):
		return TransitionResultConflict
	default:
		return TransitionResultError
	}
}

func (s *ScheduledCourseService) emitAudit(ctx context.Context, action string, before, after *models.ScheduledCourse) {
	if s.audit == nil || after == nil {
		return
	}
	var oldValues []byte
	if before != nil {
		oldValues = s.auditSnapshot(action, "old_values", before)
	}
	newValues := s.auditSnapshot(action, "new_values", after)
	resourceID := after.ID
	s.audit.Record(ctx, &models.AuditLog{
		UserID:     actorFromContext(ctx),
		Action:     action,
		Resource:   models.AuditResourceScheduledCourse,
		ResourceID: &resourceID,
		OldValues:  oldValues,
		NewValues:  newValues,
		UserAgent:  scheduledCourseAuditAgent,
	})
}

func (s *ScheduledCourseService) auditSnapshot(action, column string, course *models.ScheduledCourse) []byte {
	raw, err := marshalAudit(course)
	if err != nil {
		s.logger.Warn("audit snapshot not encoded",
			zap.String("action", action),
			zap.String("column", column),
			zap.String("scheduled_course_id", course.ID),
			zap.Error(err),
		)
		return nil
	}
	return raw
}

func sameClass(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func normaliseText(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
