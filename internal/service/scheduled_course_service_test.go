package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/scholchat/scholchat-api/internal/dto"
	"github.com/scholchat/scholchat-api/internal/models"
	appErrors "github.com/scholchat/scholchat-api/pkg/errors"
)

var fixedNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

type scheduledCourseStoreStub struct {
	items     map[string]models.ScheduledCourse
	order     []string
	createErr error
	updateErr error
	getErr    error
	listErr   error
	updates   int
	seq       int
}

func newScheduledCourseStoreStub(courses ...models.ScheduledCourse) *scheduledCourseStoreStub {
	stub := &scheduledCourseStoreStub{items: map[string]models.ScheduledCourse{}}
	for _, course := range courses {
		if course.Version == 0 {
			course.Version = 1
		}
		stub.items[course.ID] = course.Clone()
		stub.order = append(stub.order, course.ID)
	}
	return stub
}

func (s *scheduledCourseStoreStub) Create(_ context.Context, course *models.ScheduledCourse) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.seq++
	course.ID = fmt.Sprintf("sc-%d", s.seq)
	course.Version = 1
	s.items[course.ID] = course.Clone()
	s.order = append(s.order, course.ID)
	return nil
}

func (s *scheduledCourseStoreStub) Update(_ context.Context, course *models.ScheduledCourse) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	stored, ok := s.items[course.ID]
	if !ok || stored.Version != course.Version {
		return sql.ErrNoRows
	}
	course.Version++
	s.items[course.ID] = course.Clone()
	s.updates++
	return nil
}

func (s *scheduledCourseStoreStub) GetByID(_ context.Context, id string) (*models.ScheduledCourse, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	course, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := course.Clone()
	return &clone, nil
}

func (s *scheduledCourseStoreStub) list(match func(models.ScheduledCourse) bool) ([]models.ScheduledCourse, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := []models.ScheduledCourse{}
	for _, id := range s.order {
		if course := s.items[id]; match(course) {
			out = append(out, course.Clone())
		}
	}
	return out, nil
}

func (s *scheduledCourseStoreStub) ListByCourse(_ context.Context, courseID string) ([]models.ScheduledCourse, error) {
	return s.list(func(c models.ScheduledCourse) bool { return c.CourseID == courseID })
}

func (s *scheduledCourseStoreStub) ListByClass(_ context.Context, classID string) ([]models.ScheduledCourse, error) {
	return s.list(func(c models.ScheduledCourse) bool { return c.ClassID != nil && *c.ClassID == classID })
}

func (s *scheduledCourseStoreStub) ListByProfessor(_ context.Context, professorID string) ([]models.ScheduledCourse, error) {
	return s.list(func(c models.ScheduledCourse) bool { return c.ProfessorID == professorID })
}

func (s *scheduledCourseStoreStub) ListByParticipant(_ context.Context, participantID string) ([]models.ScheduledCourse, error) {
	return s.list(func(c models.ScheduledCourse) bool {
		for _, id := range c.ParticipantIDs {
			if id == participantID {
				return true
			}
		}
		return false
	})
}

type courseCatalogStub struct {
	courses map[string]models.Course
	err     error
}

func (s *courseCatalogStub) FindByID(_ context.Context, id string) (*models.Course, error) {
	if s.err != nil {
		return nil, s.err
	}
	course, ok := s.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &course, nil
}

type classDirectoryStub struct {
	classes map[string]models.ClassDetails
	err     error
	calls   int
}

func (s *classDirectoryStub) FindDetails(_ context.Context, id string) (*models.ClassDetails, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	details, ok := s.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &details, nil
}

type accessRegistryStub struct {
	entries map[string][]models.ClassAccess
	err     error
	calls   int
}

func (s *accessRegistryStub) ListByClass(_ context.Context, classID string) ([]models.ClassAccess, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.entries[classID], nil
}

func (s *accessRegistryStub) ListApproved(_ context.Context, classID string) ([]models.ClassAccess, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := []models.ClassAccess{}
	for _, entry := range s.entries[classID] {
		if entry.State == models.AccessStateApproved {
			out = append(out, entry)
		}
	}
	return out, nil
}

type auditRecorderStub struct {
	entries []*models.AuditLog
}

func (s *auditRecorderStub) Record(_ context.Context, entry *models.AuditLog) {
	s.entries = append(s.entries, entry)
}

type transitionRecorderStub struct {
	counts map[string]int
}

func (s *transitionRecorderStub) RecordTransition(operation, result string) {
	if s.counts == nil {
		s.counts = map[string]int{}
	}
	s.counts[operation+":"+result]++
}

type scheduledCourseFixture struct {
	svc     *ScheduledCourseService
	store   *scheduledCourseStoreStub
	classes *classDirectoryStub
	access  *accessRegistryStub
	audit   *auditRecorderStub
	metrics *transitionRecorderStub
}

func newScheduledCourseFixture(courses ...models.ScheduledCourse) *scheduledCourseFixture {
	store := newScheduledCourseStoreStub(courses...)
	catalog := &courseCatalogStub{courses: map[string]models.Course{
		"c1": {ID: "c1", Title: "Algebra"},
		"c2": {ID: "c2", Title: "Chemistry"},
	}}
	establishment := "Lycee Central"
	classes := &classDirectoryStub{classes: map[string]models.ClassDetails{
		"class-1": {ID: "class-1", Name: "Terminale S", EstablishmentName: &establishment},
		"class-2": {ID: "class-2", Name: "Seconde B"},
	}}
	access := &accessRegistryStub{entries: map[string][]models.ClassAccess{
		"class-1": {
			{ClassID: "class-1", UserID: "u1", State: models.AccessStateApproved, Role: "STUDENT", FirstName: "Zoe", LastName: "Martin", Email: "zoe@example.com"},
			{ClassID: "class-1", UserID: "u2", State: models.AccessStateApproved, Role: "STUDENT", FullName: "Adam Diallo"},
			{ClassID: "class-1", UserID: "u3", State: models.AccessStatePending, Role: "STUDENT", FirstName: "Pending", LastName: "User"},
			{ClassID: "class-1", UserID: "u4", State: models.AccessStateApproved, Role: "PARENT", Email: "marie.curie@example.com"},
		},
		"class-2": {
			{ClassID: "class-2", UserID: "u9", State: models.AccessStateApproved, Role: "STUDENT"},
		},
	}}
	audit := &auditRecorderStub{}
	metrics := &transitionRecorderStub{}

	svc := NewScheduledCourseService(store, catalog, classes, access, NewDirectoryService(catalog, classes, nil, nil), audit, metrics, nil, nil)
	svc.now = func() time.Time { return fixedNow }

	return &scheduledCourseFixture{svc: svc, store: store, classes: classes, access: access, audit: audit, metrics: metrics}
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func intPtr(i int) *int { return &i }

func validScheduleRequest() dto.ScheduleCourseRequest {
	return dto.ScheduleCourseRequest{
		CourseID:    "c1",
		ProfessorID: "p1",
		PlannedAt:   timePtr(fixedNow.Add(24 * time.Hour)),
		Location:    "Room 1",
	}
}

func plannedCourse(id string) models.ScheduledCourse {
	return models.ScheduledCourse{
		ID:             id,
		CourseID:       "c1",
		ProfessorID:    "p1",
		ClassID:        strPtr("class-1"),
		PlannedAt:      fixedNow.Add(2 * time.Hour),
		Location:       "Room 1",
		Status:         models.ScheduledCourseStatusPlanned,
		ParticipantIDs: []string{"u1"},
		Version:        1,
	}
}

func inProgressCourse(id string) models.ScheduledCourse {
	course := plannedCourse(id)
	course.PlannedAt = fixedNow.Add(-time.Hour)
	course.Status = models.ScheduledCourseStatusInProgress
	course.ActualStartAt = timePtr(fixedNow.Add(-30 * time.Minute))
	return course
}

func completedCourse(id string) models.ScheduledCourse {
	course := inProgressCourse(id)
	course.Status = models.ScheduledCourseStatusCompleted
	course.ActualEndAt = timePtr(fixedNow.Add(-5 * time.Minute))
	return course
}

func cancelledCourse(id string) models.ScheduledCourse {
	course := plannedCourse(id)
	course.Status = models.ScheduledCourseStatusCancelled
	return course
}

func requireAppError(t *testing.T, err error, sentinel *appErrors.Error) *appErrors.Error {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "expected *errors.Error, got %T", err)
	require.Equal(t, sentinel.Code, appErr.Code, appErr.Message)
	return appErr
}

func TestScheduleCreatesPlannedCourse(t *testing.T) {
	f := newScheduledCourseFixture()

	course, err := f.svc.Schedule(context.Background(), validScheduleRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, course.ID)
	assert.Equal(t, models.ScheduledCourseStatusPlanned, course.Status)
	assert.Nil(t, course.ActualStartAt)
	assert.Nil(t, course.ActualEndAt)
	assert.Equal(t, "Room 1", course.Location)
	assert.Contains(t, f.store.items, course.ID)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditActionScheduledCourseCreate, f.audit.entries[0].Action)
	assert.Nil(t, f.audit.entries[0].OldValues)
}

func TestScheduleRecordsActorFromContext(t *testing.T) {
	f := newScheduledCourseFixture()

	ctx := ContextWithActor(context.Background(), "admin-7")
	_, err := f.svc.Schedule(ctx, validScheduleRequest())
	require.NoError(t, err)

	require.Len(t, f.audit.entries, 1)
	require.NotNil(t, f.audit.entries[0].UserID)
	assert.Equal(t, "admin-7", *f.audit.entries[0].UserID)
}

func TestScheduleRejectsPastPlannedAt(t *testing.T) {
	f := newScheduledCourseFixture()
	req := validScheduleRequest()
	req.PlannedAt = timePtr(fixedNow.Add(-24 * time.Hour))

	_, err := f.svc.Schedule(context.Background(), req)
	appErr := requireAppError(t, err, appErrors.ErrValidation)
	assert.Equal(t, "plannedAt", appErr.Field)
	assert.Equal(t, "plannedAt must be in the future", appErr.Message)
	assert.Empty(t, f.store.items)
}

func TestScheduleRejectsPlannedAtEqualToNow(t *testing.T) {
	f := newScheduledCourseFixture()
	req := validScheduleRequest()
	req.PlannedAt = timePtr(fixedNow)

	_, err := f.svc.Schedule(context.Background(), req)
	appErr := requireAppError(t, err, appErrors.ErrValidation)
	assert.Equal(t, "plannedAt", appErr.Field)
}

func TestScheduleRequiresFields(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*dto.ScheduleCourseRequest)
		field string
	}{
		{"course", func(r *dto.ScheduleCourseRequest) { r.CourseID = "" }, "courseId"},
		{"professor", func(r *dto.ScheduleCourseRequest) { r.ProfessorID = "" }, "professorId"},
		{"planned at", func(r *dto.ScheduleCourseRequest) { r.PlannedAt = nil }, "plannedAt"},
		{"blank location", func(r *dto.ScheduleCourseRequest) { r.Location = "   " }, "location"},
		{"capacity", func(r *dto.ScheduleCourseRequest) { r.MaxCapacity = intPtr(0) }, "maxCapacity"},
		{"negative capacity", func(r *dto.ScheduleCourseRequest) { r.MaxCapacity = intPtr(-3) }, "maxCapacity"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newScheduledCourseFixture()
			req := validScheduleRequest()
			tc.edit(&req)

			_, err := f.svc.Schedule(context.Background(), req)
			appErr := requireAppError(t, err, appErrors.ErrValidation)
			assert.Equal(t, tc.field, appErr.Field)
		})
	}
}

func TestScheduleAcceptsCapacityBelowParticipantCount(t *testing.T) {
	f := newScheduledCourseFixture()
	req := validScheduleRequest()
	req.ClassID = strPtr("class-1")
	req.ParticipantIDs = []string{"u1", "u2"}
	req.MaxCapacity = intPtr(1)

	course, err := f.svc.Schedule(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, *course.MaxCapacity)
	assert.Len(t, course.ParticipantIDs, 2)
}

func TestScheduleRejectsParticipantOutsideRoster(t *testing.T) {
	f := newScheduledCourseFixture()
	req := validScheduleRequest()
	req.ClassID = strPtr("class-1")
	req.ParticipantIDs = []string{"u1", "u3"}

	_, err := f.svc.Schedule(context.Background(), req)
	appErr := requireAppError(t, err, appErrors.ErrValidation)
	assert.Equal(t, "participantIds", appErr.Field)
	assert.Equal(t, "participant not in class roster", appErr.Message)
	assert.Equal(t, "u3", appErr.Details["participantId"])
}

func TestScheduleRejectsParticipantsWithoutClass(t *testing.T) {
	f := newScheduledCourseFixture()
	req := validScheduleRequest()
	req.ParticipantIDs = []string{"u1"}

	_, err := f.svc.Schedule(context.Background(), req)
	appErr := requireAppError(t, err, appErrors.ErrValidation)
	assert.Equal(t, "participantIds", appErr.Field)
}

func TestScheduleDeduplicatesParticipants(t *testing.T) {
	f := newScheduledCourseFixture()
	req := validScheduleRequest()
	req.ClassID = strPtr("class-1")
	req.ParticipantIDs = []string{"u2", "u1", "u2", " u1 "}

	course, err := f.svc.Schedule(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u1"}, course.ParticipantIDs)
}

func TestScheduleRejectsUnknownCourseAndClass(t *testing.T) {
	f := newScheduledCourseFixture()
	req := validScheduleRequest()
	req.CourseID = "missing"

	_, err := f.svc.Schedule(context.Background(), req)
	appErr := requireAppError(t, err, appErrors.ErrValidation)
	assert.Equal(t, "courseId", appErr.Field)

	req = validScheduleRequest()
	req.ClassID = strPtr("ghost")
	_, err = f.svc.Schedule(context.Background(), req)
	appErr = requireAppError(t, err, appErrors.ErrValidation)
	assert.Equal(t, "classId", appErr.Field)
}

func TestScheduleWrapsCollaboratorFailures(t *testing.T) {
	f := newScheduledCourseFixture()
	f.store.createErr = errors.New("connection reset")

	_, err := f.svc.Schedule(context.Background(), validScheduleRequest())
	appErr := requireAppError(t, err, appErrors.ErrCollaborator)
	assert.Contains(t, appErr.Message, "create scheduled course")
	assert.ErrorIs(t, err, f.store.createErr)

	f = newScheduledCourseFixture()
	f.access.err = errors.New("registry offline")
	req := validScheduleRequest()
	req.ClassID = strPtr("class-1")
	req.ParticipantIDs = []string{"u1"}
	_, err = f.svc.Schedule(context.Background(), req)
	requireAppError(t, err, appErrors.ErrCollaborator)
}

func TestStartTransitionsPlannedCourse(t *testing.T) {
	f := newScheduledCourseFixture(plannedCourse("sc-1"))
	f.svc.now = func() time.Time { return fixedNow.Add(3 * time.Hour) }

	course, err := f.svc.Start(context.Background(), "sc-1")
	require.NoError(t, err)
	assert.Equal(t, models.ScheduledCourseStatusInProgress, course.Status)
	require.NotNil(t, course.ActualStartAt)
	assert.True(t, course.ActualStartAt.Equal(fixedNow.Add(3*time.Hour)))
	assert.Nil(t, course.ActualEndAt)
	assert.Equal(t, 2, course.Version)

	_, err = f.svc.Start(context.Background(), "sc-1")
	appErr := requireAppError(t, err, appErrors.ErrInvalidTransition)
	assert.Contains(t, appErr.Message, "IN_PROGRESS")

	assert.Equal(t, 1, f.metrics.counts["start:success"])
	assert.Equal(t, 1, f.metrics.counts["start:rejected"])
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditActionScheduledCourseStart, f.audit.entries[0].Action)
	assert.NotEmpty(t, f.audit.entries[0].OldValues)
}

func TestStartBeforePlannedTimeMovesPlan(t *testing.T) {
	f := newScheduledCourseFixture(plannedCourse("sc-1"))

	course, err := f.svc.Start(context.Background(), "sc-1")
	require.NoError(t, err)
	require.NotNil(t, course.ActualStartAt)
	assert.True(t, course.ActualStartAt.Equal(fixedNow))
	assert.True(t, course.PlannedAt.Equal(fixedNow))
	assert.False(t, course.ActualStartAt.Before(course.PlannedAt))
}

func TestStartBeforePlannedTimeLogsOriginalPlan(t *testing.T) {
	f := newScheduledCourseFixture(plannedCourse("sc-1"))
	core, logs := observer.New(zapcore.InfoLevel)
	f.svc.logger = zap.New(core)

	_, err := f.svc.Start(context.Background(), "sc-1")
	require.NoError(t, err)

	entries := logs.FilterMessage("scheduled course transitioned").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	was, ok := fields["planned_at_was"].(time.Time)
	require.True(t, ok)
	assert.True(t, was.Equal(fixedNow.Add(2*time.Hour)))
	moved, ok := fields["planned_at"].(time.Time)
	require.True(t, ok)
	assert.True(t, moved.Equal(fixedNow))

	require.Len(t, f.audit.entries, 1)
	assert.Contains(t, string(f.audit.entries[0].OldValues), fixedNow.Add(2*time.Hour).Format(time.RFC3339))
}

func TestAuditSnapshotFailureIsLogged(t *testing.T) {
	f := newScheduledCourseFixture(plannedCourse("sc-1"))
	core, logs := observer.New(zapcore.WarnLevel)
	f.svc.logger = zap.New(core)
	marshalAudit = func(interface{}) ([]byte, error) { return nil, errors.New("unsupported value") }
	t.Cleanup(func() { marshalAudit = json.Marshal })

	_, err := f.svc.Cancel(context.Background(), "sc-1", "")
	require.NoError(t, err)

	assert.Equal(t, 2, logs.FilterMessage("audit snapshot not encoded").Len())
	require.Len(t, f.audit.entries, 1)
	assert.Nil(t, f.audit.entries[0].OldValues)
	assert.Nil(t, f.audit.entries[0].NewValues)
}

func TestCompleteRequiresInProgress(t *testing.T) {
	f := newScheduledCourseFixture(plannedCourse("sc-1"))

	_, err := f.svc.Complete(context.Background(), "sc-1")
	requireAppError(t, err, appErrors.ErrInvalidTransition)
	assert.Equal(t, 0, f.store.updates)
}

func TestCompleteStampsEnd(t *testing.T) {
	f := newScheduledCourseFixture(inProgressCourse("sc-1"))

	course, err := f.svc.Complete(context.Background(), "sc-1")
	require.NoError(t, err)
	assert.Equal(t, models.ScheduledCourseStatusCompleted, course.Status)
	require.NotNil(t, course.ActualEndAt)
	require.NotNil(t, course.ActualStartAt)
	assert.True(t, course.ActualEndAt.Equal(fixedNow))
	assert.False(t, course.ActualEndAt.Before(*course.ActualStartAt))
}

func TestCancelInProgressClearsDates(t *testing.T) {
	course := inProgressCourse("sc-1")
	course.Description = strPtr("Bring lab coats")
	f := newScheduledCourseFixture(course)

	cancelled, err := f.svc.Cancel(context.Background(), "sc-1", "room unavailable")
	require.NoError(t, err)
	assert.Equal(t, models.ScheduledCourseStatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.ActualStartAt)
	assert.Nil(t, cancelled.ActualEndAt)
	require.NotNil(t, cancelled.Description)
	assert.Contains(t, *cancelled.Description, "Bring lab coats")
	assert.Contains(t, *cancelled.Description, "Cancelled: room unavailable")
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, "room unavailable", *cancelled.CancellationReason)
}

func TestCancelWithoutReasonKeepsDescription(t *testing.T) {
	f := newScheduledCourseFixture(plannedCourse("sc-1"))

	cancelled, err := f.svc.Cancel(context.Background(), "sc-1", "  ")
	require.NoError(t, err)
	assert.Nil(t, cancelled.Description)
	assert.Nil(t, cancelled.CancellationReason)
}

func TestTransitionTable(t *testing.T) {
	fixtures := map[models.ScheduledCourseStatus]func(string) models.ScheduledCourse{
		models.ScheduledCourseStatusPlanned:    plannedCourse,
		models.ScheduledCourseStatusInProgress: inProgressCourse,
		models.ScheduledCourseStatusCompleted:  completedCourse,
		models.ScheduledCourseStatusCancelled:  cancelledCourse,
	}
	allowed := map[string]map[models.ScheduledCourseStatus]bool{
		"start":    {models.ScheduledCourseStatusPlanned: true},
		"complete": {models.ScheduledCourseStatusInProgress: true},
		"cancel":   {models.ScheduledCourseStatusPlanned: true, models.ScheduledCourseStatusInProgress: true},
	}

	for operation, okFrom := range allowed {
		for status, build := range fixtures {
			t.Run(operation+"/"+string(status), func(t *testing.T) {
				f := newScheduledCourseFixture(build("sc-1"))
				var (
					course *models.ScheduledCourse
					err    error
				)
				switch operation {
				case "start":
					course, err = f.svc.Start(context.Background(), "sc-1")
				case "complete":
					course, err = f.svc.Complete(context.Background(), "sc-1")
				case "cancel":
					course, err = f.svc.Cancel(context.Background(), "sc-1", "")
				}

				if !okFrom[status] {
					requireAppError(t, err, appErrors.ErrInvalidTransition)
					assert.Equal(t, status, f.store.items["sc-1"].Status)
					return
				}
				require.NoError(t, err)
				if course.Status == models.ScheduledCourseStatusPlanned {
					assert.Nil(t, course.ActualStartAt)
				}
				if course.ActualStartAt != nil && course.ActualEndAt != nil {
					assert.False(t, course.ActualEndAt.Before(*course.ActualStartAt))
				}
			})
		}
	}
}

func TestTransitionUnknownID(t *testing.T) {
	f := newScheduledCourseFixture()

	_, err := f.svc.Start(context.Background(), "nope")
	requireAppError(t, err, appErrors.ErrNotFound)
	assert.Equal(t, 1, f.metrics.counts["start:not_found"])
}

func TestTransitionStaleVersionConflicts(t *testing.T) {
	f := newScheduledCourseFixture(plannedCourse("sc-1"))
	f.store.updateErr = sql.ErrNoRows

	_, err := f.svc.Cancel(context.Background(), "sc-1", "")
	requireAppError(t, err, appErrors.ErrConflict)
	assert.Equal(t, 1, f.metrics.counts["cancel:conflict"])
	assert.Empty(t, f.audit.entries)
}

func TestRescheduleUnknownID(t *testing.T) {
	f := newScheduledCourseFixture()

	_, err := f.svc.Reschedule(context.Background(), "missing", dto.RescheduleCourseRequest{Location: strPtr("Lab")})
	requireAppError(t, err, appErrors.ErrNotFound)
}

func TestRescheduleMergesPatch(t *testing.T) {
	f := newScheduledCourseFixture(plannedCourse("sc-1"))

	course, err := f.svc.Reschedule(context.Background(), "sc-1", dto.RescheduleCourseRequest{
		Location:    strPtr("Lab 2"),
		MaxCapacity: intPtr(12),
	})
	require.NoError(t, err)
	assert.Equal(t, "Lab 2", course.Location)
	assert.Equal(t, 12, *course.MaxCapacity)
	assert.Equal(t, "c1", course.CourseID)
	assert.Equal(t, []string{"u1"}, course.ParticipantIDs)
	assert.Equal(t, 2, course.Version)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditActionScheduledCourseReschedule, f.audit.entries[0].Action)
}

func TestRescheduleValidatesMergedDates(t *testing.T) {
	f := newScheduledCourseFixture(inProgressCourse("sc-1"))

	_, err := f.svc.Reschedule(context.Background(), "sc-1", dto.RescheduleCourseRequest{
		ActualStartAt: timePtr(fixedNow.Add(-2 * time.Hour)),
	})
	appErr := requireAppError(t, err, appErrors.ErrValidation)
	assert.Equal(t, "actualStartAt", appErr.Field)
}

func TestRescheduleRejectsEndBeforeStart(t *testing.T) {
	f := newScheduledCourseFixture(completedCourse("sc-1"))

	_, err := f.svc.Reschedule(context.Background(), "sc-1", dto.RescheduleCourseRequest{
		ActualEndAt: timePtr(fixedNow.Add(-50 * time.Minute)),
	})
	appErr := requireAppError(t, err, appErrors.ErrValidation)
	assert.Equal(t, "actualEndAt", appErr.Field)
}

func TestRescheduleGatesDatesByStatus(t *testing.T) {
	f := newScheduledCourseFixture(completedCourse("sc-1"), completedCourse("sc-2"))

	planned, err := f.svc.Reschedule(context.Background(), "sc-1", dto.RescheduleCourseRequest{
		Status:        strPtr("PLANIFIE"),
		ActualStartAt: timePtr(fixedNow),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ScheduledCourseStatusPlanned, planned.Status)
	assert.Nil(t, planned.ActualStartAt)
	assert.Nil(t, planned.ActualEndAt)

	running, err := f.svc.Reschedule(context.Background(), "sc-2", dto.RescheduleCourseRequest{Status: strPtr("EN_COURS")})
	require.NoError(t, err)
	assert.Equal(t, models.ScheduledCourseStatusInProgress, running.Status)
	assert.NotNil(t, running.ActualStartAt)
	assert.Nil(t, running.ActualEndAt)
}

func TestRescheduleToStartedStatusRequiresStartDate(t *testing.T) {
	f := newScheduledCourseFixture(plannedCourse("sc-1"), plannedCourse("sc-2"))

	for _, status := range []string{"IN_PROGRESS", "COMPLETED"} {
		_, err := f.svc.Reschedule(context.Background(), "sc-1", dto.RescheduleCourseRequest{Status: strPtr(status)})
		appErr := requireAppError(t, err, appErrors.ErrValidation)
		assert.Equal(t, "actualStartAt", appErr.Field)
	}
	assert.Equal(t, 0, f.store.updates)

	running, err := f.svc.Reschedule(context.Background(), "sc-2", dto.RescheduleCourseRequest{
		Status:        strPtr("IN_PROGRESS"),
		PlannedAt:     timePtr(fixedNow.Add(-time.Hour)),
		ActualStartAt: timePtr(fixedNow.Add(-30 * time.Minute)),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ScheduledCourseStatusInProgress, running.Status)

	completed, err := f.svc.Complete(context.Background(), "sc-2")
	require.NoError(t, err)
	assert.Equal(t, models.ScheduledCourseStatusCompleted, completed.Status)
	require.NotNil(t, completed.ActualEndAt)
	assert.True(t, completed.ActualEndAt.Equal(fixedNow))
}

func TestRescheduleRejectsUnknownStatus(t *testing.T) {
	f := newScheduledCourseFixture(plannedCourse("sc-1"))

	_, err := f.svc.Reschedule(context.Background(), "sc-1", dto.RescheduleCourseRequest{Status: strPtr("POSTPONED")})
	appErr := requireAppError(t, err, appErrors.ErrValidation)
	assert.Equal(t, "status", appErr.Field)
}

func TestReschedulePlannedAtMustStayFuture(t *testing.T) {
	f := newScheduledCourseFixture(plannedCourse("sc-1"))

	_, err := f.svc.Reschedule(context.Background(), "sc-1", dto.RescheduleCourseRequest{PlannedAt: timePtr(fixedNow.Add(-time.Minute))})
	appErr := requireAppError(t, err, appErrors.ErrValidation)
	assert.Equal(t, "plannedAt", appErr.Field)
}

func TestRescheduleDetachingClassDropsParticipants(t *testing.T) {
	f := newScheduledCourseFixture(plannedCourse("sc-1"))

	course, err := f.svc.Reschedule(context.Background(), "sc-1", dto.RescheduleCourseRequest{ClassID: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, course.ClassID)
	assert.Empty(t, course.ParticipantIDs)
}

func TestRescheduleChecksParticipantsAgainstNewClass(t *testing.T) {
	f := newScheduledCourseFixture(plannedCourse("sc-1"))

	_, err := f.svc.Reschedule(context.Background(), "sc-1", dto.RescheduleCourseRequest{ClassID: strPtr("class-2")})
	appErr := requireAppError(t, err, appErrors.ErrValidation)
	assert.Equal(t, "participantIds", appErr.Field)

	course, err := f.svc.Reschedule(context.Background(), "sc-1", dto.RescheduleCourseRequest{
		ClassID:        strPtr("class-2"),
		ParticipantIDs: &[]string{"u9"},
	})
	require.NoError(t, err)
	assert.Equal(t, "class-2", *course.ClassID)
	assert.Equal(t, []string{"u9"}, course.ParticipantIDs)
}

func TestRescheduleRestoringStatusClearsCancellationReason(t *testing.T) {
	course := cancelledCourse("sc-1")
	course.CancellationReason = strPtr("strike")
	f := newScheduledCourseFixture(course)

	restored, err := f.svc.Reschedule(context.Background(), "sc-1", dto.RescheduleCourseRequest{Status: strPtr("PLANNED")})
	require.NoError(t, err)
	assert.Nil(t, restored.CancellationReason)
}

func TestRescheduleConflict(t *testing.T) {
	f := newScheduledCourseFixture(plannedCourse("sc-1"))
	f.store.updateErr = sql.ErrNoRows

	_, err := f.svc.Reschedule(context.Background(), "sc-1", dto.RescheduleCourseRequest{Location: strPtr("Hall")})
	requireAppError(t, err, appErrors.ErrConflict)
	assert.Empty(t, f.audit.entries)
}

func TestResolveParticipantsDropsUnknownAndSorts(t *testing.T) {
	f := newScheduledCourseFixture()
	course := plannedCourse("sc-1")
	course.ParticipantIDs = []string{"u1", "gone", "u2", "u3", "u4"}

	views, err := f.svc.ResolveParticipants(context.Background(), &course)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "Adam Diallo", views[0].DisplayName)
	assert.Equal(t, "marie.curie", views[1].DisplayName)
	assert.Equal(t, "Zoe Martin", views[2].DisplayName)
	assert.Equal(t, "zoe@example.com", views[2].Email)
	assert.Equal(t, "PARENT", views[1].RoleTag)
}

func TestResolveParticipantsWithoutClass(t *testing.T) {
	f := newScheduledCourseFixture()
	course := plannedCourse("sc-1")
	course.ClassID = nil

	views, err := f.svc.ResolveParticipants(context.Background(), &course)
	require.NoError(t, err)
	assert.Empty(t, views)
	assert.Equal(t, 0, f.access.calls)
}

func TestResolveParticipantsCollaboratorError(t *testing.T) {
	f := newScheduledCourseFixture()
	f.access.err = errors.New("timeout")
	course := plannedCourse("sc-1")

	_, err := f.svc.ResolveParticipants(context.Background(), &course)
	requireAppError(t, err, appErrors.ErrCollaborator)
}

func TestListAccessibleRosterFiltersApproved(t *testing.T) {
	f := newScheduledCourseFixture()

	roster, err := f.svc.ListAccessibleRoster(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, []models.RosterEntry{
		{ID: "u1", DisplayName: "Zoe Martin"},
		{ID: "u2", DisplayName: "Adam Diallo"},
		{ID: "u4", DisplayName: "marie.curie"},
	}, roster)

	_, err = f.svc.ListAccessibleRoster(context.Background(), " ")
	requireAppError(t, err, appErrors.ErrValidation)
}

func TestDisplayNameFallbacks(t *testing.T) {
	cases := []struct {
		entry models.ClassAccess
		want  string
	}{
		{models.ClassAccess{UserID: "1", FirstName: "Ada", LastName: "Lovelace", FullName: "ignored"}, "Ada Lovelace"},
		{models.ClassAccess{UserID: "2", FirstName: "Ada"}, "Ada"},
		{models.ClassAccess{UserID: "3", FullName: "Grace Hopper", Email: "g@example.com"}, "Grace Hopper"},
		{models.ClassAccess{UserID: "4", Email: "alan.turing@example.com"}, "alan.turing"},
		{models.ClassAccess{UserID: "5", Email: "@example.com"}, "User 5"},
		{models.ClassAccess{UserID: "6"}, "User 6"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DisplayName(tc.entry))
	}
}

func TestFindDelegatesInStoreOrder(t *testing.T) {
	second := plannedCourse("sc-2")
	second.CourseID = "c2"
	f := newScheduledCourseFixture(plannedCourse("sc-1"), second, inProgressCourse("sc-3"))

	byClass, err := f.svc.FindByClass(context.Background(), "class-1")
	require.NoError(t, err)
	require.Len(t, byClass, 3)
	assert.Equal(t, "sc-1", byClass[0].ID)
	assert.Equal(t, "sc-3", byClass[2].ID)

	byCourse, err := f.svc.Find(context.Background(), models.ScheduledCourseQuery{CourseID: "c2", ProfessorID: "p1"})
	require.NoError(t, err)
	require.Len(t, byCourse, 1)
	assert.Equal(t, "sc-2", byCourse[0].ID)

	byParticipant, err := f.svc.FindByParticipant(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, byParticipant, 3)

	_, err = f.svc.Find(context.Background(), models.ScheduledCourseQuery{})
	requireAppError(t, err, appErrors.ErrValidation)

	f.store.listErr = errors.New("down")
	_, err = f.svc.FindByProfessor(context.Background(), "p1")
	requireAppError(t, err, appErrors.ErrCollaborator)
}

func TestListEnrichesAndFilters(t *testing.T) {
	chemistry := plannedCourse("sc-2")
	chemistry.CourseID = "c2"
	chemistry.Location = "Lab 4"
	f := newScheduledCourseFixture(plannedCourse("sc-1"), chemistry, inProgressCourse("sc-3"))

	items, err := f.svc.List(context.Background(), models.ScheduledCourseQuery{ProfessorID: "p1"}, models.ScheduledCourseFilter{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Algebra", items[0].CourseTitle)
	assert.Equal(t, "Terminale S", items[0].ClassName)
	assert.Equal(t, "Lycee Central", items[0].EstablishmentName)
	assert.Equal(t, "Chemistry", items[1].CourseTitle)

	filtered, err := f.svc.List(context.Background(), models.ScheduledCourseQuery{ProfessorID: "p1"}, models.ScheduledCourseFilter{SearchText: "chem"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "sc-2", filtered[0].ID)

	running, err := f.svc.List(context.Background(), models.ScheduledCourseQuery{ProfessorID: "p1"}, models.ScheduledCourseFilter{Status: "EN_COURS"})
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, "sc-3", running[0].ID)
}

func TestFilter(t *testing.T) {
	items := []models.ScheduledCourseListItem{
		{ScheduledCourse: models.ScheduledCourse{ID: "1", Location: "Room 1", Status: models.ScheduledCourseStatusPlanned}, CourseTitle: "Algebra", ClassName: "6e A"},
		{ScheduledCourse: models.ScheduledCourse{ID: "2", Location: "Gym", Status: models.ScheduledCourseStatusCompleted}, CourseTitle: "Sport", ClassName: "5e B"},
		{ScheduledCourse: models.ScheduledCourse{ID: "3", Location: "Lab", Status: models.ScheduledCourseStatusPlanned}, CourseTitle: "Physics", ClassName: "6e B"},
	}

	ids := func(in []models.ScheduledCourseListItem) []string {
		out := []string{}
		for _, item := range in {
			out = append(out, item.ID)
		}
		return out
	}

	assert.Equal(t, []string{"1", "2", "3"}, ids(Filter(items, models.ScheduledCourseFilter{})))
	assert.Equal(t, []string{"1", "2", "3"}, ids(Filter(items, models.ScheduledCourseFilter{Status: "ALL"})))
	assert.Equal(t, []string{"1", "3"}, ids(Filter(items, models.ScheduledCourseFilter{Status: "PLANNED"})))
	assert.Equal(t, []string{"2"}, ids(Filter(items, models.ScheduledCourseFilter{SearchText: "GYM"})))
	assert.Equal(t, []string{"1", "3"}, ids(Filter(items, models.ScheduledCourseFilter{SearchText: "6e"})))
	assert.Equal(t, []string{"3"}, ids(Filter(items, models.ScheduledCourseFilter{SearchText: "6e b", Status: "planifie"})))
	assert.Empty(t, Filter(items, models.ScheduledCourseFilter{Status: "bogus"}))
	assert.Len(t, items, 3)
}

func TestApplyStatusGating(t *testing.T) {
	start := fixedNow
	end := fixedNow.Add(time.Hour)
	base := models.ScheduledCourse{ActualStartAt: &start, ActualEndAt: &end}

	cases := []struct {
		status    models.ScheduledCourseStatus
		keepStart bool
		keepEnd   bool
	}{
		{models.ScheduledCourseStatusPlanned, false, false},
		{models.ScheduledCourseStatusInProgress, true, false},
		{models.ScheduledCourseStatusCompleted, true, true},
		{models.ScheduledCourseStatusCancelled, false, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			input := base.Clone()
			input.Status = tc.status
			out := ApplyStatusGating(input)
			assert.Equal(t, tc.keepStart, out.ActualStartAt != nil)
			assert.Equal(t, tc.keepEnd, out.ActualEndAt != nil)
			assert.NotNil(t, input.ActualStartAt)
			assert.NotNil(t, input.ActualEndAt)
		})
	}
}
