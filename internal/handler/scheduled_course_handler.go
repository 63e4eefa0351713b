package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scholchat/scholchat-api/internal/dto"
	"github.com/scholchat/scholchat-api/internal/middleware"
	"github.com/scholchat/scholchat-api/internal/models"
	"github.com/scholchat/scholchat-api/internal/service"
	appErrors "github.com/scholchat/scholchat-api/pkg/errors"
	"github.com/scholchat/scholchat-api/pkg/response"
	"github.com/scholchat/scholchat-api/pkg/validation"
)

type scheduledCourseService interface {
	Schedule(ctx context.Context, req dto.ScheduleCourseRequest) (*models.ScheduledCourse, error)
	Reschedule(ctx context.Context, id string, patch dto.RescheduleCourseRequest) (*models.ScheduledCourse, error)
	Start(ctx context.Context, id string) (*models.ScheduledCourse, error)
	Complete(ctx context.Context, id string) (*models.ScheduledCourse, error)
	Cancel(ctx context.Context, id, reason string) (*models.ScheduledCourse, error)
	Get(ctx context.Context, id string) (*models.ScheduledCourse, error)
	List(ctx context.Context, query models.ScheduledCourseQuery, filter models.ScheduledCourseFilter) ([]models.ScheduledCourseListItem, error)
	ResolveParticipants(ctx context.Context, course *models.ScheduledCourse) ([]models.ParticipantView, error)
	ListAccessibleRoster(ctx context.Context, classID string) ([]models.RosterEntry, error)
}

type scheduledCourseExporter interface {
	Export(items []models.ScheduledCourseListItem, format service.ExportFormat) (*service.ExportResult, error)
}

// ScheduledCourseHandler exposes the scheduled course lifecycle endpoints.
type ScheduledCourseHandler struct {
	service   scheduledCourseService
	exporter  scheduledCourseExporter
	validator *validation.Validator
}

// NewScheduledCourseHandler builds a new handler. exporter may be nil when exports are disabled.
func NewScheduledCourseHandler(svc scheduledCourseService, exporter scheduledCourseExporter, validate *validation.Validator) *ScheduledCourseHandler {
	if validate == nil {
		validate = validation.New()
	}
	return &ScheduledCourseHandler{service: svc, exporter: exporter, validator: validate}
}

// Schedule godoc
// @Summary Plan a course occurrence
// @Description Professors always schedule for themselves; administrators must name the professor.
// @Tags ScheduledCourses
// @Accept json
// @Produce json
// @Param payload body dto.ScheduleCourseRequest true "Scheduled course payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /scheduled-courses [post]
func (h *ScheduledCourseHandler) Schedule(c *gin.Context) {
	var req dto.ScheduleCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid scheduled course payload"))
		return
	}
	if professorID, ok := callerIsProfessor(c); ok {
		req.ProfessorID = professorID
	}
	course, err := h.service.Schedule(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// List godoc
// @Summary List scheduled courses
// @Description Exactly one of courseId, classId, professorId, participantId is honoured; without any the caller's own courses are listed.
// @Tags ScheduledCourses
// @Produce json
// @Param courseId query string false "Course ID"
// @Param classId query string false "Class ID"
// @Param professorId query string false "Professor ID"
// @Param participantId query string false "Participant ID"
// @Param search query string false "Search in course title, location and class name"
// @Param status query string false "Status or all"
// @Success 200 {object} response.Envelope
// @Router /scheduled-courses [get]
func (h *ScheduledCourseHandler) List(c *gin.Context) {
	items, ok := h.loadListing(c)
	if !ok {
		return
	}
	middleware.SetMeta(c, "count", len(items))
	response.JSON(c, http.StatusOK, items, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Export scheduled courses
// @Tags ScheduledCourses
// @Produce text/csv
// @Produce application/pdf
// @Produce text/calendar
// @Param format query string true "csv, pdf or ics"
// @Param courseId query string false "Course ID"
// @Param classId query string false "Class ID"
// @Param professorId query string false "Professor ID"
// @Param participantId query string false "Participant ID"
// @Param search query string false "Search text"
// @Param status query string false "Status or all"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /scheduled-courses/export [get]
func (h *ScheduledCourseHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	items, ok := h.loadListing(c)
	if !ok {
		return
	}
	result, err := h.exporter.Export(items, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Body)
}

// Get godoc
// @Summary Get a scheduled course
// @Tags ScheduledCourses
// @Produce json
// @Param id path string true "Scheduled course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scheduled-courses/{id} [get]
func (h *ScheduledCourseHandler) Get(c *gin.Context) {
	course, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, course)
}

// Reschedule godoc
// @Summary Update a scheduled course
// @Description Partial update. A status field allows administrative correction; dates are gated by the resulting status.
// @Tags ScheduledCourses
// @Accept json
// @Produce json
// @Param id path string true "Scheduled course ID"
// @Param payload body dto.RescheduleCourseRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /scheduled-courses/{id} [patch]
func (h *ScheduledCourseHandler) Reschedule(c *gin.Context) {
	id := c.Param("id")
	var req dto.RescheduleCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reschedule payload"))
		return
	}
	if !h.authorizeOwner(c, id) {
		return
	}
	course, err := h.service.Reschedule(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, course)
}

// Start godoc
// @Summary Start a planned course
// @Tags ScheduledCourses
// @Produce json
// @Param id path string true "Scheduled course ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /scheduled-courses/{id}/start [post]
func (h *ScheduledCourseHandler) Start(c *gin.Context) {
	h.transition(c, h.service.Start)
}

// Complete godoc
// @Summary Complete a course in progress
// @Tags ScheduledCourses
// @Produce json
// @Param id path string true "Scheduled course ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /scheduled-courses/{id}/complete [post]
func (h *ScheduledCourseHandler) Complete(c *gin.Context) {
	h.transition(c, h.service.Complete)
}

// Cancel godoc
// @Summary Cancel a planned or running course
// @Tags ScheduledCourses
// @Accept json
// @Produce json
// @Param id path string true "Scheduled course ID"
// @Param payload body dto.CancelCourseRequest false "Cancellation reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /scheduled-courses/{id}/cancel [post]
func (h *ScheduledCourseHandler) Cancel(c *gin.Context) {
	var req dto.CancelCourseRequest
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cancellation payload"))
			return
		}
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, err)
		return
	}
	h.transition(c, func(ctx context.Context, id string) (*models.ScheduledCourse, error) {
		return h.service.Cancel(ctx, id, req.Reason)
	})
}

// Participants godoc
// @Summary Resolve the participants of a scheduled course
// @Tags ScheduledCourses
// @Produce json
// @Param id path string true "Scheduled course ID"
// @Success 200 {object} response.Envelope
// @Router /scheduled-courses/{id}/participants [get]
func (h *ScheduledCourseHandler) Participants(c *gin.Context) {
	course, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	participants, err := h.service.ResolveParticipants(c.Request.Context(), course)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, participants)
}

// Roster godoc
// @Summary List the approved roster of a class
// @Tags ScheduledCourses
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/roster [get]
func (h *ScheduledCourseHandler) Roster(c *gin.Context) {
	entries, err := h.service.ListAccessibleRoster(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entries)
}

func (h *ScheduledCourseHandler) transition(c *gin.Context, op func(ctx context.Context, id string) (*models.ScheduledCourse, error)) {
	id := c.Param("id")
	if !h.authorizeOwner(c, id) {
		return
	}
	course, err := op(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, course)
}

// authorizeOwner limits professors to their own courses. Administrators pass through.
func (h *ScheduledCourseHandler) authorizeOwner(c *gin.Context, id string) bool {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return false
	}
	if claims.IsAdministrator() {
		return true
	}
	course, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return false
	}
	if course.ProfessorID != claims.UserID {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "scheduled course belongs to another professor"))
		return false
	}
	return true
}

func (h *ScheduledCourseHandler) loadListing(c *gin.Context) ([]models.ScheduledCourseListItem, bool) {
	var params dto.ScheduledCourseListQuery
	if err := c.ShouldBindQuery(&params); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid listing query"))
		return nil, false
	}
	query := models.ScheduledCourseQuery{
		CourseID:      strings.TrimSpace(params.CourseID),
		ClassID:       strings.TrimSpace(params.ClassID),
		ProfessorID:   strings.TrimSpace(params.ProfessorID),
		ParticipantID: strings.TrimSpace(params.ParticipantID),
	}
	if query == (models.ScheduledCourseQuery{}) {
		claims := claimsFromContext(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			return nil, false
		}
		query.ProfessorID = claims.UserID
	}
	items, err := h.service.List(c.Request.Context(), query, models.ScheduledCourseFilter{
		SearchText: params.Search,
		Status:     params.Status,
	})
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return items, true
}
