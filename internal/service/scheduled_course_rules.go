package service

import (
	"strings"
	"time"

	"github.com/scholchat/scholchat-api/internal/models"
	appErrors "github.com/scholchat/scholchat-api/pkg/errors"
)

const filterStatusAll = "all"

// ApplyStatusGating clears the actual dates a status has not reached yet.
// It never mutates its argument.
func ApplyStatusGating(course models.ScheduledCourse) models.ScheduledCourse {
	out := course.Clone()
	switch out.Status {
	case models.ScheduledCourseStatusPlanned, models.ScheduledCourseStatusCancelled:
		out.ActualStartAt = nil
		out.ActualEndAt = nil
	case models.ScheduledCourseStatusInProgress:
		out.ActualEndAt = nil
	}
	return out
}

// validateRecord checks the invariants every persisted record must hold.
// Roster membership is checked separately because it needs the access registry.
func validateRecord(course models.ScheduledCourse) error {
	if !course.Status.Valid() {
		return appErrors.Validation("status", "status is not a known scheduled course status")
	}
	if strings.TrimSpace(course.Location) == "" {
		return appErrors.Validation("location", "location is required")
	}
	if course.PlannedAt.IsZero() {
		return appErrors.Validation("plannedAt", "plannedAt is required")
	}
	if course.MaxCapacity != nil && *course.MaxCapacity <= 0 {
		return appErrors.Validation("maxCapacity", "maxCapacity must be a positive integer")
	}
	started := course.Status == models.ScheduledCourseStatusInProgress || course.Status == models.ScheduledCourseStatusCompleted
	if started && course.ActualStartAt == nil {
		return appErrors.Validation("actualStartAt", "actualStartAt is required once the course has started")
	}
	if course.ActualStartAt != nil {
		if !started {
			return appErrors.Validation("actualStartAt", "actualStartAt is only allowed once the course has started")
		}
		if course.ActualStartAt.Before(course.PlannedAt) {
			return appErrors.Validation("actualStartAt", "actualStartAt must not be before plannedAt")
		}
	}
	if course.ActualEndAt != nil {
		if course.Status != models.ScheduledCourseStatusCompleted {
			return appErrors.Validation("actualEndAt", "actualEndAt is only allowed for completed courses")
		}
		if course.ActualStartAt == nil {
			return appErrors.Validation("actualStartAt", "actualStartAt is required when actualEndAt is set")
		}
		if course.ActualEndAt.Before(*course.ActualStartAt) {
			return appErrors.Validation("actualEndAt", "actualEndAt must not be before actualStartAt")
		}
	}
	if !course.HasClass() && len(course.ParticipantIDs) > 0 {
		return appErrors.Validation("participantIds", "participants require a class")
	}
	return nil
}

func ensureFuture(plannedAt, now time.Time) error {
	if !plannedAt.After(now) {
		return appErrors.Validation("plannedAt", "plannedAt must be in the future")
	}
	return nil
}

// Filter narrows listing items by free text and status. It is pure: the input
// slice is left untouched and order is preserved.
func Filter(items []models.ScheduledCourseListItem, filter models.ScheduledCourseFilter) []models.ScheduledCourseListItem {
	search := strings.ToLower(strings.TrimSpace(filter.SearchText))
	rawStatus := strings.TrimSpace(filter.Status)

	var wantStatus models.ScheduledCourseStatus
	matchAll := rawStatus == "" || strings.EqualFold(rawStatus, filterStatusAll)
	if !matchAll {
		parsed, err := models.ParseScheduledCourseStatus(rawStatus)
		if err != nil {
			return []models.ScheduledCourseListItem{}
		}
		wantStatus = parsed
	}

	out := make([]models.ScheduledCourseListItem, 0, len(items))
	for _, item := range items {
		if !matchAll && item.Status != wantStatus {
			continue
		}
		if search != "" && !matchesSearch(item, search) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func matchesSearch(item models.ScheduledCourseListItem, needle string) bool {
	for _, haystack := range []string{item.CourseTitle, item.Location, item.ClassName} {
		if strings.Contains(strings.ToLower(haystack), needle) {
			return true
		}
	}
	return false
}

func normaliseClassID(classID *string) *string {
	if classID == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*classID)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// dedupeIDs trims ids and drops repeats, keeping the first occurrence.
func dedupeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func appendCancellation(description *string, reason string) *string {
	note := "Cancelled: " + reason
	if description == nil || strings.TrimSpace(*description) == "" {
		return &note
	}
	combined := strings.TrimRight(*description, "\n") + "\n" + note
	return &combined
}
