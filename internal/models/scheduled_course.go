package models

import (
	"fmt"
	"strings"
	"time"
)

// ScheduledCourseStatus captures the lifecycle phases of a scheduled course.
type ScheduledCourseStatus string

const (
	ScheduledCourseStatusPlanned    ScheduledCourseStatus = "PLANNED"
	ScheduledCourseStatusInProgress ScheduledCourseStatus = "IN_PROGRESS"
	ScheduledCourseStatusCompleted  ScheduledCourseStatus = "COMPLETED"
	ScheduledCourseStatusCancelled  ScheduledCourseStatus = "CANCELLED"
)

// legacyStatuses maps the values still sent by older dashboard builds.
var legacyStatuses = map[string]ScheduledCourseStatus{
	"PLANIFIE": ScheduledCourseStatusPlanned,
	"EN_COURS": ScheduledCourseStatusInProgress,
	"TERMINE":  ScheduledCourseStatusCompleted,
	"ANNULE":   ScheduledCourseStatusCancelled,
}

// ParseScheduledCourseStatus normalises raw input, accepting legacy French values.
func ParseScheduledCourseStatus(raw string) (ScheduledCourseStatus, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	switch ScheduledCourseStatus(value) {
	case ScheduledCourseStatusPlanned, ScheduledCourseStatusInProgress, ScheduledCourseStatusCompleted, ScheduledCourseStatusCancelled:
		return ScheduledCourseStatus(value), nil
	}
	if status, ok := legacyStatuses[value]; ok {
		return status, nil
	}
	return "", fmt.Errorf("unknown scheduled course status %q", raw)
}

// Valid reports whether the status is one of the four known phases.
func (s ScheduledCourseStatus) Valid() bool {
	switch s {
	case ScheduledCourseStatusPlanned, ScheduledCourseStatusInProgress, ScheduledCourseStatusCompleted, ScheduledCourseStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition operation leaves this status.
func (s ScheduledCourseStatus) Terminal() bool {
	return s == ScheduledCourseStatusCompleted || s == ScheduledCourseStatusCancelled
}

// ScheduledCourse is a single planned occurrence of a course.
type ScheduledCourse struct {
	ID                 string                `db:"id" json:"id"`
	CourseID           string                `db:"course_id" json:"courseId"`
	ProfessorID        string                `db:"professor_id" json:"professorId"`
	ClassID            *string               `db:"class_id" json:"classId,omitempty"`
	PlannedAt          time.Time             `db:"planned_at" json:"plannedAt"`
	ActualStartAt      *time.Time            `db:"actual_start_at" json:"actualStartAt"`
	ActualEndAt        *time.Time            `db:"actual_end_at" json:"actualEndAt"`
	Location           string                `db:"location" json:"location"`
	Description        *string               `db:"description" json:"description,omitempty"`
	MaxCapacity        *int                  `db:"max_capacity" json:"maxCapacity,omitempty"`
	Status             ScheduledCourseStatus `db:"status" json:"status"`
	CancellationReason *string               `db:"cancellation_reason" json:"cancellationReason,omitempty"`
	Version            int                   `db:"version" json:"version"`
	CreatedAt          time.Time             `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time             `db:"updated_at" json:"updatedAt"`
	ParticipantIDs     []string              `db:"-" json:"participantIds"`
}

// HasClass reports whether a class (and therefore a roster) is attached.
func (c *ScheduledCourse) HasClass() bool {
	return c != nil && c.ClassID != nil && strings.TrimSpace(*c.ClassID) != ""
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (c ScheduledCourse) Clone() ScheduledCourse {
	out := c
	out.ClassID = cloneString(c.ClassID)
	out.Description = cloneString(c.Description)
	out.CancellationReason = cloneString(c.CancellationReason)
	out.ActualStartAt = cloneTime(c.ActualStartAt)
	out.ActualEndAt = cloneTime(c.ActualEndAt)
	if c.MaxCapacity != nil {
		v := *c.MaxCapacity
		out.MaxCapacity = &v
	}
	if c.ParticipantIDs != nil {
		out.ParticipantIDs = append([]string(nil), c.ParticipantIDs...)
	}
	return out
}

// ScheduledCourseListItem enriches a record with the names shown in listings.
type ScheduledCourseListItem struct {
	ScheduledCourse
	CourseTitle       string `json:"courseTitle"`
	ClassName         string `json:"className,omitempty"`
	EstablishmentName string `json:"establishmentName,omitempty"`
}

// ScheduledCourseQuery selects which store listing to use. Exactly one key is honoured,
// in the order course, class, professor, participant.
type ScheduledCourseQuery struct {
	CourseID      string
	ClassID       string
	ProfessorID   string
	ParticipantID string
}

// ScheduledCourseFilter narrows an already loaded listing.
type ScheduledCourseFilter struct {
	SearchText string
	Status     string
}

// ParticipantView is the display form of a scheduled course participant.
type ParticipantView struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	RoleTag     string `json:"roleTag,omitempty"`
}

// RosterEntry is a selectable member of a class roster.
type RosterEntry struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
