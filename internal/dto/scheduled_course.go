package dto

import "time"

// ScheduleCourseRequest is the payload used to plan a new course occurrence.
type ScheduleCourseRequest struct {
	CourseID       string     `json:"courseId" validate:"required,notblank"`
	ProfessorID    string     `json:"professorId" validate:"required,notblank"`
	ClassID        *string    `json:"classId"`
	PlannedAt      *time.Time `json:"plannedAt" validate:"required"`
	Location       string     `json:"location" validate:"required,notblank"`
	Description    *string    `json:"description"`
	MaxCapacity    *int       `json:"maxCapacity" validate:"omitempty,gt=0"`
	ParticipantIDs []string   `json:"participantIds" validate:"omitempty,dive,notblank"`
}

// RescheduleCourseRequest is a partial update. Nil fields keep the stored value.
// An empty classId detaches the class.
type RescheduleCourseRequest struct {
	ClassID        *string    `json:"classId"`
	PlannedAt      *time.Time `json:"plannedAt"`
	ActualStartAt  *time.Time `json:"actualStartAt"`
	ActualEndAt    *time.Time `json:"actualEndAt"`
	Location       *string    `json:"location" validate:"omitempty,notblank"`
	Description    *string    `json:"description"`
	MaxCapacity    *int       `json:"maxCapacity" validate:"omitempty,gt=0"`
	ParticipantIDs *[]string  `json:"participantIds" validate:"omitempty,dive,notblank"`
	Status         *string    `json:"status"`
}

// CancelCourseRequest carries the optional cancellation reason.
type CancelCourseRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// ScheduledCourseListQuery maps the listing query string.
type ScheduledCourseListQuery struct {
	CourseID      string `form:"courseId"`
	ClassID       string `form:"classId"`
	ProfessorID   string `form:"professorId"`
	ParticipantID string `form:"participantId"`
	Search        string `form:"search"`
	Status        string `form:"status"`
	Format        string `form:"format"`
}
