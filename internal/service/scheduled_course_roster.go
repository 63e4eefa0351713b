package service

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/scholchat/scholchat-api/internal/models"
	appErrors "github.com/scholchat/scholchat-api/pkg/errors"
)

// ResolveParticipants maps the participant ids of a course onto the approved
// roster of its class. Ids without an approved entry are dropped.
func (s *ScheduledCourseService) ResolveParticipants(ctx context.Context, course *models.ScheduledCourse) ([]models.ParticipantView, error) {
	if course == nil || !course.HasClass() || len(course.ParticipantIDs) == 0 {
		return []models.ParticipantView{}, nil
	}

	entries, err := s.access.ListApproved(ctx, *course.ClassID)
	if err != nil {
		return nil, appErrors.Collaborator(err, "load class roster")
	}

	byUser := make(map[string]models.ClassAccess, len(entries))
	for _, entry := range entries {
		if entry.Approved() {
			byUser[entry.UserID] = entry
		}
	}

	views := make([]models.ParticipantView, 0, len(course.ParticipantIDs))
	for _, id := range course.ParticipantIDs {
		entry, ok := byUser[id]
		if !ok {
			s.logger.Debug("participant no longer in roster",
				zap.String("scheduled_course_id", course.ID),
				zap.String("user_id", id),
			)
			continue
		}
		views = append(views, models.ParticipantView{
			ID:          entry.UserID,
			DisplayName: DisplayName(entry),
			Email:       entry.Email,
			RoleTag:     entry.Role,
		})
	}

	sort.SliceStable(views, func(i, j int) bool {
		left, right := strings.ToLower(views[i].DisplayName), strings.ToLower(views[j].DisplayName)
		if left == right {
			return views[i].ID < views[j].ID
		}
		return left < right
	})
	return views, nil
}

// ListAccessibleRoster returns the approved members of a class for selection.
func (s *ScheduledCourseService) ListAccessibleRoster(ctx context.Context, classID string) ([]models.RosterEntry, error) {
	classID = strings.TrimSpace(classID)
	if classID == "" {
		return nil, appErrors.Validation("classId", "classId is required")
	}

	entries, err := s.access.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Collaborator(err, "list class access")
	}

	roster := make([]models.RosterEntry, 0, len(entries))
	for _, entry := range entries {
		if !entry.Approved() {
			continue
		}
		roster = append(roster, models.RosterEntry{ID: entry.UserID, DisplayName: DisplayName(entry)})
	}
	return roster, nil
}

// DisplayName picks the best available label for a roster member.
func DisplayName(entry models.ClassAccess) string {
	parts := make([]string, 0, 2)
	if first := strings.TrimSpace(entry.FirstName); first != "" {
		parts = append(parts, first)
	}
	if last := strings.TrimSpace(entry.LastName); last != "" {
		parts = append(parts, last)
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	if full := strings.TrimSpace(entry.FullName); full != "" {
		return full
	}
	if email := strings.TrimSpace(entry.Email); email != "" {
		local := email
		if at := strings.Index(email, "@"); at >= 0 {
			local = email[:at]
		}
		if local != "" {
			return local
		}
	}
	return "User " + entry.UserID
}

// approvedRosterIDs loads the approved roster straight from the registry.
func (s *ScheduledCourseService) approvedRosterIDs(ctx context.Context, classID string) (map[string]struct{}, error) {
	entries, err := s.access.ListApproved(ctx, classID)
	if err != nil {
		return nil, appErrors.Collaborator(err, "load class roster")
	}
	ids := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.Approved() {
			ids[entry.UserID] = struct{}{}
		}
	}
	return ids, nil
}

func (s *ScheduledCourseService) ensureParticipantsInRoster(ctx context.Context, course models.ScheduledCourse) error {
	if len(course.ParticipantIDs) == 0 {
		return nil
	}
	if !course.HasClass() {
		return appErrors.Validation("participantIds", "participants require a class")
	}
	roster, err := s.approvedRosterIDs(ctx, *course.ClassID)
	if err != nil {
		return err
	}
	for _, id := range course.ParticipantIDs {
		if _, ok := roster[id]; !ok {
			appErr := appErrors.Validation("participantIds", "participant not in class roster")
			appErr.Details = map[string]string{"participantId": id}
			return appErr
		}
	}
	return nil
}
