package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scholchat/scholchat-api/internal/models"
)

func newMigrateCmd(deps Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := deps.Migrate(cmd.Context(), flagLogLevel); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
			return nil
		},
	}
}

func newListCmd(deps Dependencies) *cobra.Command {
	var (
		query  models.ScheduledCourseQuery
		filter models.ScheduledCourseFilter
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled courses by course, class, professor or participant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if query == (models.ScheduledCourseQuery{}) {
				return fmt.Errorf("one of --course, --class, --professor or --participant is required")
			}
			return withLifecycle(cmd, deps, func(ctx context.Context, l Lifecycle) error {
				items, err := l.List(ctx, query, filter)
				if err != nil {
					return fmt.Errorf("list scheduled courses: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No scheduled courses found.")
					return nil
				}
				fmt.Fprintf(out, "%-36s  %-12s  %-17s  %-24s  %s\n", "ID", "STATUS", "PLANNED", "COURSE", "LOCATION")
				for _, item := range items {
					fmt.Fprintf(out, "%-36s  %-12s  %-17s  %-24s  %s\n",
						item.ID,
						item.Status,
						item.PlannedAt.UTC().Format("2006-01-02 15:04"),
						item.CourseTitle,
						item.Location,
					)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&query.CourseID, "course", "", "Course ID")
	cmd.Flags().StringVar(&query.ClassID, "class", "", "Class ID")
	cmd.Flags().StringVar(&query.ProfessorID, "professor", "", "Professor ID")
	cmd.Flags().StringVar(&query.ParticipantID, "participant", "", "Participant ID")
	cmd.Flags().StringVar(&filter.Status, "status", "all", "Status filter")
	cmd.Flags().StringVar(&filter.SearchText, "search", "", "Search in course title, location and class name")
	return cmd
}

type transitionFunc func(ctx context.Context, l Lifecycle, id string) (*models.ScheduledCourse, error)

func newTransitionCmd(deps Dependencies, use, short string, op transitionFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <scheduled_course_id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLifecycle(cmd, deps, func(ctx context.Context, l Lifecycle) error {
				course, err := op(ctx, l, args[0])
				if err != nil {
					return fmt.Errorf("%s %s: %w", use, args[0], err)
				}
				printCourse(cmd, course)
				return nil
			})
		},
	}
}

func newCancelCmd(deps Dependencies) *cobra.Command {
	var reason string
	cmd := newTransitionCmd(deps, "cancel", "Cancel a planned or running course", func(ctx context.Context, l Lifecycle, id string) (*models.ScheduledCourse, error) {
		return l.Cancel(ctx, id, reason)
	})
	cmd.Flags().StringVar(&reason, "reason", "", "Reason appended to the description")
	return cmd
}

func newRosterCmd(deps Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "roster <class_id>",
		Short: "List the approved members of a class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLifecycle(cmd, deps, func(ctx context.Context, l Lifecycle) error {
				entries, err := l.ListAccessibleRoster(ctx, args[0])
				if err != nil {
					return fmt.Errorf("roster %s: %w", args[0], err)
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No approved members.")
					return nil
				}
				for _, entry := range entries {
					fmt.Fprintf(out, "%-36s  %s\n", entry.ID, entry.DisplayName)
				}
				return nil
			})
		},
	}
}

func printCourse(cmd *cobra.Command, course *models.ScheduledCourse) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scheduled course %s: %s\n", course.ID, course.Status)
	if course.ActualStartAt != nil {
		fmt.Fprintf(out, "  Started: %s\n", course.ActualStartAt.UTC().Format("2006-01-02 15:04"))
	}
	if course.ActualEndAt != nil {
		fmt.Fprintf(out, "  Ended:   %s\n", course.ActualEndAt.UTC().Format("2006-01-02 15:04"))
	}
	if course.CancellationReason != nil {
		fmt.Fprintf(out, "  Reason:  %s\n", *course.CancellationReason)
	}
}
