package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/enrollhub/enrollhub/internal/api"
	"github.com/enrollhub/enrollhub/internal/catalog"
	"github.com/enrollhub/enrollhub/internal/enrollment"
	"github.com/enrollhub/enrollhub/internal/grading"
	"github.com/enrollhub/enrollhub/internal/identity"
	"github.com/enrollhub/enrollhub/internal/view"
)

// userError carries the message shown for a failed command.
type userError struct {
	msg string
	err error
}

func (e *userError) Error() string { return e.msg }

func (e *userError) Unwrap() error { return e.err }

func describe(err error, action api.Action) error {
	msg := api.UserMessage(err, action)
	switch {
	case errors.Is(err, catalog.ErrCourseFull):
		msg = "Course is full"
	case errors.Is(err, catalog.ErrUnknownCourse):
		msg = "Course not found"
	case errors.Is(err, catalog.ErrNotEnrolled):
		msg = "Not enrolled in this course"
	}
	return &userError{msg: msg, err: err}
}

func (cli *commandLine) whoami(s *session) error {
	fmt.Fprintf(cli.out, "%s (%s) id=%d\n", s.id.Username, s.id.Role.Label(), s.id.ID)
	return nil
}

func (cli *commandLine) courses(ctx context.Context, s *session) error {
	switch s.id.Role {
	case identity.RoleStudent:
		store := catalog.NewStudentStore(s.conn, cli.logger)
		if err := store.Load(ctx); err != nil {
			return describe(err, api.ActionFetchCourses)
		}
		tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCOURSE\tTEACHER\tTIME\tSEATS\tGRADE\tSTATUS")
		for _, c := range store.All() {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d/%d\t%s\t%s\n", c.ID, c.Name, c.TeacherName, c.Timeslot,
				c.EnrolledCount, c.Capacity, view.FormatGrade(c.Grade), courseStatus(c))
		}
		return tw.Flush()
	case identity.RoleTeacher:
		store := catalog.NewTeacherStore(s.conn, cli.logger)
		if err := store.Load(ctx); err != nil {
			return describe(err, api.ActionFetchCourses)
		}
		tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCOURSE\tTIME\tSEATS")
		for _, c := range store.Courses() {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d/%d\n", c.ID, c.Name, c.Timeslot, c.EnrolledCount, c.Capacity)
		}
		return tw.Flush()
	default:
		return errRole
	}
}

func courseStatus(c api.Course) string {
	switch {
	case c.Enrolled:
		return "enrolled"
	case c.EnrolledCount >= c.Capacity:
		return "full"
	default:
		return "available"
	}
}

func (cli *commandLine) studentActions(ctx context.Context, s *session) (*catalog.StudentStore, *enrollment.Handler, error) {
	if s.id.Role != identity.RoleStudent {
		return nil, nil, errRole
	}
	store := catalog.NewStudentStore(s.conn, cli.logger)
	if err := store.Load(ctx); err != nil {
		return nil, nil, describe(err, api.ActionFetchCourses)
	}
	return store, enrollment.NewHandler(s.conn, store, cli.logger), nil
}

func (cli *commandLine) enroll(ctx context.Context, s *session, courseID int64) error {
	store, actions, err := cli.studentActions(ctx, s)
	if err != nil {
		return err
	}
	if _, err := actions.Enroll(ctx, courseID); err != nil {
		return describe(err, api.ActionEnroll)
	}
	c, _ := store.Course(courseID)
	fmt.Fprintf(cli.out, "Enrolled in %s (%d/%d)\n", c.Name, c.EnrolledCount, c.Capacity)
	return nil
}

func (cli *commandLine) drop(ctx context.Context, s *session, courseID int64) error {
	store, actions, err := cli.studentActions(ctx, s)
	if err != nil {
		return err
	}
	if _, err := actions.Drop(ctx, courseID); err != nil {
		return describe(err, api.ActionDrop)
	}
	c, _ := store.Course(courseID)
	fmt.Fprintf(cli.out, "Dropped %s (%d/%d)\n", c.Name, c.EnrolledCount, c.Capacity)
	return nil
}

func (cli *commandLine) loadRoster(ctx context.Context, s *session, courseID int64) (*catalog.Roster, error) {
	if s.id.Role != identity.RoleTeacher {
		return nil, errRole
	}
	roster, err := catalog.NewTeacherStore(s.conn, cli.logger).LoadRoster(ctx, courseID)
	if err != nil {
		return nil, describe(err, api.ActionCourseDetails)
	}
	return roster, nil
}

func (cli *commandLine) roster(ctx context.Context, s *session, courseID int64) error {
	roster, err := cli.loadRoster(ctx, s, courseID)
	if err != nil {
		return err
	}
	heading := "Course Details"
	if c, ok := roster.Course(); ok {
		heading = fmt.Sprintf("%s (%d/%d)", c.Name, c.EnrolledCount, c.Capacity)
	}
	fmt.Fprintln(cli.out, heading)
	entries := roster.Entries()
	if len(entries) == 0 {
		fmt.Fprintln(cli.out, "No students enrolled in this course.")
		return nil
	}
	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTUDENT\tGRADE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", e.ID, e.Username, view.FormatGrade(e.Grade))
	}
	return tw.Flush()
}

func (cli *commandLine) grade(ctx context.Context, s *session, courseID, studentID int64, value string) error {
	roster, err := cli.loadRoster(ctx, s, courseID)
	if err != nil {
		return err
	}
	if err := grading.NewEditor(s.conn, cli.logger).UpdateGrade(ctx, roster, studentID, courseID, value); err != nil {
		return describe(err, api.ActionUpdateGrade)
	}
	if e, ok := roster.Entry(studentID); ok {
		fmt.Fprintf(cli.out, "Grade updated: %s %s\n", e.Username, view.FormatGrade(e.Grade))
		return nil
	}
	fmt.Fprintln(cli.out, "Grade updated")
	return nil
}
