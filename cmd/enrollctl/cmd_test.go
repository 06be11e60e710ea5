package main

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollhub/enrollhub/internal/api/apitest"
)

func setup(t *testing.T) (*commandLine, *apitest.Server, *bytes.Buffer) {
	t.Helper()
	srv := apitest.New(t)
	out := &bytes.Buffer{}
	return &commandLine{
		client: srv.Client(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		out:    out,
	}, srv, out
}

func withPassword(t *testing.T, pwd string) {
	t.Helper()
	prev := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = prev })
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
	wantOut    []string
}

func runCases(t *testing.T, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli, _, out := setup(t)
			withPassword(t, tt.pwd)

			err := cli.run(append([]string{"enrollctl"}, tt.args...))
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				require.NoError(t, err)
			}
			for _, want := range tt.wantOut {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	runCases(t, []cliTest{
		{name: "no command", wantErr: errHelp, wantOut: []string{"Usage:"}},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no username", args: []string{"whoami"}, pwd: "x", wantErr: errHelp},
		{name: "unknown flag", args: []string{"whoami", "-lol"}, wantErr: errHelp},
		{name: "enroll without course", args: []string{"enroll", "-username", "student1"}, pwd: "x", wantErr: errHelp},
		{name: "grade without value", args: []string{"grade", "-username", "teacher1", "-course", "1", "-student", "4"}, pwd: "x", wantErr: errHelp},
		{name: "empty password", args: []string{"whoami", "-username", "student1"}, wantErr: errHelp},
	})
}

func Test_commandLine_whoami(t *testing.T) {
	runCases(t, []cliTest{
		{name: "student", args: []string{"whoami", "-username", "student1"}, pwd: apitest.StudentPassword, wantOut: []string{"student1 (Student) id=4"}},
		{name: "teacher", args: []string{"whoami", "-username", "teacher2"}, pwd: apitest.TeacherPassword, wantOut: []string{"teacher2 (Teacher) id=3"}},
		{name: "bad password", args: []string{"whoami", "-username", "student1"}, pwd: "nope", wantErrStr: "Invalid username or password"},
	})
}

func Test_commandLine_courses(t *testing.T) {
	runCases(t, []cliTest{
		{name: "student", args: []string{"courses", "-username", "student1"}, pwd: apitest.StudentPassword,
			wantOut: []string{"Introduction to Python", "85.5", "enrolled", "Data Science Fundamentals", "Not graded", "available"}},
		{name: "teacher", args: []string{"courses", "-username", "teacher2"}, pwd: apitest.TeacherPassword,
			wantOut: []string{"Data Science Fundamentals", "1/20"}},
		{name: "admin", args: []string{"courses", "-username", "admin"}, pwd: apitest.AdminPassword, wantErr: errRole},
	})
}

func Test_commandLine_enrollAndDrop(t *testing.T) {
	cli, srv, out := setup(t)
	withPassword(t, apitest.StudentPassword)

	require.NoError(t, cli.run([]string{"enrollctl", "enroll", "-username", "student3", "-course", "1"}))
	assert.Contains(t, out.String(), "Enrolled in Introduction to Python (3/30)")
	assert.Equal(t, 3, srv.EnrolledCount(apitest.PythonCourseID))

	require.NoError(t, cli.run([]string{"enrollctl", "drop", "-username", "student3", "-course", "1"}))
	assert.Contains(t, out.String(), "Dropped Introduction to Python (2/30)")
	assert.Equal(t, 2, srv.EnrolledCount(apitest.PythonCourseID))

	err := cli.run([]string{"enrollctl", "drop", "-username", "student3", "-course", "1"})
	require.Error(t, err)
	assert.Equal(t, "Not enrolled in this course", err.Error())
	assert.Equal(t, 1, srv.Calls("/api/student/drop"))

	// every run logs out again
	assert.Equal(t, 3, srv.Calls("/api/logout"))
}

func Test_commandLine_enrollRejected(t *testing.T) {
	cli, srv, _ := setup(t)
	withPassword(t, apitest.StudentPassword)
	srv.AddCourse(apitest.Course{ID: 4, Name: "Seminar", Capacity: 1, TeacherID: apitest.Teacher2ID})
	srv.Enroll(apitest.Student2ID, 4)

	err := cli.run([]string{"enrollctl", "enroll", "-username", "student3", "-course", "4"})
	require.Error(t, err)
	assert.Equal(t, "Course is full", err.Error())
	assert.Zero(t, srv.Calls("/api/student/enroll"))

	err = cli.run([]string{"enrollctl", "enroll", "-username", "student3", "-course", "99"})
	require.Error(t, err)
	assert.Equal(t, "Course not found", err.Error())

	srv.FailNext("/api/student/enroll", apitest.Failure{Status: http.StatusBadRequest})
	err = cli.run([]string{"enrollctl", "enroll", "-username", "student3", "-course", "1"})
	require.Error(t, err)
	assert.Equal(t, "Failed to enroll in course", err.Error())

	withPassword(t, apitest.TeacherPassword)
	err = cli.run([]string{"enrollctl", "enroll", "-username", "teacher1", "-course", "1"})
	assert.ErrorIs(t, err, errRole)
	var ue *userError
	assert.False(t, errors.As(err, &ue))
	// only the injected failure reached the server
	assert.Equal(t, 1, srv.Calls("/api/student/enroll"))
}

func Test_commandLine_roster(t *testing.T) {
	runCases(t, []cliTest{
		{name: "own course", args: []string{"roster", "-username", "teacher1", "-course", "1"}, pwd: apitest.TeacherPassword,
			wantOut: []string{"Introduction to Python (2/30)", "student1", "85.5", "student2", "78.5"}},
		{name: "foreign course", args: []string{"roster", "-username", "teacher1", "-course", "3"}, pwd: apitest.TeacherPassword,
			wantErrStr: "Permission denied"},
		{name: "student", args: []string{"roster", "-username", "student1", "-course", "1"}, pwd: apitest.StudentPassword, wantErr: errRole},
	})
}

func Test_commandLine_grade(t *testing.T) {
	cli, srv, out := setup(t)
	withPassword(t, apitest.TeacherPassword)
	srv.GradeRange = true

	require.NoError(t, cli.run([]string{"enrollctl", "grade", "-username", "teacher1", "-course", "1", "-student", "4", "-value", "91.5"}))
	assert.Contains(t, out.String(), "Grade updated: student1 91.5")
	grade, _ := srv.Grade(apitest.Student1ID, apitest.PythonCourseID)
	assert.Equal(t, 91.5, grade)

	err := cli.run([]string{"enrollctl", "grade", "-username", "teacher1", "-course", "1", "-student", "4", "-value", "101"})
	require.Error(t, err)
	assert.Equal(t, "Grade must be between 0 and 100", err.Error())
	grade, _ = srv.Grade(apitest.Student1ID, apitest.PythonCourseID)
	assert.Equal(t, 91.5, grade)
}
