package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/enrollhub/enrollhub/internal/api"
	"github.com/enrollhub/enrollhub/internal/identity"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
	errRole = errors.New("command not available for this role")

	validate = validator.New()
)

type commandLine struct {
	client *api.Client
	logger *slog.Logger
	out    io.Writer
}

type accountArgs struct {
	Username string `validate:"required,max=80"`
}

type courseArgs struct {
	Username string `validate:"required,max=80"`
	Course   int64  `validate:"required,gt=0"`
}

type gradeArgs struct {
	Username string `validate:"required,max=80"`
	Course   int64  `validate:"required,gt=0"`
	Student  int64  `validate:"required,gt=0"`
	Value    string `validate:"required"`
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  whoami  -username USERNAME                     - show the logged in account")
	fmt.Fprintln(cli.out, "  courses -username USERNAME                     - list courses for a student or teacher")
	fmt.Fprintln(cli.out, "  enroll  -username USERNAME -course ID          - enroll a student in a course")
	fmt.Fprintln(cli.out, "  drop    -username USERNAME -course ID          - drop a course")
	fmt.Fprintln(cli.out, "  roster  -username USERNAME -course ID          - list the students of a course")
	fmt.Fprintln(cli.out, "  grade   -username USERNAME -course ID -student ID -value GRADE - record a grade")
	fmt.Fprintln(cli.out, "The password is prompted after the command is parsed.")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	cmd := flag.NewFlagSet(args[1], flag.ContinueOnError)
	cmd.SetOutput(cli.out)
	username := cmd.String("username", "", "The account to log in as. The password will be prompted next.")
	var (
		course, student int64
		value           string
		target          any
	)
	switch args[1] {
	case "whoami", "courses":
	case "enroll", "drop", "roster":
		cmd.Int64Var(&course, "course", 0, "The course id.")
	case "grade":
		cmd.Int64Var(&course, "course", 0, "The course id.")
		cmd.Int64Var(&student, "student", 0, "The student id.")
		cmd.StringVar(&value, "value", "", "The grade to record.")
	default:
		cli.printUsage()
		return errHelp
	}
	if err := cmd.Parse(args[2:]); err != nil {
		return errHelp
	}

	switch args[1] {
	case "whoami", "courses":
		target = accountArgs{Username: *username}
	case "grade":
		target = gradeArgs{Username: *username, Course: course, Student: student, Value: value}
	default:
		target = courseArgs{Username: *username, Course: course}
	}
	if err := validate.Struct(target); err != nil {
		cmd.Usage()
		return errHelp
	}

	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	fmt.Fprintln(cli.out)
	if err != nil {
		return err
	}
	if len(pwd) == 0 {
		cmd.Usage()
		return errHelp
	}

	ctx := context.Background()
	sess, err := cli.login(ctx, *username, string(pwd))
	if err != nil {
		return err
	}
	defer sess.close(ctx)

	switch args[1] {
	case "whoami":
		return cli.whoami(sess)
	case "courses":
		return cli.courses(ctx, sess)
	case "enroll":
		return cli.enroll(ctx, sess, course)
	case "drop":
		return cli.drop(ctx, sess, course)
	case "roster":
		return cli.roster(ctx, sess, course)
	default:
		return cli.grade(ctx, sess, course, student, value)
	}
}

// session is one logged in connection.
type session struct {
	conn     *api.Conn
	provider *identity.Provider
	id       identity.Identity
	logger   *slog.Logger
}

func (cli *commandLine) login(ctx context.Context, username, password string) (*session, error) {
	conn := cli.client.Connect(nil)
	provider := identity.NewProvider(conn, cli.logger)
	id, err := provider.Authenticate(ctx, username, password)
	if err != nil {
		return nil, describe(err, api.ActionLogin)
	}
	return &session{conn: conn, provider: provider, id: id, logger: cli.logger}, nil
}

func (s *session) close(ctx context.Context) {
	if err := s.provider.Logout(ctx); err != nil {
		s.logger.Warn("logout", slog.Any("error", err))
	}
}
