package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/cems/core"
	"github.com/trezcool/cems/core/auth"
	"github.com/trezcool/cems/core/dashboard"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp        = errors.New("help provided")
	errNotLoggedIn = errors.New("not logged in: run `cems login -username USERNAME` first")
)

// backend is what the CLI asks of the CEMS API.
type backend interface {
	auth.Backend
	dashboard.Backend
}

type commandLine struct {
	conf    *core.Config
	backend backend
	manager *auth.Manager
	opts    dashboard.Options
	out     io.Writer
}

func newCommandLine(conf *core.Config, api backend, store auth.TokenStore, logger core.Logger, out io.Writer) *commandLine {
	cli := &commandLine{
		conf:    conf,
		backend: api,
		manager: auth.NewManager(api, store, logger, auth.Options{
			AdminPath:         conf.AdminPath,
			BackgroundTimeout: conf.API.BackgroundTimeout,
		}),
		out: out,
	}
	cli.opts = dashboard.Options{PageSize: conf.PageSize, NotificationDuration: conf.ToastDuration}
	return cli
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -username USERNAME                       - sign in (the password is prompted)")
	fmt.Fprintln(cli.out, "  signup -username U -email E [-name N]          - register a student account")
	fmt.Fprintln(cli.out, "  logout                                         - forget the stored credentials")
	fmt.Fprintln(cli.out, "  whoami                                         - show the signed in user")
	fmt.Fprintln(cli.out, "  password-reset -email EMAIL                    - request a password reset link")
	fmt.Fprintln(cli.out, "  password-reset-confirm -uid UID -token TOKEN   - choose a new password")
	fmt.Fprintln(cli.out, "  student [-upcoming-page N] [-marks-page N] [-history-page N]")
	fmt.Fprintln(cli.out, "  teacher [-classes-page N] [-class ID] [-class-exams-page N] [-exams-page N]")
	fmt.Fprintln(cli.out, "  assignments                                    - list the assignments exams can be created for")
	fmt.Fprintln(cli.out, "  exam-create -assignment ID -title TITLE        - create today's exam")
	fmt.Fprintln(cli.out, "  exam-marks -exam ID [-set ENROLLMENT=MARK,...] - show or save an exam's marks")
	fmt.Fprintln(cli.out, "  route -path PATH                               - show where a page visit would lead")
}

func (cli *commandLine) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	switch args[1] {
	case "login":
		cmd := cli.flagSet("login")
		uname := cmd.String("username", "", "The username. The password will be prompted next.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if strings.TrimSpace(*uname) == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.login(ctx, strings.TrimSpace(*uname), pwd)

	case "signup":
		cmd := cli.flagSet("signup")
		uname := cmd.String("username", "", "The username.")
		email := cmd.String("email", "", "The email address.")
		name := cmd.String("name", "", "The full name.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *uname == "" || *email == "" {
			cmd.Usage()
			return errHelp
		}
		pwd1, pwd2, err := cli.promptNewPassword()
		if err != nil {
			return err
		}
		return cli.signup(ctx, auth.StudentRegistration{
			Username:  core.CleanString(*uname),
			FullName:  core.CleanString(*name),
			Email:     core.CleanString(*email, true /* lower */),
			Password1: pwd1,
			Password2: pwd2,
		})

	case "logout":
		cli.manager.Logout()
		fmt.Fprintln(cli.out, "Logged out.")
		return nil

	case "whoami":
		return cli.whoami(ctx)

	case "password-reset":
		cmd := cli.flagSet("password-reset")
		email := cmd.String("email", "", "The account's email address.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *email == "" {
			cmd.Usage()
			return errHelp
		}
		if err := cli.manager.RequestPasswordReset(ctx, core.CleanString(*email, true)); err != nil {
			return err
		}
		fmt.Fprintln(cli.out, "If an account exists for that email, a reset link is on its way.")
		return nil

	case "password-reset-confirm":
		cmd := cli.flagSet("password-reset-confirm")
		uid := cmd.String("uid", "", "The uid of the reset link.")
		token := cmd.String("token", "", "The token of the reset link.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *uid == "" || *token == "" {
			cmd.Usage()
			return errHelp
		}
		pwd1, pwd2, err := cli.promptNewPassword()
		if err != nil {
			return err
		}
		err = cli.manager.ConfirmPasswordReset(ctx, auth.PasswordResetConfirm{UID: *uid, Token: *token, NewPassword1: pwd1, NewPassword2: pwd2})
		if err != nil {
			return err
		}
		fmt.Fprintln(cli.out, "Your password has been set. You may go ahead and log in now.")
		return nil

	case "student":
		cmd := cli.flagSet("student")
		upcoming := cmd.Int("upcoming-page", 1, "Page of upcoming exams.")
		marks := cmd.Int("marks-page", 1, "Page of marks.")
		history := cmd.Int("history-page", 1, "Page of enrollment history.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.student(ctx, *upcoming, *marks, *history)

	case "teacher":
		cmd := cli.flagSet("teacher")
		var q teacherQuery
		cmd.IntVar(&q.classesPage, "classes-page", 0, "Page of classes.")
		cmd.IntVar(&q.classID, "class", 0, "Class offering whose exams to list.")
		cmd.IntVar(&q.classExamsPage, "class-exams-page", 0, "Page of the selected class's exams.")
		cmd.IntVar(&q.examsPage, "exams-page", 0, "Page of all exams.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.teacher(ctx, q)

	case "assignments":
		return cli.assignments(ctx)

	case "exam-create":
		cmd := cli.flagSet("exam-create")
		assignment := cmd.Int("assignment", 0, "The assignment the exam belongs to.")
		title := cmd.String("title", "", "The exam title.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *assignment == 0 || strings.TrimSpace(*title) == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.createExam(ctx, *assignment, *title)

	case "exam-marks":
		cmd := cli.flagSet("exam-marks")
		exam := cmd.Int("exam", 0, "The exam id.")
		set := cmd.String("set", "", "Marks to save, as ENROLLMENT=MARK pairs separated by commas. An empty MARK clears it.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *exam == 0 {
			cmd.Usage()
			return errHelp
		}
		marks, err := parseMarks(*set)
		if err != nil {
			return err
		}
		return cli.examMarks(ctx, *exam, marks)

	case "route":
		cmd := cli.flagSet("route")
		path := cmd.String("path", "", "The page path, e.g. /dashboard/teacher.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *path == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.route(ctx, *path)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword(prompt string) (string, error) {
	fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) promptNewPassword() (string, string, error) {
	pwd1, err := cli.promptPassword("New password:")
	if err != nil {
		return "", "", err
	}
	pwd2, err := cli.promptPassword("Confirm password:")
	if err != nil {
		return "", "", err
	}
	if pwd1 == "" {
		return "", "", errHelp
	}
	return pwd1, pwd2, nil
}

func (cli *commandLine) printJSON(v interface{}) error {
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// notifier prints notifications as they are raised.
func (cli *commandLine) notifier() dashboard.Notifier {
	return dashboard.NotifierFunc(func(n dashboard.Notification) {
		fmt.Fprintf(cli.out, "[%s] %s: %s\n", n.Variant, n.Title, n.Description)
	})
}

// parseMarks reads "31=78,32=,33=91.5"; an empty mark clears it.
func parseMarks(raw string) (map[int]*float64, error) {
	marks := make(map[int]*float64)
	if strings.TrimSpace(raw) == "" {
		return marks, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			return nil, errors.Errorf("%q: want ENROLLMENT=MARK", pair)
		}
		enrollment, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, errors.Errorf("%q: enrollment must be a number", pair)
		}
		if strings.TrimSpace(parts[1]) == "" {
			marks[enrollment] = nil
			continue
		}
		mark, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, errors.Errorf("%q: mark must be a number", pair)
		}
		marks[enrollment] = &mark
	}
	return marks, nil
}

func expiryText(token string) string {
	exp, err := auth.TokenExpiry(token)
	if err != nil {
		return "unknown"
	}
	return exp.Local().Format(time.RFC1123)
}
