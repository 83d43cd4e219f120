package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/cems/core/auth"
	"github.com/trezcool/cems/core/dashboard"
)

// resume resolves the stored session and checks it may visit path.
func (cli *commandLine) resume(ctx context.Context, path string) (*auth.Identity, error) {
	if _, ok := cli.manager.Credentials(); !ok {
		return nil, errNotLoggedIn
	}
	if err := cli.manager.RefreshIdentity(ctx); err != nil {
		return nil, errors.Wrap(err, "resuming session")
	}
	id := cli.manager.Identity()
	if id == nil {
		return nil, errNotLoggedIn
	}
	if path != "" {
		if decision := cli.manager.Guard(auth.PolicyProtected, path); decision.Outcome != auth.OutcomeRender {
			return nil, errors.Errorf("%s (%s) may not open %s", id.Username, id.Role(), path)
		}
	}
	return id, nil
}

// settle waits for the identity refresh a sign in starts.
func (cli *commandLine) settle(ctx context.Context) error {
	if bg := cli.manager.Background(); bg != nil {
		return bg.Wait(ctx)
	}
	return nil
}

func (cli *commandLine) login(ctx context.Context, username, password string) error {
	if _, err := cli.manager.Login(ctx, username, password); err != nil {
		return err
	}
	if err := cli.settle(ctx); err != nil {
		return errors.Wrap(err, "fetching profile")
	}
	id := cli.manager.Identity()
	if id == nil {
		return errNotLoggedIn
	}
	fmt.Fprintf(cli.out, "Logged in as %s (%s). Home: %s\n", id.Username, id.Role(), cli.manager.PostAuthDestination(""))
	return nil
}

func (cli *commandLine) signup(ctx context.Context, req auth.StudentRegistration) error {
	id, err := cli.manager.RegisterStudent(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Welcome %s! Your student account is ready.\n", id.Username)
	return nil
}

func (cli *commandLine) whoami(ctx context.Context) error {
	id, err := cli.resume(ctx, "")
	if err != nil {
		return err
	}
	pair, _ := cli.manager.Credentials()
	return cli.printJSON(struct {
		*auth.Identity
		Role          auth.Role `json:"role"`
		DashboardPath string    `json:"dashboard_path"`
		AccessExpires string    `json:"access_expires"`
	}{
		Identity:      id,
		Role:          id.Role(),
		DashboardPath: cli.manager.DashboardPath(id),
		AccessExpires: expiryText(pair.Access),
	})
}

func (cli *commandLine) student(ctx context.Context, upcoming, marks, history int) error {
	if _, err := cli.resume(ctx, auth.PathStudentDashboard); err != nil {
		return err
	}
	ctrl := dashboard.NewStudentController(cli.backend, cli.manager, cli.notifier(), cli.opts)
	if err := ctrl.LoadPages(ctx, upcoming, marks, history); err != nil {
		return err
	}
	return cli.printJSON(ctrl.State())
}

type teacherQuery struct {
	classesPage    int
	classID        int
	classExamsPage int
	examsPage      int
}

func (cli *commandLine) teacher(ctx context.Context, q teacherQuery) error {
	if _, err := cli.resume(ctx, auth.PathTeacherDashboard); err != nil {
		return err
	}
	ctrl := dashboard.NewTeacherController(cli.backend, cli.manager, cli.notifier(), cli.opts)
	if err := ctrl.Load(ctx); err != nil {
		return err
	}
	if err := ctrl.ChangeClassesPage(ctx, q.classesPage); err != nil {
		return err
	}
	if q.classID > 0 {
		if err := ctrl.SelectClass(ctx, q.classID); err != nil {
			return err
		}
	}
	if err := ctrl.ChangeClassExamsPage(ctx, q.classExamsPage); err != nil {
		return err
	}
	if err := ctrl.ChangeExamsPage(ctx, q.examsPage); err != nil {
		return err
	}
	return cli.printJSON(ctrl.State())
}

func (cli *commandLine) assignments(ctx context.Context) error {
	if _, err := cli.resume(ctx, auth.PathTeacherExamCreate); err != nil {
		return err
	}
	ctrl := dashboard.NewExamCreateController(cli.backend, cli.manager, cli.notifier(), cli.opts)
	if err := ctrl.Load(ctx); err != nil {
		return err
	}
	for _, a := range ctrl.State().Assignments {
		fmt.Fprintf(cli.out, "%d\t%s\n", a.ID, a.Label())
	}
	return nil
}

func (cli *commandLine) createExam(ctx context.Context, assignmentID int, title string) error {
	if _, err := cli.resume(ctx, auth.PathTeacherExamCreate); err != nil {
		return err
	}
	ctrl := dashboard.NewExamCreateController(cli.backend, cli.manager, cli.notifier(), cli.opts)
	form := ctrl.DefaultForm()
	form.AssignmentID = assignmentID
	form.Title = title
	exam, err := ctrl.Create(ctx, form)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Manage it with: cems exam-marks -exam %d (%s)\n", exam.ID, dashboard.ManagePath(exam.ID))
	return nil
}

// examMarks shows an exam's roster, saving marks first when any are given.
func (cli *commandLine) examMarks(ctx context.Context, examID int, marks map[int]*float64) error {
	if _, err := cli.resume(ctx, auth.PathTeacherExamManage); err != nil {
		return err
	}
	ctrl := dashboard.NewExamManageController(cli.backend, cli.manager, cli.notifier(), cli.opts)
	if err := ctrl.Load(ctx, examID); err != nil {
		return err
	}
	if len(marks) > 0 {
		if err := ctrl.SetMarks(marks); err != nil {
			return err
		}
		if _, err := ctrl.Save(ctx); err != nil {
			return err
		}
		if err := ctrl.Load(ctx, examID); err != nil {
			return err
		}
	}
	return cli.printJSON(ctrl.State())
}

// route prints what a visit to path would do for the stored session.
func (cli *commandLine) route(ctx context.Context, path string) error {
	if _, ok := cli.manager.Credentials(); ok {
		if err := cli.manager.RefreshIdentity(ctx); err != nil {
			return errors.Wrap(err, "resuming session")
		}
	}
	policy := auth.PolicyPublic
	switch {
	case cli.manager.Routes().IsProtected(path):
		policy = auth.PolicyProtected
	case path == auth.PathLogin || path == auth.PathSignup:
		policy = auth.PolicyPublicOnly
	}
	decision := cli.manager.Guard(policy, path)
	return cli.printJSON(struct {
		Path     string `json:"path"`
		Policy   string `json:"policy"`
		Outcome  string `json:"outcome"`
		Location string `json:"location,omitempty"`
		External bool   `json:"external,omitempty"`
		From     string `json:"from,omitempty"`
	}{
		Path:     path,
		Policy:   policy.String(),
		Outcome:  decision.Outcome.String(),
		Location: decision.Location,
		External: decision.External,
		From:     decision.From,
	})
}
