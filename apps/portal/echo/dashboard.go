package echoportal

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cems/core"
	"github.com/trezcool/cems/core/auth"
	"github.com/trezcool/cems/core/dashboard"
)

func registerDashboardPages(app *echo.Echo) {
	protected := guardMiddleware(auth.PolicyProtected)

	app.GET(auth.PathStudentDashboard, studentDashboard, protected)
	app.GET(auth.PathTeacherDashboard, teacherDashboard, protected)
	app.GET(auth.PathTeacherExamCreate, examCreateForm, protected)
	app.POST(auth.PathTeacherExamCreate, examCreate, protected)
	app.GET(auth.PathTeacherExamManage, examManage, protected)
	app.POST(auth.PathTeacherExamManage, examSaveMarks, protected)
	app.GET(auth.PathAdminDashboard, adminDashboard, protected)
}

// Load failures are part of the controller state and render with the page.

func studentDashboard(ctx echo.Context) error {
	sess, err := sessionFrom(ctx)
	if err != nil {
		return err
	}
	_ = sess.student.LoadPages(ctx.Request().Context(),
		queryInt(ctx, "upcoming_page"),
		queryInt(ctx, "marks_page"),
		queryInt(ctx, "history_page"),
	)
	return render(ctx, sess.student.State())
}

func teacherDashboard(ctx echo.Context) error {
	sess, err := sessionFrom(ctx)
	if err != nil {
		return err
	}
	c, reqCtx := sess.teacher, ctx.Request().Context()

	classesPage := queryInt(ctx, "classes_page")
	classID := queryInt(ctx, "class_id")
	classExamsPage := queryInt(ctx, "class_exams_page")
	examsPage := queryInt(ctx, "exams_page")

	st := c.State()
	loaded := st.Summary != nil || st.SummaryError != ""
	if !loaded || classesPage+classID+classExamsPage+examsPage == 0 {
		_ = c.Load(reqCtx)
	}
	if classesPage > 0 {
		_ = c.ChangeClassesPage(reqCtx, classesPage)
	}
	if classID > 0 {
		_ = c.SelectClass(reqCtx, classID)
	}
	if classExamsPage > 0 {
		_ = c.ChangeClassExamsPage(reqCtx, classExamsPage)
	}
	if examsPage > 0 {
		_ = c.ChangeExamsPage(reqCtx, examsPage)
	}
	return render(ctx, c.State())
}

func examCreateForm(ctx echo.Context) error {
	sess, err := sessionFrom(ctx)
	if err != nil {
		return err
	}
	_ = sess.examCreate.Load(ctx.Request().Context())
	return render(ctx, sess.examCreate.State())
}

func examCreate(ctx echo.Context) error {
	sess, err := sessionFrom(ctx)
	if err != nil {
		return err
	}
	var form dashboard.ExamForm
	if err = ctx.Bind(&form); err != nil {
		return err
	}
	exam, err := sess.examCreate.Create(ctx.Request().Context(), form)
	if err != nil {
		return errors.Wrap(asFormError(err), "creating exam")
	}
	return navigate(ctx, dashboard.ManagePath(exam.ID), false)
}

func examID(ctx echo.Context) (int, error) {
	raw := ctx.QueryParam("examId")
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errBadExamID
	}
	return id, nil
}

func examManage(ctx echo.Context) error {
	sess, err := sessionFrom(ctx)
	if err != nil {
		return err
	}
	id, err := examID(ctx)
	if err != nil {
		return err
	}
	_ = sess.examManage.Load(ctx.Request().Context(), id)
	return render(ctx, sess.examManage.State())
}

func examSaveMarks(ctx echo.Context) error {
	sess, err := sessionFrom(ctx)
	if err != nil {
		return err
	}
	id, err := examID(ctx)
	if err != nil {
		return err
	}
	if id <= 0 {
		return asFormError(dashboard.ErrNoExam)
	}
	var form marksForm
	if err = ctx.Bind(&form); err != nil {
		return err
	}

	c, reqCtx := sess.examManage, ctx.Request().Context()
	if st := c.State(); st.ExamID != id || st.Detail == nil {
		if err = c.Load(reqCtx, id); err != nil {
			return errors.Wrap(err, "loading exam")
		}
	}
	if err = c.SetMarks(form.edits()); err != nil {
		if _, ok := errors.Cause(err).(*core.ValidationError); ok {
			return err
		}
		if fErr := asFormError(err); fErr != err {
			return fErr
		}
		return core.NewValidationError(err)
	}
	if _, err = c.Save(reqCtx); err != nil {
		return errors.Wrap(asFormError(err), "saving marks")
	}
	return navigate(ctx, dashboard.ManagePath(id), false)
}

func adminDashboard(ctx echo.Context) error {
	sess, err := sessionFrom(ctx)
	if err != nil {
		return err
	}
	return render(ctx, echo.Map{
		"message":   "Administration happens in the admin portal.",
		"adminPath": sess.manager.Routes().AdminPath(),
	})
}
