package echoportal

import (
	"strconv"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/cems/core"
	"github.com/trezcool/cems/core/auth"
)

// appValidator plugs the translated validator into echo.Context.Validate.
type appValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func newAppValidator() *appValidator {
	validate, translator := core.NewValidator()
	return &appValidator{validate: validate, translator: translator}
}

func (v *appValidator) Validate(i interface{}) error {
	return core.TranslateValidationErrors(v.validate.Struct(i), v.translator)
}

type (
	loginForm struct {
		Username string `json:"username" form:"username" validate:"required,notblank"`
		Password string `json:"password" form:"password" validate:"required"`
		From     string `json:"from" form:"from"`
	}

	signupForm struct {
		Username  string `json:"username" form:"username" validate:"required,notblank"`
		FullName  string `json:"full_name" form:"full_name"`
		Email     string `json:"email" form:"email" validate:"required,email"`
		Password1 string `json:"password1" form:"password1" validate:"required,min=8"`
		Password2 string `json:"password2" form:"password2" validate:"required,eqfield=Password1"`
		From      string `json:"from" form:"from"`
	}

	passwordResetForm struct {
		Email string `json:"email" form:"email" validate:"required,email"`
	}

	passwordResetConfirmForm struct {
		UID          string `json:"uid" form:"uid" validate:"required,notblank"`
		Token        string `json:"token" form:"token" validate:"required,notblank"`
		NewPassword1 string `json:"new_password1" form:"new_password1" validate:"required,min=8"`
		NewPassword2 string `json:"new_password2" form:"new_password2" validate:"required,eqfield=NewPassword1"`
		From         string `json:"from" form:"from"`
	}

	markInput struct {
		StudentEnrollmentID int      `json:"student_enrollment_id"`
		MarksObtained       *float64 `json:"marks_obtained"`
	}

	marksForm struct {
		Marks []markInput `json:"marks"`
	}
)

// edits keys the submitted marks by enrollment; a repeated enrollment keeps its last mark.
func (f marksForm) edits() map[int]*float64 {
	edits := make(map[int]*float64, len(f.Marks))
	for _, m := range f.Marks {
		edits[m.StudentEnrollmentID] = m.MarksObtained
	}
	return edits
}

// cleaner is a form that normalizes its fields before validation.
type cleaner interface {
	clean()
}

func (f *loginForm) clean() {
	f.Username = core.CleanString(f.Username)
}

func (f *signupForm) clean() {
	f.Username = core.CleanString(f.Username)
	f.FullName = core.CleanString(f.FullName)
	f.Email = core.CleanString(f.Email, true /* lower */)
}

func (f *passwordResetForm) clean() {
	f.Email = core.CleanString(f.Email, true)
}

func (f *passwordResetConfirmForm) clean() {
	f.UID = core.CleanString(f.UID)
	f.Token = core.CleanString(f.Token)
}

func (f signupForm) registration() auth.StudentRegistration {
	return auth.StudentRegistration{
		Username:  f.Username,
		FullName:  f.FullName,
		Email:     f.Email,
		Password1: f.Password1,
		Password2: f.Password2,
	}
}

// bindForm binds the request into form, cleans it and validates it.
func bindForm(ctx echo.Context, form interface{}) error {
	if err := ctx.Bind(form); err != nil {
		return err
	}
	if f, ok := form.(cleaner); ok {
		f.clean()
	}
	return ctx.Validate(form)
}

// queryInt reads a positive integer query parameter; anything else is 0.
func queryInt(ctx echo.Context, name string) int {
	n, err := strconv.Atoi(ctx.QueryParam(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// localPath keeps a post-auth destination on this site.
func localPath(from string) string {
	from = strings.TrimSpace(from)
	if !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") || strings.Contains(from, `\`) {
		return ""
	}
	return from
}

// fromParam reads the "from" destination of a form, falling back to the query string.
func fromParam(ctx echo.Context, formValue string) string {
	if from := localPath(formValue); from != "" {
		return from
	}
	return localPath(ctx.QueryParam("from"))
}
