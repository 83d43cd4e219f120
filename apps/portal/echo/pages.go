package echoportal

import (
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cems/core"
	"github.com/trezcool/cems/core/auth"
)

// Sample values of the password reset email preview.
const (
	previewUID      = "user-2048"
	previewToken    = "reset-token-123"
	previewUsername = "amira.k"
)

type authPages struct {
	conf *core.Config
}

func registerAuthPages(app *echo.Echo, conf *core.Config) {
	p := &authPages{conf: conf}
	public := guardMiddleware(auth.PolicyPublic)
	publicOnly := guardMiddleware(auth.PolicyPublicOnly)

	app.GET(auth.PathHome, p.home, public)
	app.GET(auth.PathLogin, p.loginForm, publicOnly)
	app.POST(auth.PathLogin, p.login, publicOnly)
	app.GET(auth.PathSignup, p.signupForm, publicOnly)
	app.POST(auth.PathSignup, p.signup, publicOnly)
	app.POST(auth.PathLogout, p.logout, public)

	app.GET(auth.PathPasswordReset, p.passwordResetForm, public)
	app.POST(auth.PathPasswordReset, p.passwordReset, public)
	app.GET(auth.PathPasswordResetDone, p.passwordResetDone, public)
	app.GET(auth.PathPasswordResetComplete, p.passwordResetComplete, public)
	app.GET(auth.PathPasswordResetEmail, p.passwordResetEmail, public)

	confirmLink := auth.PathPasswordResetConfirm + "/:uid/:token"
	app.GET(auth.PathPasswordResetConfirm, p.passwordResetConfirmForm, public)
	app.GET(confirmLink, p.passwordResetConfirmForm, public)
	app.POST(auth.PathPasswordResetConfirm, p.passwordResetConfirm, public)
	app.POST(confirmLink, p.passwordResetConfirm, public)
}

func withFrom(path, from string) string {
	if from == "" {
		return path
	}
	return path + "?from=" + url.QueryEscape(from)
}

func (p *authPages) home(ctx echo.Context) error {
	from := localPath(ctx.QueryParam("from"))
	return render(ctx, echo.Map{
		"appName":   p.conf.AppName,
		"from":      from,
		"loginPath": withFrom(auth.PathLogin, from),
		"adminPath": auth.NormalizeAdminPath(p.conf.AdminPath),
	})
}

func (p *authPages) loginForm(ctx echo.Context) error {
	return render(ctx, echo.Map{"from": localPath(ctx.QueryParam("from"))})
}

func (p *authPages) login(ctx echo.Context) error {
	sess, err := sessionFrom(ctx)
	if err != nil {
		return err
	}
	var form loginForm
	if err = bindForm(ctx, &form); err != nil {
		return err
	}
	if _, err = sess.manager.Login(ctx.Request().Context(), form.Username, form.Password); err != nil {
		return errors.Wrap(err, "logging in")
	}
	return navigateAfterAuth(ctx, sess, fromParam(ctx, form.From))
}

func (p *authPages) signupForm(ctx echo.Context) error {
	return render(ctx, echo.Map{"from": localPath(ctx.QueryParam("from"))})
}

func (p *authPages) signup(ctx echo.Context) error {
	sess, err := sessionFrom(ctx)
	if err != nil {
		return err
	}
	var form signupForm
	if err = bindForm(ctx, &form); err != nil {
		return err
	}
	if _, err = sess.manager.RegisterStudent(ctx.Request().Context(), form.registration()); err != nil {
		return errors.Wrap(err, "registering student")
	}
	return navigateAfterAuth(ctx, sess, fromParam(ctx, form.From))
}

func (p *authPages) logout(ctx echo.Context) error {
	sess, err := sessionFrom(ctx)
	if err != nil {
		return err
	}
	sess.manager.Logout()
	return navigate(ctx, auth.PathHome, false)
}

func (p *authPages) passwordResetForm(ctx echo.Context) error {
	return render(ctx, nil)
}

func (p *authPages) passwordReset(ctx echo.Context) error {
	sess, err := sessionFrom(ctx)
	if err != nil {
		return err
	}
	var form passwordResetForm
	if err = bindForm(ctx, &form); err != nil {
		return err
	}
	if err = sess.manager.RequestPasswordReset(ctx.Request().Context(), form.Email); err != nil {
		return errors.Wrap(err, "requesting password reset")
	}
	return navigate(ctx, auth.PathPasswordResetDone, false)
}

func (p *authPages) passwordResetDone(ctx echo.Context) error {
	return render(ctx, echo.Map{
		"message": "If an account exists for that email, a reset link is on its way.",
	})
}

func (p *authPages) passwordResetComplete(ctx echo.Context) error {
	return render(ctx, echo.Map{
		"message":   "Your password has been set. You may go ahead and log in now.",
		"loginPath": auth.PathLogin,
	})
}

func (p *authPages) passwordResetEmail(ctx echo.Context) error {
	link := strings.TrimRight(p.conf.Portal.PublicOrigin, "/") + auth.PathPasswordResetConfirm +
		"?" + url.Values{"uid": {previewUID}, "token": {previewToken}}.Encode()
	return render(ctx, echo.Map{
		"subject": "Password reset on " + p.conf.AppName,
		"lines": []string{
			"You're receiving this email because you requested a password reset for your account at " + p.conf.AppName + ".",
			"Please go to the following page and choose a new password:",
			link,
			"Your username, in case you've forgotten: " + previewUsername,
			"Thanks for using our site!",
		},
		"link": link,
	})
}

// confirmLink reads the reset link from the path, falling back to the query string.
func confirmLink(ctx echo.Context) (uid, token string) {
	uid, token = ctx.Param("uid"), ctx.Param("token")
	if uid == "" {
		uid = ctx.QueryParam("uid")
	}
	if token == "" {
		token = ctx.QueryParam("token")
	}
	return uid, token
}

func (p *authPages) passwordResetConfirmForm(ctx echo.Context) error {
	uid, token := confirmLink(ctx)
	return render(ctx, echo.Map{
		"uid":       uid,
		"token":     token,
		"validLink": uid != "" && token != "",
		"from":      localPath(ctx.QueryParam("from")),
	})
}

func (p *authPages) passwordResetConfirm(ctx echo.Context) error {
	sess, err := sessionFrom(ctx)
	if err != nil {
		return err
	}
	var form passwordResetConfirmForm
	if err = ctx.Bind(&form); err != nil {
		return err
	}
	if form.UID == "" || form.Token == "" {
		form.UID, form.Token = confirmLink(ctx)
	}
	if err = ctx.Validate(&form); err != nil {
		return err
	}
	err = sess.manager.ConfirmPasswordReset(ctx.Request().Context(), auth.PasswordResetConfirm{
		UID:          form.UID,
		Token:        form.Token,
		NewPassword1: form.NewPassword1,
		NewPassword2: form.NewPassword2,
	})
	if err != nil {
		return errors.Wrap(err, "confirming password reset")
	}
	return navigate(ctx, withFrom(auth.PathLogin, fromParam(ctx, form.From)), false)
}
