package echoportal

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cems/core/auth"
	"github.com/trezcool/cems/tests"
)

func TestPortal_SessionCookie(t *testing.T) {
	p := newTestPortal(t)
	b := p.browser()

	rec := b.do(http.MethodGet, auth.PathHome, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, b.cookie)
	assert.True(t, b.cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, b.cookie.SameSite)
	assert.Equal(t, "/", b.cookie.Path)

	first := b.cookie.Value
	b.do(http.MethodGet, auth.PathHome, nil)
	assert.Equal(t, first, b.cookie.Value, "the cookie is issued once")
	assert.Equal(t, 1, p.srv.sessions.len())

	b.cookie.Value = "not-a-session-id"
	b.do(http.MethodGet, auth.PathHome, nil)
	assert.NotEqual(t, "not-a-session-id", b.cookie.Value)
}

func TestPortal_AnonymousIsSentHome(t *testing.T) {
	p := newTestPortal(t)
	b := p.browser()

	rec := b.do(http.MethodGet, auth.PathStudentDashboard, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/?from=%2Fdashboard%2Fstudent", location(rec))
	assert.Empty(t, rec.Header().Get(headerNavigation))

	var home struct {
		From      string `json:"from"`
		LoginPath string `json:"loginPath"`
		AdminPath string `json:"adminPath"`
	}
	page := decodePage(t, b.do(http.MethodGet, location(rec), nil), &home)
	assert.Nil(t, page.Identity)
	assert.Equal(t, auth.PathHome, page.DashboardPath)
	assert.Equal(t, "/dashboard/student", home.From)
	assert.Equal(t, "/login?from=%2Fdashboard%2Fstudent", home.LoginPath)
	assert.Equal(t, "/admin/", home.AdminPath)
	assert.Zero(t, p.api.TotalCalls("/student/"))
}

func TestPortal_UnknownPathsGoHome(t *testing.T) {
	b := newTestPortal(t).browser()
	rec := b.do(http.MethodGet, "/nowhere/to/be/found", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, auth.PathHome, location(rec))
}

func TestPortal_Login(t *testing.T) {
	tests := []struct {
		name     string
		body     echo.Map
		wantCode int
		wantBody string
	}{
		{
			name:     "missing fields",
			body:     echo.Map{},
			wantCode: http.StatusBadRequest,
			wantBody: `{"username":"this field is required","password":"this field is required"}`,
		},
		{
			name:     "blank username",
			body:     echo.Map{"username": "   ", "password": "x"},
			wantCode: http.StatusBadRequest,
			wantBody: `{"username":"this field is required"}`,
		},
		{
			name:     "wrong password",
			body:     echo.Map{"username": testutil.StudentUsername, "password": "nope"},
			wantCode: http.StatusBadRequest,
			wantBody: `{"error":"Unable to log in with provided credentials."}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPortal(t)
			rec := p.browser().do(http.MethodPost, auth.PathLogin, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
			assert.Zero(t, p.records.Len(), "nothing persisted")
		})
	}
}

func TestPortal_LoginCompletesIdentityInBackground(t *testing.T) {
	p := newTestPortal(t)
	b := p.browser()

	rec := b.login(testutil.TeacherUsername, testutil.TeacherPassword)
	assert.Equal(t, auth.PathTeacherDashboard, location(rec))

	id := b.session().manager.Identity()
	require.NotNil(t, id)
	assert.Equal(t, "tina@cems.test", id.Email, "filled in by the background refresh")
	assert.Equal(t, 1, p.api.Calls(http.MethodGet, "/auth/me/"))
	assert.Equal(t, 1, p.records.Len())

	page := decodePage(t, b.do(http.MethodGet, auth.PathHome, nil), nil)
	require.NotNil(t, page.Identity)
	assert.Equal(t, "tina@cems.test", page.Identity.Email)
	assert.Equal(t, auth.PathTeacherDashboard, page.DashboardPath)
}

func TestPortal_AdminLandsOnExternalPortal(t *testing.T) {
	b := newTestPortal(t).browser()

	rec := b.login(testutil.AdminUsername, testutil.AdminPassword)
	assert.Equal(t, "/admin/", location(rec))
	assert.Equal(t, "external", rec.Header().Get(headerNavigation))

	rec = b.do(http.MethodGet, auth.PathStudentDashboard, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "admins may view the student dashboard")
}

func TestPortal_StudentCannotReachTeacherPages(t *testing.T) {
	p := newTestPortal(t)
	b := p.browser()
	b.login(testutil.StudentUsername, testutil.StudentPassword)

	for _, path := range []string{auth.PathTeacherDashboard, auth.PathTeacherExamCreate, auth.PathTeacherExamManage + "?examId=2"} {
		rec := b.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, auth.PathStudentDashboard, location(rec), path)
	}
	assert.Zero(t, p.api.TotalCalls("/teacher/"))
	assert.Zero(t, p.api.TotalCalls("/reference/"))
}

func TestPortal_PublicOnlyPagesBounceSignedInUsers(t *testing.T) {
	b := newTestPortal(t).browser()
	b.login(testutil.StudentUsername, testutil.StudentPassword)

	for _, path := range []string{auth.PathLogin, auth.PathSignup} {
		rec := b.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, auth.PathStudentDashboard, location(rec), path)
	}
	rec := b.do(http.MethodGet, auth.PathPasswordReset, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "public pages stay reachable")
}

func TestPortal_LoginHonoursFrom(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		from     string
		want     string
	}{
		{name: "allowed", username: testutil.TeacherUsername, password: testutil.TeacherPassword, from: auth.PathTeacherExamCreate, want: auth.PathTeacherExamCreate},
		{name: "not allowed", username: testutil.StudentUsername, password: testutil.StudentPassword, from: auth.PathTeacherDashboard, want: auth.PathStudentDashboard},
		{name: "offsite", username: testutil.TeacherUsername, password: testutil.TeacherPassword, from: "//evil.test/x", want: auth.PathTeacherDashboard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestPortal(t).browser()
			rec := b.login(tt.username, tt.password, tt.from)
			assert.Equal(t, tt.want, location(rec))
		})
	}
}

func TestPortal_Signup(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		p := newTestPortal(t)
		rec := p.browser().do(http.MethodPost, auth.PathSignup, echo.Map{
			"username":  "zuri",
			"email":     "zuri@cems.test",
			"password1": "long-enough",
			"password2": "long-enougH",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"password2":"passwords must match"}`, rec.Body.String())
		assert.Zero(t, p.api.Calls(http.MethodPost, "/auth/register/student/"))
	})

	t.Run("username taken", func(t *testing.T) {
		rec := newTestPortal(t).browser().do(http.MethodPost, auth.PathSignup, echo.Map{
			"username":  testutil.StudentUsername,
			"email":     "other@cems.test",
			"password1": "long-enough",
			"password2": "long-enough",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t,
			`{"error":"A user with that username already exists. | Username: A user with that username already exists."}`,
			rec.Body.String(),
		)
	})

	t.Run("registered students are signed in", func(t *testing.T) {
		p := newTestPortal(t)
		b := p.browser()
		rec := b.do(http.MethodPost, auth.PathSignup, echo.Map{
			"username":  " zuri ",
			"full_name": "Zuri Njeri",
			"email":     " Zuri@CEMS.test ",
			"password1": "long-enough",
			"password2": "long-enough",
		})
		assert.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
		assert.Equal(t, auth.PathStudentDashboard, location(rec))

		id := b.session().manager.Identity()
		require.NotNil(t, id)
		assert.Equal(t, "zuri", id.Username)
		assert.Equal(t, "zuri@cems.test", id.Email)
		assert.True(t, id.Roles.Student)
		assert.Equal(t, 1, p.records.Len())
	})
}

func TestPortal_Logout(t *testing.T) {
	p := newTestPortal(t)
	b := p.browser()
	b.login(testutil.StudentUsername, testutil.StudentPassword)
	require.Equal(t, 1, p.records.Len())

	rec := b.do(http.MethodPost, auth.PathLogout, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, auth.PathHome, location(rec))
	assert.Zero(t, p.records.Len())
	assert.Nil(t, b.session().manager.Identity())

	rec = b.do(http.MethodGet, auth.PathStudentDashboard, nil)
	assert.Equal(t, "/?from=%2Fdashboard%2Fstudent", location(rec))
}

func TestPortal_PasswordReset(t *testing.T) {
	p := newTestPortal(t)
	b := p.browser()

	rec := b.do(http.MethodPost, auth.PathPasswordReset, echo.Map{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email"`)

	rec = b.do(http.MethodPost, auth.PathPasswordReset, echo.Map{"email": " Amira@CEMS.test "})
	assert.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, auth.PathPasswordResetDone, location(rec))
	assert.Equal(t, "amira@cems.test", p.api.LastResetEmail())

	for _, path := range []string{auth.PathPasswordResetDone, auth.PathPasswordResetComplete} {
		decodePage(t, b.do(http.MethodGet, path, nil), nil)
	}

	var email struct {
		Subject string   `json:"subject"`
		Lines   []string `json:"lines"`
		Link    string   `json:"link"`
	}
	decodePage(t, b.do(http.MethodGet, auth.PathPasswordResetEmail, nil), &email)
	assert.Equal(t, "http://portal.test/password-reset/confirm?token=reset-token-123&uid=user-2048", email.Link)
	assert.Contains(t, email.Lines, email.Link)
}

func TestPortal_PasswordResetConfirm(t *testing.T) {
	p := newTestPortal(t)
	b := p.browser()
	link := auth.PathPasswordResetConfirm + "/" + testutil.ResetUID + "/" + testutil.ResetToken

	var form struct {
		UID       string `json:"uid"`
		Token     string `json:"token"`
		ValidLink bool   `json:"validLink"`
		From      string `json:"from"`
	}
	decodePage(t, b.do(http.MethodGet, link+"?from=%2Fdashboard%2Fteacher", nil), &form)
	assert.Equal(t, testutil.ResetUID, form.UID)
	assert.Equal(t, testutil.ResetToken, form.Token)
	assert.True(t, form.ValidLink)
	assert.Equal(t, auth.PathTeacherDashboard, form.From)

	decodePage(t, b.do(http.MethodGet, auth.PathPasswordResetConfirm, nil), &form)
	assert.False(t, form.ValidLink)

	rec := b.do(http.MethodPost, link, echo.Map{"new_password1": "fresh-pass-1", "new_password2": "fresh-pass-2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"new_password2":"passwords must match"}`, rec.Body.String())

	rec = b.do(http.MethodPost, auth.PathPasswordResetConfirm, echo.Map{
		"uid": testutil.ResetUID, "token": "stale", "new_password1": "fresh-pass-1", "new_password2": "fresh-pass-1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid value | Token: Invalid value"}`, rec.Body.String())

	rec = b.do(http.MethodPost, link+"?from=%2Fdashboard%2Fteacher", echo.Map{"new_password1": "fresh-pass-1", "new_password2": "fresh-pass-1"})
	assert.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/login?from=%2Fdashboard%2Fteacher", location(rec))

	// the destination survives the round trip through the login page
	rec = b.login(testutil.TeacherUsername, testutil.TeacherPassword, auth.PathTeacherDashboard)
	assert.Equal(t, auth.PathTeacherDashboard, location(rec))

	student := p.browser()
	rec = student.login(testutil.StudentUsername, "fresh-pass-1", auth.PathTeacherDashboard)
	assert.Equal(t, auth.PathStudentDashboard, location(rec))
}
