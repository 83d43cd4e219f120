package echoportal

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindForm_CleansBeforeValidating(t *testing.T) {
	e := echo.New()
	e.Validator = newAppValidator()

	body := `{"username":" Zuri ","full_name":" Zuri Njeri ","email":" Zuri@CEMS.test ","password1":"long-enough","password2":"long-enough"}`
	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := e.NewContext(req, httptest.NewRecorder())

	var form signupForm
	require.NoError(t, bindForm(ctx, &form))
	reg := form.registration()
	assert.Equal(t, "Zuri", reg.Username)
	assert.Equal(t, "Zuri Njeri", reg.FullName)
	assert.Equal(t, "zuri@cems.test", reg.Email)
}

func TestLocalPath(t *testing.T) {
	tests := []struct {
		from string
		want string
	}{
		{from: "/dashboard/teacher", want: "/dashboard/teacher"},
		{from: " /login ", want: "/login"},
		{from: "//evil.test/x", want: ""},
		{from: `/\evil.test`, want: ""},
		{from: "https://evil.test", want: ""},
		{from: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			assert.Equal(t, tt.want, localPath(tt.from))
		})
	}
}
