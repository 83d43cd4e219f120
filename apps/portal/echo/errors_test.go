package echoportal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/cems/core"
	"github.com/trezcool/cems/core/dashboard"
	"github.com/trezcool/cems/tests"
)

func TestAppHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantBody   string
		wantLogged bool
	}{
		{
			name:     "unreachable api",
			err:      errors.Wrap(&core.APIError{Message: "Network error.", Details: context.DeadlineExceeded}, "login"),
			wantCode: http.StatusBadGateway,
			wantBody: `{"error":"Network error."}`,
		},
		{
			name:     "api rejection",
			err:      &core.APIError{Message: "Forbidden", Status: http.StatusForbidden, Details: "Forbidden"},
			wantCode: http.StatusForbidden,
			wantBody: `{"error":"Forbidden"}`,
		},
		{
			name:     "field errors",
			err:      core.NewValidationError(nil, core.FieldError{Field: "email", Error: "this field is required"}),
			wantCode: http.StatusBadRequest,
			wantBody: `{"email":"this field is required"}`,
		},
		{
			name:     "form error",
			err:      errors.Wrap(asFormError(dashboard.ErrMaxMarks), "creating exam"),
			wantCode: http.StatusBadRequest,
			wantBody: `{"error":"Max marks is fixed at 100 per exam."}`,
		},
		{
			name:     "http error",
			err:      echo.ErrNotFound,
			wantCode: http.StatusNotFound,
			wantBody: `{"error":"Not Found"}`,
		},
		{
			name:       "unexpected",
			err:        errors.New("boom"),
			wantCode:   http.StatusInternalServerError,
			wantBody:   `{"error":"Internal Server Error"}`,
			wantLogged: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := testutil.NewLogger()
			e := echo.New()
			handle := newAppHTTPErrorHandler(logger)

			rec := httptest.NewRecorder()
			handle(tt.err, e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
			assert.Equal(t, tt.wantLogged, len(logger.Entries("error")) == 1)
		})
	}
}

func TestAsFormError(t *testing.T) {
	err := asFormError(errors.Wrap(dashboard.ErrReadOnly, "saving marks"))
	vErr, ok := err.(*core.ValidationError)
	if assert.True(t, ok) {
		assert.Equal(t, dashboard.ErrReadOnly, vErr.Err)
	}

	other := errors.New("other")
	assert.Equal(t, other, asFormError(other))
}
