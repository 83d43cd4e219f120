package echoportal

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cems/core"
	"github.com/trezcool/cems/core/dashboard"
)

var (
	errSessionMissing = echo.NewHTTPError(http.StatusInternalServerError, "session not attached")
	errBadExamID      = echo.NewHTTPError(http.StatusBadRequest, "examId must be a number")
)

// formErrors are the controller errors caused by what the user submitted.
var formErrors = []error{
	dashboard.ErrNoAssignment,
	dashboard.ErrTitleDate,
	dashboard.ErrDateNotToday,
	dashboard.ErrMaxMarks,
	dashboard.ErrNoExam,
	dashboard.ErrReadOnly,
	dashboard.ErrNotAuthenticated,
}

// asFormError turns the controller's form errors into a *core.ValidationError.
func asFormError(err error) error {
	for _, fErr := range formErrors {
		if errors.Is(err, fErr) {
			return core.NewValidationError(fErr)
		}
	}
	return err
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
func newAppHTTPErrorHandler(logger core.Logger) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		if apiErr, ok := core.AsAPIError(err); ok {
			err = apiErr
		}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case *core.APIError:
			code = origErr.Status
			if origErr.Unreachable() || code < http.StatusBadRequest {
				code = http.StatusBadGateway
			}
			message = core.FormatError(origErr)
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Error()
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				message = origErr.FieldMap()
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			args := []interface{}{errors.Wrap(err, msg)}
			if sess, sErr := sessionFrom(ctx); sErr == nil {
				if id := sess.manager.Identity(); id != nil {
					args = append(args, *id)
				}
			}
			logger.Error(msg, args...)
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
