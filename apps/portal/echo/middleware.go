package echoportal

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/cems/core/auth"
	"github.com/trezcool/cems/core/dashboard"
)

const (
	headerNavigation = "X-Navigation"
	headerRetryAfter = "Retry-After"
)

// guardMiddleware runs the route guard before a page renders.
// A session still resolving its identity gets 202 and is asked to retry.
func guardMiddleware(policy auth.Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess, err := sessionFrom(ctx)
			if err != nil {
				return err
			}
			decision := sess.manager.Guard(policy, ctx.Request().URL.Path)
			switch decision.Outcome {
			case auth.OutcomeWait:
				ctx.Response().Header().Set(headerRetryAfter, "1")
				return ctx.JSON(http.StatusAccepted, echo.Map{"loading": true})
			case auth.OutcomeRedirect:
				location := decision.Location
				if decision.From != "" {
					location += "?from=" + url.QueryEscape(decision.From)
				}
				return navigate(ctx, location, decision.External)
			}
			return next(ctx)
		}
	}
}

// navigate redirects the browser. External destinations are flagged so
// clients know to leave the portal.
func navigate(ctx echo.Context, location string, external bool) error {
	if external {
		ctx.Response().Header().Set(headerNavigation, "external")
	}
	return ctx.Redirect(http.StatusSeeOther, location)
}

// navigateAfterAuth sends a freshly authenticated session where it belongs.
func navigateAfterAuth(ctx echo.Context, sess *session, from string) error {
	dest := sess.manager.PostAuthDestination(from)
	return navigate(ctx, dest, sess.manager.IsExternalPath(dest))
}

// pageModel is what every page renders: session context, notifications and page data.
type pageModel struct {
	Path          string                   `json:"path"`
	Identity      *auth.Identity           `json:"identity"`
	Loading       bool                     `json:"loading"`
	DashboardPath string                   `json:"dashboardPath"`
	Notifications []dashboard.Notification `json:"notifications"`
	Data          interface{}              `json:"data,omitempty"`
}

func render(ctx echo.Context, data interface{}) error {
	sess, err := sessionFrom(ctx)
	if err != nil {
		return err
	}
	state := sess.manager.State()
	return ctx.JSON(http.StatusOK, pageModel{
		Path:          ctx.Request().URL.Path,
		Identity:      state.Identity,
		Loading:       state.Loading,
		DashboardPath: sess.manager.DashboardPath(state.Identity),
		Notifications: sess.queue.Drain(),
		Data:          data,
	})
}
