package auth

// Policy is the guard policy of a page.
type Policy int

const (
	// PolicyPublic pages render for everyone.
	PolicyPublic Policy = iota
	// PolicyProtected pages need an identity holding one of the path's role flags.
	PolicyProtected
	// PolicyPublicOnly pages (login, signup) send authenticated visitors to their dashboard.
	PolicyPublicOnly
)

func (p Policy) String() string {
	switch p {
	case PolicyProtected:
		return "protected"
	case PolicyPublicOnly:
		return "public-only"
	}
	return "public"
}

// Outcome of a guard decision.
type Outcome int

const (
	OutcomeRender Outcome = iota
	OutcomeWait
	OutcomeRedirect
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWait:
		return "wait"
	case OutcomeRedirect:
		return "redirect"
	}
	return "render"
}

// State is a snapshot of a session, as seen by the guard.
type State struct {
	Identity *Identity
	Loading  bool
}

// Decision tells a page what to do with a navigation.
// From is set on redirects to the landing page and carries the attempted path.
// External destinations need a full page load.
type Decision struct {
	Outcome  Outcome
	Location string
	External bool
	From     string
}

// Guard decides a navigation to path under policy.
func Guard(state State, routes *Routes, policy Policy, path string) Decision {
	switch policy {
	case PolicyProtected:
		if id := state.Identity; id != nil {
			if routes.CanAccess(path, id) {
				return Decision{Outcome: OutcomeRender}
			}
			return redirectTo(routes, routes.DashboardPath(id))
		}
		if state.Loading {
			return Decision{Outcome: OutcomeWait}
		}
		return Decision{Outcome: OutcomeRedirect, Location: PathHome, From: path}

	case PolicyPublicOnly:
		// a loading session still renders public content
		if id := state.Identity; id != nil {
			return redirectTo(routes, routes.DashboardPath(id))
		}
	}
	return Decision{Outcome: OutcomeRender}
}

func redirectTo(routes *Routes, location string) Decision {
	return Decision{
		Outcome:  OutcomeRedirect,
		Location: location,
		External: routes.IsExternal(location),
	}
}
