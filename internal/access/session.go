package access

// Session is the access-relevant snapshot of a request or browser session.
// Exactly one of Pending, Anonymous, Demo or Authenticated.
type Session interface {
	isSession()
}

// Pending is a session whose authentication check has not finished.
type Pending struct{}

// Anonymous is a session without a demo identity or authenticated principal.
type Anonymous struct{}

// Demo is a session bound to a simulated identity. It never touches the record store.
type Demo struct {
	Token    string
	Role     Role
	Identity Identity
}

// Authenticated is a session carrying a verified principal.
type Authenticated struct {
	PrincipalID string
	Email       string
}

func (Pending) isSession()       {}
func (Anonymous) isSession()     {}
func (Demo) isSession()          {}
func (Authenticated) isSession() {}
