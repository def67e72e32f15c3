package access

import (
	"context"
	"time"

	"cnom/internal/middleware"
	"cnom/internal/models"
	"cnom/internal/observability"
)

// State is the resolved session state of an access check.
type State string

const (
	StateLoading               State = "loading"
	StateDemoResolved          State = "demo_resolved"
	StateUnauthenticated       State = "unauthenticated"
	StateAuthenticatedNoRole   State = "authenticated_no_role"
	StateAuthenticatedWithRole State = "authenticated_with_role"
)

// Unassigned role policies.
const (
	PolicyMinimum = "minimum"
	PolicyDeny    = "deny"
)

// Decision is the outcome of an access check. Role is nil while loading and
// when no role could be bound to the session.
type Decision struct {
	State     State  `json:"state"`
	Role      *Role  `json:"role"`
	HasAccess bool   `json:"hasAccess"`
	Redirect  string `json:"redirect,omitempty"`
}

// Label is the decision name used in logs and metrics.
func (d Decision) Label() string {
	switch {
	case d.State == StateLoading:
		return "pending"
	case d.HasAccess:
		return "granted"
	default:
		return "denied"
	}
}

// RoleStore reads persisted role rows. A missing row is reported as a
// models not-found error.
type RoleStore interface {
	FindByUserID(ctx context.Context, userID string) (*models.UserRole, error)
}

// Options configures a Resolver. Zero values fall back to defaults.
type Options struct {
	LookupTimeout    time.Duration
	UnassignedPolicy string
	FallbackRoute    string
	LoginRoute       string
}

// Resolver computes access decisions. It holds no per-session state and is
// safe for concurrent use.
type Resolver struct {
	roles RoleStore
	opts  Options
}

// NewResolver returns a resolver reading role rows from roles.
func NewResolver(roles RoleStore, opts Options) *Resolver {
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = 3 * time.Second
	}
	if opts.UnassignedPolicy == "" {
		opts.UnassignedPolicy = PolicyMinimum
	}
	if opts.FallbackRoute == "" {
		opts.FallbackRoute = "/demo"
	}
	if opts.LoginRoute == "" {
		opts.LoginRoute = "/login"
	}
	return &Resolver{roles: roles, opts: opts}
}

// Resolve decides whether sess may reach a view open to allowed.
func (r *Resolver) Resolve(ctx context.Context, sess Session, allowed ...Role) Decision {
	d := r.resolve(ctx, sess, allowed)
	observability.RoleResolutions.WithLabelValues(string(d.State), d.Label()).Inc()
	return d
}

func (r *Resolver) resolve(ctx context.Context, sess Session, allowed []Role) Decision {
	switch s := sess.(type) {
	case Demo:
		return r.decide(StateDemoResolved, s.Role, allowed)

	case Authenticated:
		role, found, err := r.lookup(ctx, s.PrincipalID)
		if err != nil {
			observability.RoleLookupFailures.Inc()
			middleware.Logger.WarnContext(ctx, "role lookup failed",
				"user_id", s.PrincipalID, "policy", r.opts.UnassignedPolicy, "error", err)
		}
		if found {
			return r.decide(StateAuthenticatedWithRole, role, allowed)
		}
		if r.opts.UnassignedPolicy == PolicyDeny {
			return Decision{State: StateAuthenticatedNoRole, Redirect: r.opts.FallbackRoute}
		}
		return r.decide(StateAuthenticatedNoRole, DefaultRole, allowed)

	case Anonymous:
		if contains(allowed, RolePublic) {
			return Decision{State: StateUnauthenticated, HasAccess: true}
		}
		return Decision{State: StateUnauthenticated, Redirect: r.opts.LoginRoute}

	default:
		return Decision{State: StateLoading}
	}
}

func (r *Resolver) decide(state State, role Role, allowed []Role) Decision {
	d := Decision{State: state, Role: &role}
	if contains(allowed, role) {
		d.HasAccess = true
		return d
	}
	d.Redirect = r.opts.FallbackRoute
	return d
}

// lookup reads the persisted role for userID within the lookup timeout.
func (r *Resolver) lookup(ctx context.Context, userID string) (Role, bool, error) {
	if r.roles == nil {
		return "", false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.opts.LookupTimeout)
	defer cancel()

	type result struct {
		row *models.UserRole
		err error
	}
	// Buffered: the sender must not block once the caller has timed out.
	done := make(chan result, 1)
	go func() {
		row, err := r.roles.FindByUserID(ctx, userID)
		done <- result{row: row, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case res := <-done:
		if res.err != nil {
			if models.IsNotFound(res.err) {
				return "", false, nil
			}
			return "", false, res.err
		}
		if res.row == nil {
			return "", false, nil
		}
		return TranslateStoredRole(res.row.Role), true, nil
	}
}
