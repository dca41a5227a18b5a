package rbac

import (
	"context"
	"strings"
)

// Roles known to the default policy.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// grants is the compiled permission list of one role.
type grants struct {
	all      bool
	exact    map[string]bool
	prefixes []string // from "ns:*" patterns, kept with the trailing ':'
}

func (g grants) allows(perm string) bool {
	if g.all || g.exact[perm] {
		return true
	}
	for _, p := range g.prefixes {
		if strings.HasPrefix(perm, p) {
			return true
		}
	}
	return false
}

// Checker answers permission questions against a role policy. Patterns are
// an exact permission, "*" for everything, or "ns:*" for a namespace.
type Checker struct {
	roles map[string]grants
}

// NewChecker compiles rp. A nil policy selects RolePermissions.
func NewChecker(rp map[string][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	c := &Checker{roles: make(map[string]grants, len(rp))}
	for role, patterns := range rp {
		g := grants{exact: map[string]bool{}}
		for _, p := range patterns {
			switch {
			case p == "*":
				g.all = true
			case strings.HasSuffix(p, "*"):
				g.prefixes = append(g.prefixes, strings.TrimSuffix(p, "*"))
			default:
				g.exact[p] = true
			}
		}
		c.roles[role] = g
	}
	return c
}

// Known reports whether role appears in the policy.
func (c *Checker) Known(role string) bool {
	_, ok := c.roles[role]
	return ok
}

func (c *Checker) Has(role, perm string) bool {
	g, ok := c.roles[role]
	return ok && g.allows(perm)
}

func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

type ctxKey struct{}

// WithRole stores the caller's role for Can and the Require middlewares.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}
