// Package policy holds the route access table and the single function that
// interprets it. It has no HTTP dependency; the gin middleware feeds it a
// method, a path and the caller's identity.
package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/mbathio/university-management/internal/models"
)

type requirementKind int

const (
	reqAuthenticated requirementKind = iota
	reqPublic
	reqRoles
	reqOwnership
)

// Requirement is what a caller must satisfy for a rule to allow access.
type Requirement struct {
	kind      requirementKind
	roles     []models.Role
	predicate string
	param     string
}

func Public() Requirement        { return Requirement{kind: reqPublic} }
func Authenticated() Requirement { return Requirement{kind: reqAuthenticated} }

// AnyRole admits callers holding one of roles.
func AnyRole(roles ...models.Role) Requirement {
	return Requirement{kind: reqRoles, roles: roles}
}

// Owner admits callers for which the named predicate holds on the resource
// captured as param. Callers holding a bypass role skip the predicate.
func Owner(predicate, param string, bypass ...models.Role) Requirement {
	return Requirement{kind: reqOwnership, predicate: predicate, param: param, roles: bypass}
}

func (r Requirement) String() string {
	switch r.kind {
	case reqPublic:
		return "public"
	case reqRoles:
		return fmt.Sprintf("roles%v", r.roles)
	case reqOwnership:
		return fmt.Sprintf("owner(%s:%s)", r.predicate, r.param)
	default:
		return "authenticated"
	}
}

// Rule binds a method and path pattern to a requirement. Method "*" matches
// any method. Pattern segments are literals, ":name" (one captured
// segment), "*" (one segment) or a trailing "**" (the rest of the path).
type Rule struct {
	Method  string
	Pattern string
	Require Requirement

	segments []string
}

func R(method, pattern string, req Requirement) Rule {
	return Rule{Method: method, Pattern: pattern, Require: req}
}

// Params holds segments captured by ":name".
type Params map[string]string

// Decision is the outcome of evaluating a request.
type Decision int

const (
	Allow Decision = iota
	Unauthenticated
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "forbidden"
	}
}

// OwnershipFunc reports whether identity may act on resourceID. It must
// return false, not an error, for resources that do not exist.
type OwnershipFunc func(ctx context.Context, resourceID string, identity models.Identity) (bool, error)

// Table is an ordered rule list. The first matching rule wins; a request no
// rule matches requires an authenticated caller.
type Table struct {
	rules      []Rule
	predicates map[string]OwnershipFunc
}

func NewTable(rules ...Rule) (*Table, error) {
	compiled := make([]Rule, 0, len(rules))
	for _, r := range rules {
		segs := split(r.Pattern)
		for i, s := range segs {
			if s == "**" && i != len(segs)-1 {
				return nil, fmt.Errorf("policy: %q: ** must be the last segment", r.Pattern)
			}
			if strings.HasPrefix(s, ":") && len(s) == 1 {
				return nil, fmt.Errorf("policy: %q: empty parameter name", r.Pattern)
			}
		}
		if r.Method == "" {
			r.Method = "*"
		}
		r.segments = segs
		compiled = append(compiled, r)
	}
	return &Table{rules: compiled, predicates: map[string]OwnershipFunc{}}, nil
}

// Register binds an ownership predicate name to its lookup.
func (t *Table) Register(name string, fn OwnershipFunc) {
	t.predicates[name] = fn
}

// Match returns the first rule matching method and path.
func (t *Table) Match(method, path string) (Rule, Params, bool) {
	segs := split(path)
	for _, r := range t.rules {
		if r.Method != "*" && !strings.EqualFold(r.Method, method) {
			continue
		}
		if params, ok := match(r.segments, segs); ok {
			return r, params, true
		}
	}
	return Rule{}, nil, false
}

// RequiresAuth reports whether an anonymous caller would be refused.
func (t *Table) RequiresAuth(method, path string) bool {
	r, _, ok := t.Match(method, path)
	return !ok || r.Require.kind != reqPublic
}

// Evaluate decides a request. identity is nil for anonymous callers. A
// non-nil error accompanies Forbidden when an ownership lookup failed.
func (t *Table) Evaluate(ctx context.Context, method, path string, identity *models.Identity) (Decision, error) {
	req := Authenticated()
	var params Params
	if r, p, ok := t.Match(method, path); ok {
		req, params = r.Require, p
	}

	if req.kind == reqPublic {
		return Allow, nil
	}
	if identity == nil {
		return Unauthenticated, nil
	}

	switch req.kind {
	case reqRoles:
		if identity.HasRole(req.roles...) {
			return Allow, nil
		}
		return Forbidden, nil
	case reqOwnership:
		if identity.HasRole(req.roles...) {
			return Allow, nil
		}
		fn, ok := t.predicates[req.predicate]
		if !ok {
			return Forbidden, fmt.Errorf("policy: predicate %q not registered", req.predicate)
		}
		resourceID := params[req.param]
		if resourceID == "" {
			return Forbidden, nil
		}
		allowed, err := fn(ctx, resourceID, *identity)
		if err != nil {
			return Forbidden, fmt.Errorf("policy: %s: %w", req.predicate, err)
		}
		if allowed {
			return Allow, nil
		}
		return Forbidden, nil
	default:
		return Allow, nil
	}
}

func match(pattern, path []string) (Params, bool) {
	var params Params
	for i, p := range pattern {
		if p == "**" {
			return params, true
		}
		if i >= len(path) {
			return nil, false
		}
		switch {
		case p == "*":
		case strings.HasPrefix(p, ":"):
			if params == nil {
				params = Params{}
			}
			params[p[1:]] = path[i]
		case p != path[i]:
			return nil, false
		}
	}
	return params, len(pattern) == len(path)
}

// split drops empty segments, so "/a//b/" and "/a/b" are the same path.
func split(path string) []string {
	raw := strings.Split(path, "/")
	out := raw[:0]
	for _, s := range raw {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
