// Package permittable holds the startup-time registry of endpoints that can be
// granted to callers, together with the token types each endpoint accepts.
//
// The registry is assembled explicitly, from the built-in endpoint table and
// an optional YAML file, and never changes after construction.
package permittable

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/upb/anubis/internal/permission"
	"github.com/upb/anubis/internal/token"
)

// ErrInvalidEndpoint is returned for endpoints that cannot be registered
var ErrInvalidEndpoint = errors.New("invalid permittable endpoint")

// Endpoint declares one route and who may call it.
// Path variables are written "*"; "{name}" restricts the variable to the caller's own identity.
type Endpoint struct {
	Path               string       `yaml:"path" json:"path"`
	Method             string       `yaml:"method" json:"method"`
	Group              string       `yaml:"group,omitempty" json:"groupId,omitempty"`
	AcceptedTokenTypes []token.Type `yaml:"acceptedTokenTypes" json:"-"`

	// Probe marks health and metrics endpoints an operator may open to guests.
	Probe bool `yaml:"probe,omitempty" json:"-"`
}

// Accepts reports whether tokens of typ may call the endpoint
func (e Endpoint) Accepts(typ token.Type) bool {
	for _, t := range e.AcceptedTokenTypes {
		if t == typ {
			return true
		}
	}
	return false
}

func (e Endpoint) key() string {
	return e.Method + " " + e.Path
}

// Discovered is an endpoint as advertised to identity managers: the path is
// prefixed with the application name and version.
type Discovered struct {
	Path   string `json:"path"`
	Method string `json:"method"`
	Group  string `json:"groupId,omitempty"`
}

// Option configures a Registry
type Option func(*Registry)

// WithGuestProbes lets guests call probe endpoints
func WithGuestProbes(enabled bool) Option {
	return func(r *Registry) {
		r.guestProbes = enabled
	}
}

// Registry is the validated set of permittable endpoints of one application
type Registry struct {
	application string
	endpoints   []Endpoint
	guestProbes bool
	perms       map[token.Type]*permission.Set
}

// NewRegistry validates endpoints and precomputes the permission set of each
// token type. A later endpoint with the same method and path replaces an earlier one.
func NewRegistry(application string, endpoints []Endpoint, opts ...Option) (*Registry, error) {
	if application == "" {
		return nil, fmt.Errorf("%w: application name is required", ErrInvalidEndpoint)
	}

	r := &Registry{application: application}
	for _, opt := range opts {
		opt(r)
	}

	index := make(map[string]int)
	for _, e := range endpoints {
		normalized, err := normalize(e)
		if err != nil {
			return nil, err
		}
		if i, ok := index[normalized.key()]; ok {
			r.endpoints[i] = normalized
			continue
		}
		index[normalized.key()] = len(r.endpoints)
		r.endpoints = append(r.endpoints, normalized)
	}

	r.perms = map[token.Type]*permission.Set{
		token.System: permission.NewSet(),
		token.Tenant: permission.NewSet(),
		token.Guest:  permission.NewSet(),
	}
	for _, e := range r.endpoints {
		op, _ := permission.OperationForMethod(e.Method)
		perm, err := permission.New(e.Path, op)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
		}
		for _, typ := range e.AcceptedTokenTypes {
			r.perms[typ].Add(perm)
		}
		if e.Probe && r.guestProbes && !e.Accepts(token.Guest) {
			r.perms[token.Guest].Add(perm)
		}
	}
	return r, nil
}

func normalize(e Endpoint) (Endpoint, error) {
	e.Method = strings.ToUpper(strings.TrimSpace(e.Method))
	if _, ok := permission.OperationForMethod(e.Method); !ok {
		return Endpoint{}, fmt.Errorf("%w: unsupported method %q for %s", ErrInvalidEndpoint, e.Method, e.Path)
	}
	pattern, err := permission.ParsePattern(e.Path)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	e.Path = pattern.String()
	if len(e.AcceptedTokenTypes) == 0 {
		return Endpoint{}, fmt.Errorf("%w: %s %s accepts no token type", ErrInvalidEndpoint, e.Method, e.Path)
	}
	types := make([]token.Type, 0, len(e.AcceptedTokenTypes))
	for _, t := range e.AcceptedTokenTypes {
		typ, ok := token.ParseType(string(t))
		if !ok {
			return Endpoint{}, fmt.Errorf("%w: unknown token type %q for %s %s", ErrInvalidEndpoint, t, e.Method, e.Path)
		}
		types = append(types, typ)
	}
	e.AcceptedTokenTypes = types
	return e, nil
}

// Application returns the application name and version, e.g. "anubis-v1"
func (r *Registry) Application() string {
	return r.application
}

// Endpoints returns a copy of the registered endpoints in registration order
func (r *Registry) Endpoints() []Endpoint {
	out := make([]Endpoint, len(r.endpoints))
	copy(out, r.endpoints)
	return out
}

// Permissions returns the permissions implied by accepting tokens of typ on
// every endpoint that declares it. The returned set must not be modified.
func (r *Registry) Permissions(typ token.Type) *permission.Set {
	if set, ok := r.perms[typ]; ok {
		return set
	}
	return permission.NewSet()
}

// Discoverable lists the endpoints tenant tokens can be granted, with paths
// prefixed by the application, sorted by path then method.
func (r *Registry) Discoverable() []Discovered {
	out := []Discovered{}
	for _, e := range r.endpoints {
		if !e.Accepts(token.Tenant) {
			continue
		}
		out = append(out, Discovered{
			Path:   r.application + e.Path,
			Method: e.Method,
			Group:  e.Group,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// DefaultEndpoints is the built-in endpoint table of the service
func DefaultEndpoints() []Endpoint {
	system := []token.Type{token.System}
	return []Endpoint{
		{Path: "/initialize", Method: http.MethodPost, AcceptedTokenTypes: system},
		{Path: "/signatures", Method: http.MethodGet, AcceptedTokenTypes: system},
		{Path: "/signatures/*", Method: http.MethodGet, AcceptedTokenTypes: system},
		{Path: "/signatures/*", Method: http.MethodPost, AcceptedTokenTypes: system},
		{Path: "/signatures/*", Method: http.MethodDelete, AcceptedTokenTypes: system},
		{Path: "/signatures/*/application", Method: http.MethodGet, AcceptedTokenTypes: system},
		{Path: "/permittables", Method: http.MethodGet, Group: "identity__v1__app",
			AcceptedTokenTypes: []token.Type{token.System, token.Tenant}},
		{Path: "/users/{useridentifier}/permissions", Method: http.MethodGet, Group: "identity__v1__self",
			AcceptedTokenTypes: []token.Type{token.Tenant}},
		{Path: "/users/{useridentifier}/refresh", Method: http.MethodPost, Group: "identity__v1__self",
			AcceptedTokenTypes: []token.Type{token.Tenant}},
		{Path: "/refresh", Method: http.MethodGet, AcceptedTokenTypes: system},
		{Path: "/health", Method: http.MethodGet, AcceptedTokenTypes: []token.Type{token.Guest, token.System}},
		{Path: "/health/ready", Method: http.MethodGet, AcceptedTokenTypes: system, Probe: true},
		{Path: "/metrics", Method: http.MethodGet, AcceptedTokenTypes: system, Probe: true},
	}
}
