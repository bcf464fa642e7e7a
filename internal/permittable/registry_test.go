package permittable

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/anubis/internal/permission"
	"github.com/upb/anubis/internal/token"
)

func TestNewRegistry_Defaults(t *testing.T) {
	r, err := NewRegistry("anubis-v1", DefaultEndpoints())
	require.NoError(t, err)
	assert.Equal(t, "anubis-v1", r.Application())

	system := r.Permissions(token.System)
	tests := []struct {
		name string
		set  *permission.Set
		path string
		op   permission.Operation
		user string
		want bool
	}{
		{"system creates signatures", system, "/signatures/2024-01-01T00_00_00", permission.Change, "system", true},
		{"system deletes signatures", system, "/signatures/2024-01-01T00_00_00", permission.Delete, "system", true},
		{"system initializes", system, "/initialize", permission.Change, "system", true},
		{"system reads health", system, "/health", permission.Read, "system", true},
		{"system cannot read user permissions", system, "/users/alice/permissions", permission.Read, "system", false},
		{"tenant reads permittables", r.Permissions(token.Tenant), "/permittables", permission.Read, "alice", true},
		{"tenant cannot create signatures", r.Permissions(token.Tenant), "/signatures/x", permission.Change, "alice", false},
		{"system verifies refresh tokens", system, "/refresh", permission.Read, "system", true},
		{"tenant cannot verify refresh tokens", r.Permissions(token.Tenant), "/refresh", permission.Read, "alice", false},
		{"guest reads health", r.Permissions(token.Guest), "/health", permission.Read, "guest", true},
		{"guest cannot read metrics", r.Permissions(token.Guest), "/metrics", permission.Read, "guest", false},
		{"guest cannot read readiness", r.Permissions(token.Guest), "/health/ready", permission.Read, "guest", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.set.Grants(tt.path, tt.op, tt.user))
		})
	}
}

func TestNewRegistry_GuestProbes(t *testing.T) {
	r, err := NewRegistry("anubis-v1", DefaultEndpoints(), WithGuestProbes(true))
	require.NoError(t, err)

	guest := r.Permissions(token.Guest)
	assert.True(t, guest.Grants("/metrics", permission.Read, token.GuestUser))
	assert.True(t, guest.Grants("/health/ready", permission.Read, token.GuestUser))
	assert.False(t, guest.Grants("/signatures", permission.Read, token.GuestUser))
}

func TestNewRegistry_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		endpoint Endpoint
	}{
		{"unsupported method", Endpoint{Path: "/a", Method: "PATCH", AcceptedTokenTypes: []token.Type{token.System}}},
		{"bad pattern", Endpoint{Path: "/a/{b", Method: "GET", AcceptedTokenTypes: []token.Type{token.System}}},
		{"no token types", Endpoint{Path: "/a", Method: "GET"}},
		{"unknown token type", Endpoint{Path: "/a", Method: "GET", AcceptedTokenTypes: []token.Type{"ROOT"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry("anubis-v1", []Endpoint{tt.endpoint})
			assert.ErrorIs(t, err, ErrInvalidEndpoint)
		})
	}

	_, err := NewRegistry("", DefaultEndpoints())
	assert.ErrorIs(t, err, ErrInvalidEndpoint)
}

func TestRegistry_Override(t *testing.T) {
	endpoints := append(DefaultEndpoints(), Endpoint{
		Path: "health", Method: "get", AcceptedTokenTypes: []token.Type{token.System},
	})
	r, err := NewRegistry("anubis-v1", endpoints)
	require.NoError(t, err)

	assert.Len(t, r.Endpoints(), len(DefaultEndpoints()))
	assert.False(t, r.Permissions(token.Guest).Grants("/health", permission.Read, token.GuestUser))
}

func TestRegistry_Discoverable(t *testing.T) {
	r, err := NewRegistry("anubis-v1", DefaultEndpoints())
	require.NoError(t, err)

	assert.Equal(t, []Discovered{
		{Path: "anubis-v1/permittables", Method: "GET", Group: "identity__v1__app"},
		{Path: "anubis-v1/users/{useridentifier}/permissions", Method: "GET", Group: "identity__v1__self"},
		{Path: "anubis-v1/users/{useridentifier}/refresh", Method: "POST", Group: "identity__v1__self"},
	}, r.Discoverable())
}

func TestParse(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		f, err := Parse([]byte(`
endpoints:
  - path: /reports/*
    method: GET
    group: reporting
    acceptedTokenTypes: [TENANT, SYSTEM]
  - path: /metrics
    method: GET
    acceptedTokenTypes: [SYSTEM]
    probe: true
`))
		require.NoError(t, err)
		require.Len(t, f.Endpoints, 2)
		assert.Equal(t, "reporting", f.Endpoints[0].Group)
		assert.Equal(t, []token.Type{token.Tenant, token.System}, f.Endpoints[0].AcceptedTokenTypes)
		assert.True(t, f.Endpoints[1].Probe)
	})

	t.Run("empty document", func(t *testing.T) {
		f, err := Parse(nil)
		require.NoError(t, err)
		assert.Empty(t, f.Endpoints)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := Parse([]byte("endpoints:\n  - path: /a\n    verb: GET\n"))
		assert.Error(t, err)
	})

	t.Run("invalid entry", func(t *testing.T) {
		_, err := Parse([]byte("endpoints:\n  - path: /a\n    method: PATCH\n    acceptedTokenTypes: [SYSTEM]\n"))
		assert.ErrorIs(t, err, ErrInvalidEndpoint)
	})
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "permittables.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
endpoints:
  - path: /reports/{owner}
    method: GET
    acceptedTokenTypes: [TENANT]
`), 0o600))

	r, err := Build("anubis-v1", path)
	require.NoError(t, err)
	assert.Len(t, r.Endpoints(), len(DefaultEndpoints())+1)

	_, err = Build("anubis-v1", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	r, err = Build("anubis-v1", "")
	require.NoError(t, err)
	assert.Len(t, r.Endpoints(), len(DefaultEndpoints()))
}
