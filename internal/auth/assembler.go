package auth

import (
	"fmt"
	"strings"

	"github.com/upb/anubis/internal/permission"
	"github.com/upb/anubis/internal/permittable"
	"github.com/upb/anubis/internal/token"
	"github.com/upb/anubis/services"
)

// Assembler builds the permission set of each token type
type Assembler struct {
	registry *permittable.Registry
	prefix   string
}

// NewAssembler creates an Assembler over registry
func NewAssembler(registry *permittable.Registry) *Assembler {
	return &Assembler{
		registry: registry,
		prefix:   registry.Application() + "/",
	}
}

// System returns every permission a system token grants
func (a *Assembler) System() *permission.Set {
	return a.registry.Permissions(token.System)
}

// Guest returns the permissions every caller holds
func (a *Assembler) Guest() *permission.Set {
	return a.registry.Permissions(token.Guest)
}

// Tenant decodes a content claim and keeps the entries addressed to this
// application. The guest permissions are always included.
func (a *Assembler) Tenant(content string) (*permission.Set, error) {
	c, err := token.DecodeContent(content)
	if err != nil {
		return nil, services.Wrap(services.ErrMissingTokenContent, err)
	}

	set := permission.NewSet()
	for _, entry := range c.Permissions {
		path := strings.TrimPrefix(entry.Path, "/")
		if !strings.HasPrefix(path, a.prefix) {
			continue
		}
		path = strings.TrimPrefix(path, a.prefix)
		for _, op := range entry.Operations {
			perm, err := permission.New(path, op)
			if err != nil {
				return nil, services.Wrap(services.ErrMissingTokenContent, fmt.Errorf("entry %q: %w", entry.Path, err))
			}
			set.Add(perm)
		}
	}
	return set.Union(a.Guest()), nil
}
