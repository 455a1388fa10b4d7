// Package role implements the ordered role hierarchy and the capability
// set each role implies. The hierarchy is an open registry rather than a
// closed enum: custom roles can be inserted between built-ins at startup
// and the registry is read-only afterwards.
package role

import (
	"errors"
	"fmt"
	"strings"
)

// Built-in roles, lowest rank first.
const (
	Viewer = "viewer"
	Member = "member"
	Admin  = "admin"
	Owner  = "owner"
)

// Capability names a permission implied by a role. Higher ranks inherit
// every capability granted below them.
type Capability string

const (
	CapViewOrganization   Capability = "view_organization"
	CapInviteMembers      Capability = "invite_members"
	CapManageMembers      Capability = "manage_members"
	CapManageSettings     Capability = "manage_settings"
	CapManageBilling      Capability = "manage_billing"
	CapDeleteOrganization Capability = "delete_organization"
	CapTransferOwnership  Capability = "transfer_ownership"
)

var (
	ErrUnknownRole   = errors.New("unknown_role")
	ErrRoleExists    = errors.New("role_exists")
	ErrInvalidInsert = errors.New("invalid_insert")
)

// Descriptor declares a custom role: it sits directly above the role it
// inherits from and grants that role's capabilities plus its own.
type Descriptor struct {
	Name         string
	Inherits     string
	Capabilities []Capability
}

type roleDef struct {
	name   string
	grants []Capability
}

// Registry is the process-wide role hierarchy. Build it once at
// configuration time; it is not safe for concurrent mutation.
type Registry struct {
	ordered []roleDef
	index   map[string]int
}

// NewRegistry returns a registry seeded with the built-in hierarchy
// viewer < member < admin < owner.
func NewRegistry() *Registry {
	r := &Registry{index: make(map[string]int)}
	r.append(roleDef{name: Viewer, grants: []Capability{CapViewOrganization}})
	r.append(roleDef{name: Member, grants: nil})
	r.append(roleDef{name: Admin, grants: []Capability{
		CapInviteMembers,
		CapManageMembers,
		CapManageSettings,
	}})
	r.append(roleDef{name: Owner, grants: []Capability{
		CapManageBilling,
		CapDeleteOrganization,
		CapTransferOwnership,
	}})
	return r
}

func (r *Registry) append(def roleDef) {
	r.index[def.name] = len(r.ordered)
	r.ordered = append(r.ordered, def)
}

// Register inserts a custom role directly above the role it inherits
// from. The new role carries every capability of the inherited role
// (by rank inheritance) plus its own grants.
func (r *Registry) Register(d Descriptor) error {
	name := strings.ToLower(strings.TrimSpace(d.Name))
	if name == "" {
		return fmt.Errorf("%w: empty role name", ErrInvalidInsert)
	}
	if _, ok := r.index[name]; ok {
		return fmt.Errorf("%w: %s", ErrRoleExists, name)
	}

	base, ok := r.index[strings.ToLower(strings.TrimSpace(d.Inherits))]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRole, d.Inherits)
	}

	at := base + 1
	r.ordered = append(r.ordered, roleDef{})
	copy(r.ordered[at+1:], r.ordered[at:])
	r.ordered[at] = roleDef{name: name, grants: d.Capabilities}

	for i := at; i < len(r.ordered); i++ {
		r.index[r.ordered[i].name] = i
	}
	return nil
}

// Valid reports whether the role is known to the hierarchy.
func (r *Registry) Valid(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Rank returns the position of the role in the hierarchy, lowest first.
func (r *Registry) Rank(name string) (int, bool) {
	rank, ok := r.index[name]
	return rank, ok
}

// AtLeast reports whether role ranks at or above threshold. Unknown
// roles never satisfy any threshold.
func (r *Registry) AtLeast(name, threshold string) bool {
	rank, ok := r.index[name]
	if !ok {
		return false
	}
	want, ok := r.index[threshold]
	if !ok {
		return false
	}
	return rank >= want
}

// Can reports whether the role holds the capability, directly or by
// inheritance from a lower rank.
func (r *Registry) Can(name string, cap Capability) bool {
	rank, ok := r.index[name]
	if !ok {
		return false
	}
	for i := 0; i <= rank; i++ {
		for _, granted := range r.ordered[i].grants {
			if granted == cap {
				return true
			}
		}
	}
	return false
}

// Capabilities returns the full capability set of the role, including
// inherited grants, in hierarchy order.
func (r *Registry) Capabilities(name string) []Capability {
	rank, ok := r.index[name]
	if !ok {
		return nil
	}
	seen := make(map[Capability]struct{})
	var caps []Capability
	for i := 0; i <= rank; i++ {
		for _, granted := range r.ordered[i].grants {
			if _, dup := seen[granted]; dup {
				continue
			}
			seen[granted] = struct{}{}
			caps = append(caps, granted)
		}
	}
	return caps
}

// Roles returns every role name, lowest rank first.
func (r *Registry) Roles() []string {
	names := make([]string, 0, len(r.ordered))
	for _, def := range r.ordered {
		names = append(names, def.name)
	}
	return names
}
