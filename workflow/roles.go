package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// ROLE IDENTITIES - Canonical role plus the legacy names for the same authority
// =============================================================================

// RoleIdentity groups a canonical role with every older name that denotes
// the same authority.
type RoleIdentity struct {
	Canonical Role
	Aliases   []string
}

// DefaultIdentities is the naming table in force after the
// director → campus_admin and ao → os migration.
func DefaultIdentities() []RoleIdentity {
	return []RoleIdentity{
		{Canonical: RoleAdmin},
		{Canonical: RoleStudent},
		{Canonical: RoleStaff},
		{Canonical: RoleWarden},
		{Canonical: RoleCampusAdmin, Aliases: []string{"director"}},
		{Canonical: RoleOS, Aliases: []string{"ao"}},
	}
}

// RoleTable resolves role names. It is immutable after construction and is
// passed explicitly to every component that compares role names.
type RoleTable struct {
	lookup  map[string]Role   // any known name -> canonical
	aliases map[Role][]string // canonical -> sorted aliases
}

// NewRoleTable builds a table. A name may belong to one identity only.
func NewRoleTable(identities ...RoleIdentity) (*RoleTable, error) {
	t := &RoleTable{
		lookup:  make(map[string]Role),
		aliases: make(map[Role][]string),
	}
	for _, id := range identities {
		canonical := Role(normalizeRoleName(string(id.Canonical)))
		if canonical == "" {
			return nil, fmt.Errorf("role identity with empty canonical name")
		}
		if err := t.bind(string(canonical), canonical); err != nil {
			return nil, err
		}
		if _, ok := t.aliases[canonical]; !ok {
			t.aliases[canonical] = nil
		}
		for _, a := range id.Aliases {
			name := normalizeRoleName(a)
			if name == "" || t.lookup[name] == canonical {
				continue
			}
			if err := t.bind(name, canonical); err != nil {
				return nil, err
			}
			t.aliases[canonical] = append(t.aliases[canonical], name)
		}
		sort.Strings(t.aliases[canonical])
	}
	return t, nil
}

// DefaultRoleTable returns the table built from DefaultIdentities.
func DefaultRoleTable() *RoleTable {
	t, err := NewRoleTable(DefaultIdentities()...)
	if err != nil {
		panic(err) // static table
	}
	return t
}

func (t *RoleTable) bind(name string, canonical Role) error {
	if existing, ok := t.lookup[name]; ok && existing != canonical {
		return fmt.Errorf("role name %q bound to both %q and %q", name, existing, canonical)
	}
	t.lookup[name] = canonical
	return nil
}

// Canonicalize maps a canonical name or alias to its canonical Role.
// Matching ignores case and surrounding whitespace.
func (t *RoleTable) Canonicalize(name string) (Role, error) {
	if r, ok := t.lookup[normalizeRoleName(name)]; ok {
		return r, nil
	}
	return "", &UnknownRoleError{Name: name}
}

// Expand returns the canonical role followed by all of its aliases.
func (t *RoleTable) Expand(name string) ([]string, error) {
	r, err := t.Canonicalize(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, 1+len(t.aliases[r]))
	out = append(out, string(r))
	out = append(out, t.aliases[r]...)
	return out, nil
}

// Aliases returns the legacy names of a canonical role.
func (t *RoleTable) Aliases(r Role) []string {
	return append([]string(nil), t.aliases[r]...)
}

// Same reports whether two names denote the same authority. Unknown names
// are never the same as anything.
func (t *RoleTable) Same(a, b string) bool {
	ra, err := t.Canonicalize(a)
	if err != nil {
		return false
	}
	rb, err := t.Canonicalize(b)
	if err != nil {
		return false
	}
	return ra == rb
}

// CanonicalFlow canonicalizes a flow that may have been persisted under an
// older naming scheme, dropping duplicates while keeping order.
func (t *RoleTable) CanonicalFlow(names []string) ([]Role, error) {
	seen := make(map[Role]bool, len(names))
	out := make([]Role, 0, len(names))
	for _, n := range names {
		r, err := t.Canonicalize(n)
		if err != nil {
			return nil, err
		}
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out, nil
}

func normalizeRoleName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ParseRoleAliases parses "campus_admin=director,principal;os=ao" into
// identities, merged over DefaultIdentities.
func ParseRoleAliases(raw string) ([]RoleIdentity, error) {
	ids := DefaultIdentities()
	index := make(map[Role]int, len(ids))
	for i, id := range ids {
		index[id.Canonical] = i
	}
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		canonical, aliases, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("role alias entry %q: want canonical=alias[,alias]", part)
		}
		role := Role(normalizeRoleName(canonical))
		var names []string
		for _, a := range strings.Split(aliases, ",") {
			if a = strings.TrimSpace(a); a != "" {
				names = append(names, a)
			}
		}
		if i, ok := index[role]; ok {
			ids[i].Aliases = append(ids[i].Aliases, names...)
			continue
		}
		index[role] = len(ids)
		ids = append(ids, RoleIdentity{Canonical: role, Aliases: names})
	}
	return ids, nil
}
