package auth

import (
	"context"
	"sort"
	"strings"
)

// Capability is a named permission a Role may grant.
type Capability string

const (
	CapabilityManageUsers     Capability = "users.manage"
	CapabilityResetPasswords  Capability = "users.reset_password"
	CapabilityApproveDeletion Capability = "deletions.approve"
	// CapabilityDeleteRecords is granted by Role.can_delete rather than listed.
	CapabilityDeleteRecords Capability = "records.delete"
)

var knownCapabilities = map[Capability]struct{}{
	CapabilityManageUsers:     {},
	CapabilityResetPasswords:  {},
	CapabilityApproveDeletion: {},
	CapabilityDeleteRecords:   {},
}

func (c Capability) Valid() bool {
	_, ok := knownCapabilities[c]
	return ok
}

// ManagerCapabilities is the set granted to the Owner and Manager roles.
func ManagerCapabilities() []Capability {
	return []Capability{CapabilityManageUsers, CapabilityResetPasswords, CapabilityApproveDeletion}
}

// ParseCapabilities reads the comma separated column form, dropping unknown names.
func ParseCapabilities(raw string, canDelete bool) []Capability {
	seen := make(map[Capability]struct{})
	var caps []Capability
	add := func(c Capability) {
		if _, dup := seen[c]; dup || !c.Valid() {
			return
		}
		seen[c] = struct{}{}
		caps = append(caps, c)
	}
	for _, part := range strings.Split(raw, ",") {
		add(Capability(strings.TrimSpace(part)))
	}
	if canDelete {
		add(CapabilityDeleteRecords)
	}
	return caps
}

// FormatCapabilities is the inverse of ParseCapabilities; records.delete is
// carried by can_delete and never stored in the list.
func FormatCapabilities(caps []Capability) string {
	names := make([]string, 0, len(caps))
	seen := make(map[Capability]struct{})
	for _, c := range caps {
		if c == CapabilityDeleteRecords || !c.Valid() {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		names = append(names, string(c))
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// Principal is the authenticated caller handed explicitly to every service call.
type Principal struct {
	UserID       int64        `json:"user_id"`
	Username     string       `json:"username"`
	EmployeeID   string       `json:"employee_id"`
	RoleID       *int64       `json:"role_id,omitempty"`
	RoleName     string       `json:"role,omitempty"`
	Capabilities []Capability `json:"capabilities"`
}

func (p Principal) Can(c Capability) bool {
	for _, have := range p.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// ActorID is the audit actor; the system principal has none.
func (p Principal) ActorID() *int64 {
	if p.UserID == 0 {
		return nil
	}
	id := p.UserID
	return &id
}

// SystemPrincipal acts for maintenance commands such as the seeder.
func SystemPrincipal() Principal {
	caps := append(ManagerCapabilities(), CapabilityDeleteRecords)
	return Principal{Username: "system", Capabilities: caps}
}

type ctxKey string

const ContextPrincipalKey ctxKey = "auth.principal"

func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ContextPrincipalKey, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(ContextPrincipalKey).(Principal)
	return p, ok
}
