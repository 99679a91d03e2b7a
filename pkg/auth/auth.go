// Package auth carries the caller identity through engine operations and
// defines the authorization contract consumed by the engines.
package auth

import "slices"

// Root is the built-in superuser identity.
const Root = "root@system"

// AdminGroup members are administrators regardless of other group membership.
const AdminGroup = "admins"

// Identity is the authenticated caller of an engine operation.
type Identity struct {
	Email  string   `json:"email"`
	Groups []string `json:"groups,omitempty"`
	Tenant string   `json:"tenant,omitempty"`
}

// Impersonate returns a copy of the identity running as another principal,
// keeping the original tenant. Used for features declaring run-as.
func (i Identity) Impersonate(email string) Identity {
	return Identity{Email: email, Groups: i.Groups, Tenant: i.Tenant}
}

// Authorizer resolves group membership and administrator status for an
// identity. Group resolution backends are external to the engine.
type Authorizer interface {
	IsAdmin(identity Identity) bool
	IsInGroup(identity Identity, group string) bool
}

// GroupAuthorizer is an Authorizer backed by the groups carried on the
// identity itself, optionally augmented by a static membership table.
type GroupAuthorizer struct {
	memberships map[string][]string // email -> extra groups
}

// NewGroupAuthorizer creates an authorizer with an optional static
// email-to-groups table layered over the identity's own groups.
func NewGroupAuthorizer(memberships map[string][]string) *GroupAuthorizer {
	if memberships == nil {
		memberships = make(map[string][]string)
	}

	return &GroupAuthorizer{memberships: memberships}
}

func (a *GroupAuthorizer) IsAdmin(identity Identity) bool {
	if identity.Email == Root {
		return true
	}

	return a.IsInGroup(identity, AdminGroup)
}

func (a *GroupAuthorizer) IsInGroup(identity Identity, group string) bool {
	if slices.Contains(identity.Groups, group) {
		return true
	}

	return slices.Contains(a.memberships[identity.Email], group)
}

// InAnyGroup reports whether the identity belongs to at least one of the
// given groups.
func InAnyGroup(authorizer Authorizer, identity Identity, groups []string) bool {
	for _, group := range groups {
		if authorizer.IsInGroup(identity, group) {
			return true
		}
	}

	return false
}
