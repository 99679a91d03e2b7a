package web

import (
	"strings"

	"github.com/archonhq/archon/pkg/auth"
	"github.com/gofiber/fiber/v3"
)

// Identity headers set by the authenticating reverse proxy. Archon trusts
// the proxy; requests without an email header are rejected.
const (
	HeaderUserEmail  = "X-User-Email"
	HeaderUserGroups = "X-User-Groups"
	HeaderTenant     = "X-Tenant"
)

func callerIdentity(c fiber.Ctx) (auth.Identity, bool) {
	email := strings.TrimSpace(c.Get(HeaderUserEmail))
	if email == "" {
		return auth.Identity{}, false
	}

	var groups []string

	for _, group := range strings.Split(c.Get(HeaderUserGroups), ",") {
		group = strings.TrimSpace(group)
		if group != "" {
			groups = append(groups, group)
		}
	}

	return auth.Identity{
		Email:  email,
		Groups: groups,
		Tenant: strings.TrimSpace(c.Get(HeaderTenant)),
	}, true
}
