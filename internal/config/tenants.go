package config

import (
	"strings"

	"github.com/google/uuid"
)

// DefaultTenant returns the tenant UUID requests fall back to when they carry
// no tenant hint. An unset or unparseable default_tenant_id yields the nil
// UUID, matching a single-tenant deployment.
func (c *Config) DefaultTenant() uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(c.DefaultTenantID))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// TenantMap parses the tenant_slugs setting into a slug-to-UUID map.
// Format: "slug=uuid,slug=uuid". Malformed entries are skipped so a single
// typo does not take the whole map down.
func (c *Config) TenantMap() map[string]uuid.UUID {
	return ParseTenantSlugs(c.TenantSlugs)
}

// ParseTenantSlugs parses a comma-separated slug=uuid list.
func ParseTenantSlugs(raw string) map[string]uuid.UUID {
	slugs := make(map[string]uuid.UUID)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		slug, idStr, found := strings.Cut(entry, "=")
		if !found || slug == "" {
			continue
		}
		id, err := uuid.Parse(strings.TrimSpace(idStr))
		if err != nil {
			continue
		}
		slugs[slug] = id
	}
	return slugs
}

// ResolveTenant maps a request-supplied tenant hint to a tenant UUID.
//
// Resolution order:
//  1. Empty hint resolves to the configured default tenant.
//  2. A hint that parses as a UUID is used directly.
//  3. Otherwise the hint is looked up as a slug in the tenant map.
//  4. Unknown slugs fall back to the default tenant; the capsule layer's
//     policy-tenant cross-check turns a wrong-tenant read into a miss.
func (c *Config) ResolveTenant(hint string) uuid.UUID {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return c.DefaultTenant()
	}
	if id, err := uuid.Parse(hint); err == nil {
		return id
	}
	if id, ok := c.TenantMap()[hint]; ok {
		return id
	}
	return c.DefaultTenant()
}
