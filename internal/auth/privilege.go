// privilege.go decides whether a Discord user may use the admin surface.
// Verdicts come from the role-lookup service and are cached; when the
// service is unreachable a previously cached verdict keeps serving even
// past its freshness window, so a role-service outage does not lock out
// staff who were recently authorized.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tavernkeep/tavernkeep/internal/cache"
)

// RoleLookup answers whether a user currently holds a privileged guild role.
type RoleLookup interface {
	HasPrivilegedRole(ctx context.Context, userID string) (bool, error)
}

// PrivilegeChecker caches role-lookup verdicts per user.
type PrivilegeChecker struct {
	lookup   RoleLookup
	verdicts *cache.TTL[string, bool]
}

// NewPrivilegeChecker wires a checker over the given lookup. ttl controls
// how long a verdict is considered fresh.
func NewPrivilegeChecker(lookup RoleLookup, ttl time.Duration) *PrivilegeChecker {
	return &PrivilegeChecker{
		lookup:   lookup,
		verdicts: cache.NewTTL[string, bool](ttl),
	}
}

// IsPrivileged reports whether the user may perform admin operations.
// A fresh cached verdict is returned directly. On lookup failure a stale
// cached verdict is served as last known good; with no cached verdict at
// all the lookup error propagates and the caller should deny.
func (p *PrivilegeChecker) IsPrivileged(ctx context.Context, userID string) (bool, error) {
	verdict, fresh, ok := p.verdicts.Get(userID)
	if ok && fresh {
		return verdict, nil
	}

	allowed, err := p.lookup.HasPrivilegedRole(ctx, userID)
	if err != nil {
		if ok {
			slog.Warn("role lookup failed, serving cached verdict",
				"user_id", userID,
				"error", err)
			return verdict, nil
		}
		return false, fmt.Errorf("role lookup: %w", err)
	}

	p.verdicts.Set(userID, allowed)
	return allowed, nil
}

// Invalidate drops the cached verdict for one user, forcing a fresh lookup
// on their next request. Used when staff roles are changed.
func (p *PrivilegeChecker) Invalidate(userID string) {
	p.verdicts.Invalidate(userID)
}

// RoleServiceClient is the HTTP client for the bot's role-lookup endpoint.
type RoleServiceClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewRoleServiceClient builds a client for the role-lookup service at
// baseURL, authenticating with the shared token.
func NewRoleServiceClient(baseURL, token string, timeout time.Duration) *RoleServiceClient {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &RoleServiceClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type roleVerdict struct {
	Privileged bool `json:"privileged"`
}

// HasPrivilegedRole asks the role service whether the user holds any of the
// configured staff roles.
func (c *RoleServiceClient) HasPrivilegedRole(ctx context.Context, userID string) (bool, error) {
	endpoint := fmt.Sprintf("%s/v1/roles/%s/privileged", c.baseURL, url.PathEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build role lookup request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("role service request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var verdict roleVerdict
		if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
			return false, fmt.Errorf("decode role verdict: %w", err)
		}
		return verdict.Privileged, nil
	case http.StatusNotFound:
		// User unknown to the guild, definitively unprivileged.
		return false, nil
	default:
		return false, fmt.Errorf("role service returned status %d", resp.StatusCode)
	}
}
