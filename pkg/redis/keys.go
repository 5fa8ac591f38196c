package redis

import "strings"

const keyNamespace = "tb"

// IdempotencyKey names the marker for one handled id within scope.
func (c *Client) IdempotencyKey(scope, id string) string {
	return key("idempotency", scope, id)
}

// RateLimitKey names the counter of one rate limit scope.
func (c *Client) RateLimitKey(scope string) string {
	return key("rate_limit", scope)
}

// RevokedTokenKey names the marker of a revoked token id.
func (c *Client) RevokedTokenKey(tokenID string) string {
	return key("revoked", tokenID)
}

func key(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			b.WriteByte(':')
			b.WriteString(p)
		}
	}
	return b.String()
}
