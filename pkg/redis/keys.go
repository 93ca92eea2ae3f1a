package redis

import "strings"

// All keys live under "pos:". Layout:
//
//	pos:cart:<jti>                      open cart of a terminal session
//	pos:session:access:<jti>            refresh-token digest
//	pos:idempotency:<scope>:<key>       replayable responses, event dedupe
//	pos:rate_limit:<scope>              fixed-window counters
//	pos:lock:<name>:<env>               single-runner locks
const keyNamespace = "pos"

const (
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	sessionPrefix     = "session"
	cartPrefix        = "cart"
	lockPrefix        = "lock"
)

func (c *Client) IdempotencyKey(scope, id string) string {
	return joinKey(idempotencyPrefix, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return joinKey(rateLimitPrefix, scope)
}

func (c *Client) AccessSessionKey(accessID string) string {
	return joinKey(sessionPrefix, "access", accessID)
}

func (c *Client) CartKey(sessionID string) string {
	return joinKey(cartPrefix, sessionID)
}

func (c *Client) LockKey(name, env string) string {
	return joinKey(lockPrefix, name, env)
}

// joinKey drops blank segments so a missing id never yields "a::b".
func joinKey(parts ...string) string {
	segments := make([]string, 0, len(parts)+1)
	segments = append(segments, keyNamespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			segments = append(segments, part)
		}
	}
	return strings.Join(segments, ":")
}
