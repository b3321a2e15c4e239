package protocol

import "time"

// Snapshots go stale once the next poll has replaced them; activity samples
// even sooner.
var defaultTTLs = map[string]time.Duration{
	TypeNodeConfig:      5 * time.Minute,
	TypeFullNode:        5 * time.Minute,
	TypeLastTask:        10 * time.Minute,
	TypeNetworkActivity: 90 * time.Second,
}

// FallbackTTL is used when no specific TTL is configured.
const FallbackTTL = 10 * time.Minute

// DefaultTTLFor returns the default TTL for a message type.
func DefaultTTLFor(msgType string) time.Duration {
	if ttl, ok := defaultTTLs[msgType]; ok {
		return ttl
	}
	return FallbackTTL
}

// IsExpired reports whether env had passed its expiry at now. An envelope
// without an expiry never expires.
func IsExpired(env *Envelope, now time.Time) bool {
	return !env.ExpiresAt.IsZero() && now.After(env.ExpiresAt)
}
