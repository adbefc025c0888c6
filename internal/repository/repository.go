// Package repository holds the session state backends: an in-process map,
// DynamoDB and Postgres. All of them expire idle sessions after a TTL and
// return the Idle state for sessions they do not know.
package repository

import (
	"strings"
	"time"
)

const defaultTTL = 30 * time.Minute

var now = func() time.Time { return time.Now().UTC() }

func resolveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return defaultTTL
	}
	return ttl
}

func validSessionID(id string) bool {
	return strings.TrimSpace(id) != ""
}
