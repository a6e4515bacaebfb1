package models

import (
	"strings"
	"time"
)

// EndpointClass groups routes that share a per-IP budget.
type EndpointClass string

const (
	// ClassGlobal applies to every route.
	ClassGlobal EndpointClass = "global"
	// ClassMigration applies to account migration on top of the global budget.
	ClassMigration EndpointClass = "migration"
)

// Limit is a sliding-window budget.
type Limit struct {
	RequestsPerWindow int
	Window            time.Duration
}

// Result is the outcome of one check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds, only set when not allowed
}

// ExceededResponse is the 429 body.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// NewIPKey builds the bucket key for ip in class.
func NewIPKey(class EndpointClass, ip string) string {
	return "ip:" + string(class) + ":" + SanitizeKeySegment(ip)
}

// SanitizeKeySegment replaces the key delimiter so a crafted identifier
// cannot address another bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
