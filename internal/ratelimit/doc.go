// Package ratelimit implements the per-principal fixed-window limiter that
// guards calls to the AI scoring service.
//
// A counter is created by the first request of a window and lives until its
// TTL expires; expiry alone decides when a new window starts. The count is
// incremented before it is compared, so rejected requests are still counted.
// A burst straddling a window boundary can admit up to twice the limit.
package ratelimit
