// Package auth implements the authentication and session lifecycle for the
// portal backend: registration, login, single-use refresh-token rotation,
// logout, email verification, and the password reset flow.
//
// Access tokens are signed HS256 JWTs carrying uid and role claims. Refresh
// tokens are opaque random strings persisted server side; presenting one
// revokes it atomically before a replacement is issued, so a stolen or
// replayed refresh token can win at most once.
//
// The companion packages build the edge pipeline around this core:
// middleware/authware is the bearer-token request filter, ratelimit and
// middleware/ratelimitware provide the per-key token buckets, and gateway
// wires filter, limiter tiers, and the auth routes into one fiber app.
package auth
