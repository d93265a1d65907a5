// Package jwt issues and verifies the short-lived bearer tokens that authorize the throttle
// admin endpoints (single-pair and subject-wide resets).
//
// Tokens carry the operator as the subject and a scope list; the reset endpoints require
// [ScopeReset]. HS256 shared secrets and Ed25519 key pairs with kid rotation are supported.
package jwt
