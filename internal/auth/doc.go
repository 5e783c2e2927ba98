// Package auth holds the credential primitives of the account service:
// password hashing, signed bearer tokens, and the request-scoped principal.
//
// Password hashes are produced by a Hasher chosen from configuration
// (bcrypt or argon2id). Verification inspects the stored hash prefix, so
// hashes written under either algorithm keep verifying after a switch.
//
// Bearer tokens are HS256 JWTs whose "sub" claim is the principal id. The
// signature only proves the string was minted here; a token is live only
// while it is the one stored for its principal.
package auth
