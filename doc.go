// Package sessions issues and revokes stateless session credentials for a
// web application.
//
// Tokens are signed JWTs carrying exactly a user id and that user's version
// counter. The counter lives on the user record and is bumped on every
// security-relevant mutation (email change, credential change, external
// identity link), so revocation is a single integer comparison against the
// live record rather than a token blacklist:
//   - Mint embeds the version current at issuance.
//   - Verification checks signature and expiry offline, then fetches the user
//     and rejects the token when the embedded version no longer matches.
//
// The cookie transport wraps tokens in a fixed-policy "token" cookie
// (HttpOnly, Secure, 30 day expiry). Logout deletes the cookie only; it never
// bumps the version, so sessions on other devices stay valid.
//
// The external sub-package implements sign-in/sign-up through third-party
// identity providers, linking provider-asserted identities to local accounts
// by normalized email or creating the account and link atomically.
package sessions
