// Package auth provides the credential and session layer of the storefront
// backend: bcrypt password hashing, HS256 access token issuance and
// verification, request authentication and role gating.
//
// Request authentication:
//   - Authenticator runs one pass per request: extract the bearer token,
//     verify it with a TokenValidator (usually TokenService), optionally
//     re-resolve the subject through an IdentityResolver, and expose the
//     resulting Identity through the request context. Every rejection is
//     terminal; MissingToken and InvalidToken both surface as "unauthorized"
//     while the underlying cause stays in the error chain for logging.
//   - RoleGuard is evaluated strictly after authentication and reports
//     ErrInsufficientRole, a distinct "forbidden" outcome.
//
// Accounts:
//   - AccountService implements register, login and profile updates against
//     an injected UserStore. Login never reveals whether the email exists.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by AccountService and
//     Authenticator. Sinks run best-effort (errors are logged) so you can
//     forward to metrics or a queue without blocking authentication.
package auth
