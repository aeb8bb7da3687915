// Package account provides the account lifecycle core for a user backend:
// database-backed session tokens, transactional registration with email
// activation, and single-use password reset secrets.
//
// Session tokens:
//   - Tokens are opaque random strings persisted through Bun. TokenManager
//     issues, verifies (with a sliding 7 day expiration window), and revokes
//     them; TokenSweeper removes stale rows on a fixed interval for the
//     lifetime of the host process.
//
// Registration:
//   - RegisterUserHandler creates the user row and dispatches the activation
//     email inside one store transaction. A rejected dispatch rolls the user
//     row back, so a failed registration leaves no trace.
//
// Password reset:
//   - InitializePasswordResetHandler persists the reset secret before
//     dispatching the notification; FinalizePasswordResetHandler consumes the
//     secret, rehashes the password, reactivates the account, and revokes
//     every open session for the user.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther and the
//     command handlers to describe login, registration, activation, and reset
//     events. Sinks run best-effort (errors are logged) so you can forward to
//     a database or queue without blocking authentication.
package account
