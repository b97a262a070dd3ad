// Package session is the client-side authentication session of a web
// application: it remembers who the user is between runs, resolves and
// refreshes the identity behind a stored token, and decides what a guarded
// view may show.
//
// State machine:
//   - StateMachine is the only writer of the session. Readers take immutable
//     Snapshot copies or Subscribe to changes. Statuses move from
//     bootstrapping to anonymous, or through resolving to active or error.
//   - Requests that can change the identity carry sequence tickets so a late
//     response never overwrites the result of a newer request. Sign-out is
//     always applied and cannot be undone by an in-flight response.
//   - An Unauthorized answer to any authenticated call signs the session out
//     locally without reporting an error.
//
// Guard:
//   - Guard.Evaluate is a pure function from a Snapshot and a Requirement to
//     a Decision (render, redirect, interstitial or loading). Router binds
//     paths to requirements and remembers the page a signed out user asked
//     for. The guard is a convenience for navigation only; the backend must
//     authorize every request on its own.
//
// Activity sinks:
//   - ActivitySink receives an event for every status transition and
//     operation outcome. Sinks run best-effort (errors are logged) so they can
//     feed metrics or audit logs without blocking the session.
//
// Storage:
//   - Store persists the token under DefaultStorageKey. The store packages
//     provide memory, YAML file and SQLite implementations; none of them
//     encrypt the token.
package session
