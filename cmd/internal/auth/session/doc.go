// Package session implements warden's server-side sessions.
//
// A session is created anonymous and carries a free-form data tree
// (value.Map). It is upgraded to a user session after login: the record is
// re-keyed under the user id, keeping its data, and the anonymous record is
// removed in the same step.
//
// Every session stores a content hash over (id, user id, data). The hash is
// insensitive to map key order at any depth, which lets Save skip writes for
// unchanged sessions and lets callers detect tampered records (Intact).
//
// The client holds only a PASETO v4.public blob naming the session and its
// user; the data never leaves the server. Inactive sessions are removed by
// RemoveInactive.
package session
