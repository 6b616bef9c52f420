// Package identity implements warden's user records.
//
// A user is reachable through several auth ids (one per credential
// provider) and owns a set of emails. Global uniqueness of auth ids, emails
// and selected attributes is enforced with claim records from package
// unique rather than with database indexes, so the same rules hold on every
// storage backend.
//
// The Service composes the claim registry, password profiles and the token
// service. It holds no locks of its own; the atomic claim insert is the only
// coordination point between concurrent requests.
package identity
