// Package authtoken issues and checks purpose-scoped tokens.
//
// A token belongs to a subject (a user id or an auth id) and carries a free
// text purpose such as "session", "signup" or "reset-password". A subject may
// hold many live tokens per purpose. Only a hash of the token value is
// stored; the value itself is returned to the caller once, on Create.
//
// Tokens expire by age. The service-wide MaxAge applies unless a purpose has
// its own override. Expired tokens read as absent and are removed by Purge.
package authtoken
