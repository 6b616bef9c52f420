package identity

// GenerateAuthID formats a provider-scoped auth id:
//
//	GenerateAuthID("own", "alice", "")                     == "own:alice"
//	GenerateAuthID("appengine_openid", "123", "google")    == "appengine_openid#google:123"
//
// extra namespaces subtypes of one provider (e.g. the OpenID issuer).
func GenerateAuthID(provider, identifier, extra string) string {
	if extra != "" {
		return provider + "#" + extra + ":" + identifier
	}
	return provider + ":" + identifier
}
