// Package csrf provides CSRF protection for the platform's HTTP API using
// the double-submit cookie pattern.
//
// Two cookies carry the token: a canonical HTTP-only cookie (the trust
// anchor) and a script-readable mirror with the identical value. The
// front end copies the mirror's value into the X-CSRF-Token header on
// every state-changing request; an attacker's page can do neither
// cross-origin.
//
// How it works
//   - Issue runs on every request: if the canonical cookie is absent or
//     empty it generates a random token and sets both cookies, then
//     injects the token into the request context (TokenFromContext).
//     Issuance never rejects a request and never replaces an existing
//     token, so repeated requests keep the same token for the life of
//     the cookie.
//   - Verify runs after Issue: safe methods (GET, HEAD, OPTIONS) and
//     routes matching an ExemptRule (webhook receivers, the public
//     widget ingress) pass through. Everything else must present the
//     cookie and the header with equal values; the comparison is done
//     in constant time. Failures answer 403 with a JSON body carrying a
//     machine-readable code (CSRF_TOKEN_MISSING, CSRF_TOKEN_INVALID).
//
// # Configuration
//
// All behavior is driven by Config. Key fields include:
//   - CookieName (default "__Host-csrf-token" when Secure),
//     ReadableCookieName, CookiePath, CookieSecure, CookieSameSite,
//     CookieMaxAge
//   - HeaderName (default: "X-CSRF-Token")
//   - Exempt: ordered (methods, path-prefix) rules, first match wins
//   - EnforceOriginCheck and AllowedOrigin (empty means the request host)
//   - TokenBytes (default: 32)
//   - Logger and Metrics for observability
//
// Typical usage
//
//	p := csrf.New(csrf.Config{
//	    CookieSecure: true,
//	    Exempt: []csrf.ExemptRule{
//	        {Prefix: "/api/webhooks/"},
//	        {Methods: []string{"POST"}, Prefix: "/api/widget/"},
//	    },
//	})
//	protected := p.Protect(appMux) // Issue + Verify
//	http.ListenAndServe(":8080", protected)
//
// SPAs fetch the current token from a JSON endpoint when parsing the
// readable cookie is inconvenient:
//
//	r.Get("/api/csrf-token", p.TokenHandler().ServeHTTP)
//
// The endpoint answers 400 CSRF_TOKEN_NOT_FOUND until the client has
// received a token via any prior GET.
package csrf
