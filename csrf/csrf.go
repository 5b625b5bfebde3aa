package csrf

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
)

// Methods that require CSRF protection
var unsafeMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Issue guarantees every response carries a valid CSRF token pair.
//
// Behavior:
//   - If the canonical cookie is absent or empty, generates a new random
//     token and sets it into both the canonical (HTTP-only) cookie and the
//     script-readable mirror. Existing tokens pass through unchanged.
//   - Always injects the token into the request context so downstream
//     handlers can read it via TokenFromContext.
//   - Never rejects a request.
//
// Params:
// - next: downstream handler, always called once the cookie pair exists.
//
// Returns:
// - An http.Handler that performs token issuance before delegating to next.
func (p *Protector) Issue(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, err := p.ensureCookieToken(w, r)
		if err != nil {
			http.Error(w, "failed to set CSRF cookie", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithToken(r.Context(), tok)))
	})
}

// Verify gates state-changing requests behind proof that the caller can
// read the cookie and echo it in the request header.
//
// Behavior:
//   - Safe methods (GET/HEAD/OPTIONS) bypass validation entirely.
//   - Requests matching an ExemptRule bypass validation regardless of
//     method.
//   - All other requests must carry the canonical cookie and the header;
//     the two values are compared in constant time. Failures are terminal
//     for the request and answered with a JSON error body.
//
// Params:
// - next: downstream handler executed only after validation passes.
//
// Returns:
// - An http.Handler that performs the CSRF check before delegating to next.
func (p *Protector) Verify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := p.cfg

		// safe methods are allowed through unconditionally
		if !unsafeMethods[r.Method] {
			next.ServeHTTP(w, r)
			return
		}

		for _, rule := range cfg.Exempt {
			if rule.matches(r) {
				next.ServeHTTP(w, r)
				return
			}
		}

		// Origin/Referer validation (if enabled)
		if cfg.EnforceOriginCheck {
			if err := validateOriginOrReferer(r, cfg.AllowedOrigin); err != nil {
				p.reject(w, r, http.StatusForbidden, CodeTokenInvalid,
					"request origin is not allowed", "bad_origin")
				return
			}
		}

		cookieToken := ""
		if c, err := r.Cookie(cfg.CookieName); err == nil {
			cookieToken = c.Value
		}
		if cookieToken == "" {
			p.reject(w, r, http.StatusForbidden, CodeTokenMissing,
				"CSRF token cookie is missing; make any GET request to obtain one", "missing_cookie")
			return
		}

		headerToken := r.Header.Get(cfg.HeaderName)
		if headerToken == "" {
			p.reject(w, r, http.StatusForbidden, CodeTokenMissing,
				"CSRF token header "+cfg.HeaderName+" is missing", "missing_header")
			return
		}

		// time-constant compare
		if subtle.ConstantTimeCompare([]byte(headerToken), []byte(cookieToken)) != 1 {
			p.reject(w, r, http.StatusForbidden, CodeTokenInvalid,
				"CSRF token does not match the session token", "mismatch")
			return
		}

		if cfg.Metrics != nil {
			cfg.Metrics.Accepted.Inc()
		}
		next.ServeHTTP(w, r)
	})
}

// Protect composes Issue and Verify, the common single-wrap usage for
// routers that apply one middleware to a whole subtree.
func (p *Protector) Protect(next http.Handler) http.Handler {
	return p.Issue(p.Verify(next))
}

func (p *Protector) reject(w http.ResponseWriter, r *http.Request, status int, code, message, reason string) {
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.Rejected.WithLabelValues(reason).Inc()
	}
	if p.cfg.Logger != nil {
		// never log the token value itself
		p.cfg.Logger.Warn("csrf rejection",
			"method", r.Method,
			"path", r.URL.Path,
			"reason", reason,
		)
	}
	writeError(w, status, code, message)
}

// ensureCookieToken checks for the canonical CSRF cookie on the incoming
// request. If present and non-empty, it returns the cookie value
// unchanged (repeated requests keep the same token). Otherwise it
// generates a new random token and sets both cookies on the response.
//
// Params:
// - w: response writer used to set the cookies when needed.
// - r: incoming request to inspect cookies from.
//
// Returns:
// - token string on success; empty string and error if generation fails.
func (p *Protector) ensureCookieToken(w http.ResponseWriter, r *http.Request) (string, error) {
	cfg := p.cfg

	if c, err := r.Cookie(cfg.CookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}

	tok, err := newToken(cfg.TokenBytes)
	if err != nil {
		return "", err
	}

	// canonical cookie: the trust anchor, unreadable by scripts
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    tok,
		Path:     cfg.CookiePath,
		MaxAge:   cfg.CookieMaxAge,
		SameSite: cfg.CookieSameSite,
		Secure:   cfg.CookieSecure,
		HttpOnly: true,
	})
	// readable mirror: same value, surfaced so the front end can echo it
	// back in the request header
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.ReadableCookieName,
		Value:    tok,
		Path:     cfg.CookiePath,
		MaxAge:   cfg.CookieMaxAge,
		SameSite: cfg.CookieSameSite,
		Secure:   cfg.CookieSecure,
		HttpOnly: false,
	})

	if cfg.Metrics != nil {
		cfg.Metrics.Issued.Inc()
	}
	return tok, nil
}

// TokenFromContext returns the CSRF token stored in ctx, if present.
func TokenFromContext(ctx context.Context) (string, bool) {
	return tokenFromContext(ctx)
}

// tokenResponse is the body of a successful token retrieval.
type tokenResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// TokenHandler returns the HTTP handler behind GET /api/csrf-token. It
// reads the canonical cookie from the request itself, not from the
// context: a client that has never been issued a token gets 400 even when
// the issuer sets a fresh cookie on this same response, and must retry
// after any GET.
//
// Returns:
// - http.Handler that responds with {"csrfToken": "..."} as JSON.
func (p *Protector) TokenHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(p.cfg.CookieName)
		if err != nil || c.Value == "" {
			writeError(w, http.StatusBadRequest, CodeTokenNotFound,
				"no CSRF token has been issued yet; make any GET request first")
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(tokenResponse{CSRFToken: c.Value})
	})
}

// validateOriginOrReferer checks whether the request is same-site
// according to the allowed host policy. When allowed is empty, it falls
// back to r.Host. It prefers the Origin header; if empty, it falls back
// to Referer.
func validateOriginOrReferer(r *http.Request, allowed string) error {
	host := allowed
	if host == "" {
		host = r.Host
	}

	origin := r.Header.Get("Origin")
	ref := r.Header.Get("Referer")

	if origin == "" && ref == "" {
		return errors.New("no origin/referer")
	}
	if origin != "" && !sameSite(origin, host) {
		return errors.New("bad origin")
	}
	if origin == "" && ref != "" && !sameSite(ref, host) {
		return errors.New("bad referer")
	}
	return nil
}
