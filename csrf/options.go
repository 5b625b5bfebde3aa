package csrf

import (
	"log/slog"
	"net/http"
	"strings"
)

// Default cookie and header names. These are part of the surface consumed
// by the dashboard and the embed widget; renaming them breaks deployed
// clients.
const (
	DefaultCookieName         = "__Host-csrf-token"
	DefaultInsecureCookieName = "csrf-token"
	DefaultReadableCookieName = "csrf-token-readable"
	DefaultHeaderName         = "X-CSRF-Token"
)

// ExemptRule excludes requests from token validation. Methods is the set
// of HTTP methods the rule applies to; empty means any method. Prefix is
// matched against the request path. Rules are evaluated in order, first
// match wins.
type ExemptRule struct {
	Methods []string
	Prefix  string
}

func (e ExemptRule) matches(r *http.Request) bool {
	if !strings.HasPrefix(r.URL.Path, e.Prefix) {
		return false
	}
	if len(e.Methods) == 0 {
		return true
	}
	for _, m := range e.Methods {
		if strings.EqualFold(m, r.Method) {
			return true
		}
	}
	return false
}

type Config struct {
	// Cookie pair. CookieName is the canonical HTTP-only cookie; the
	// readable cookie mirrors its value so scripts can copy it into the
	// request header. Both always hold identical values.
	CookieName         string
	ReadableCookieName string
	CookiePath         string
	CookieSecure       bool
	CookieSameSite     http.SameSite
	CookieMaxAge       int // in seconds

	// Token transport
	HeaderName string // e.g.: "X-CSRF-Token"

	// Routes excluded from validation regardless of method: inbound
	// webhook receivers, the public widget ingress. These authenticate
	// by other means (provider signatures) or are intentionally public.
	Exempt []ExemptRule

	// Extra security
	EnforceOriginCheck bool
	AllowedOrigin      string // if empty, uses r.Host

	// Entropy
	TokenBytes int

	// Observability, both optional.
	Logger  *slog.Logger
	Metrics *Metrics
}

type Protector struct {
	cfg Config
}

func New(cfg Config) *Protector {
	// reasonable defaults
	if cfg.CookieName == "" {
		if cfg.CookieSecure {
			cfg.CookieName = DefaultCookieName
		} else {
			// browsers reject the __Host- prefix on non-Secure cookies
			cfg.CookieName = DefaultInsecureCookieName
		}
	}
	if cfg.ReadableCookieName == "" {
		cfg.ReadableCookieName = DefaultReadableCookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}
	if cfg.TokenBytes <= 0 {
		cfg.TokenBytes = 32
	}
	if cfg.CookieMaxAge == 0 {
		cfg.CookieMaxAge = 30 * 24 * 60 * 60
	}
	if cfg.CookieSameSite == 0 {
		cfg.CookieSameSite = http.SameSiteStrictMode
	}
	return &Protector{cfg: cfg}
}
