package csrf

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func appHandler(p *Protector) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/public", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("/api/protected", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("/api/webhooks/billing", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("/api/widget/messages", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("/api/csrf-token", p.TokenHandler().ServeHTTP)
	return p.Protect(mux)
}

func getCookieByName(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// bootstrap performs a fresh GET and returns the issued token plus the
// canonical cookie.
func bootstrap(t *testing.T, p *Protector) (string, *http.Cookie) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/public", nil)
	appHandler(p).ServeHTTP(rec, req)
	res := rec.Result()
	defer res.Body.Close()
	c := getCookieByName(res, p.cfg.CookieName)
	if c == nil {
		t.Fatalf("missing canonical csrf cookie %q", p.cfg.CookieName)
	}
	return c.Value, c
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return e
}

// A fresh GET must set both cookies with identical values; the canonical
// cookie must be HTTP-only and the mirror must not be.
func TestIssueSetsCookiePair(t *testing.T) {
	p := New(Config{TokenBytes: 16})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/public", nil)
	appHandler(p).ServeHTTP(rec, req)
	res := rec.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	canonical := getCookieByName(res, p.cfg.CookieName)
	readable := getCookieByName(res, p.cfg.ReadableCookieName)
	if canonical == nil || readable == nil {
		t.Fatalf("expected both cookies to be set, got canonical=%v readable=%v", canonical, readable)
	}
	if canonical.Value == "" || canonical.Value != readable.Value {
		t.Fatalf("cookie values must be identical and non-empty: canonical=%q readable=%q",
			canonical.Value, readable.Value)
	}
	if !canonical.HttpOnly {
		t.Fatalf("canonical cookie must be HttpOnly")
	}
	if readable.HttpOnly {
		t.Fatalf("readable cookie must not be HttpOnly")
	}
	if canonical.SameSite != http.SameSiteStrictMode || readable.SameSite != http.SameSiteStrictMode {
		t.Fatalf("both cookies must be SameSite=Strict")
	}
}

// Issuing a token when one already exists must not change its value.
func TestIssueIsIdempotent(t *testing.T) {
	p := New(Config{TokenBytes: 16})
	token, cookie := bootstrap(t, p)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/public", nil)
		req.AddCookie(cookie)
		appHandler(p).ServeHTTP(rec, req)
		res := rec.Result()
		res.Body.Close()
		if c := getCookieByName(res, p.cfg.CookieName); c != nil && c.Value != token {
			t.Fatalf("token changed on repeated GET: got %q want %q", c.Value, token)
		}
	}
}

// Safe methods never get rejected, regardless of cookie/header state.
func TestSafeMethodsAlwaysPass(t *testing.T) {
	p := New(Config{TokenBytes: 16})
	app := appHandler(p)

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		// no cookie, no header
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, httptest.NewRequest(method, "/api/protected", nil))
		if rec.Code == http.StatusForbidden {
			t.Fatalf("%s without token must not be rejected, got %d", method, rec.Code)
		}

		// garbage header, garbage cookie
		rec = httptest.NewRecorder()
		req := httptest.NewRequest(method, "/api/protected", nil)
		req.AddCookie(&http.Cookie{Name: p.cfg.CookieName, Value: "aaa"})
		req.Header.Set(p.cfg.HeaderName, "bbb")
		app.ServeHTTP(rec, req)
		if rec.Code == http.StatusForbidden {
			t.Fatalf("%s with mismatched token must not be rejected, got %d", method, rec.Code)
		}
	}
}

// Exempted prefixes bypass validation regardless of method and token state.
func TestExemptRoutesBypassValidation(t *testing.T) {
	p := New(Config{
		TokenBytes: 16,
		Exempt: []ExemptRule{
			{Prefix: "/api/webhooks/"},
			{Methods: []string{http.MethodPost}, Prefix: "/api/widget/"},
		},
	})
	app := appHandler(p)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/webhooks/billing", strings.NewReader("{}")))
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook POST without token: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/widget/messages", strings.NewReader("{}")))
	if rec.Code != http.StatusOK {
		t.Fatalf("widget POST without token: expected 200, got %d", rec.Code)
	}

	// the widget rule is POST-only; DELETE there is still guarded
	rec = httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/widget/messages", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("widget DELETE without token: expected 403, got %d", rec.Code)
	}
}

// A POST without cookie, without header, or with empty values fails with
// CSRF_TOKEN_MISSING; the messages distinguish cookie from header.
func TestMissingTokenRejections(t *testing.T) {
	p := New(Config{TokenBytes: 16})
	app := appHandler(p)
	token, cookie := bootstrap(t, p)

	// no cookie at all
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/protected", nil)
	req.Header.Set(p.cfg.HeaderName, token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without cookie, got %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != CodeTokenMissing || !strings.Contains(e.Message, "cookie") {
		t.Fatalf("expected %s mentioning cookie, got %+v", CodeTokenMissing, e)
	}

	// empty cookie value
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/protected", nil)
	req.AddCookie(&http.Cookie{Name: p.cfg.CookieName, Value: ""})
	req.Header.Set(p.cfg.HeaderName, token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with empty cookie, got %d", rec.Code)
	}

	// cookie present, header absent
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/protected", nil)
	req.AddCookie(cookie)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without header, got %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != CodeTokenMissing || !strings.Contains(e.Message, p.cfg.HeaderName) {
		t.Fatalf("expected %s mentioning the header, got %+v", CodeTokenMissing, e)
	}
}

// Mismatches fail with CSRF_TOKEN_INVALID, including truncations and
// extensions of the real token.
func TestTokenMismatchRejections(t *testing.T) {
	p := New(Config{TokenBytes: 16})
	app := appHandler(p)
	token, cookie := bootstrap(t, p)

	for _, bad := range []string{
		"wrong-token-12345",
		token[:len(token)-1], // truncation
		token + "x",          // extension
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/protected", nil)
		req.AddCookie(cookie)
		req.Header.Set(p.cfg.HeaderName, bad)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("header %q: expected 403, got %d", bad, rec.Code)
		}
		if e := decodeError(t, rec); e.Code != CodeTokenInvalid {
			t.Fatalf("header %q: expected code %s, got %+v", bad, CodeTokenInvalid, e)
		}
	}
}

// Acceptance depends only on byte-equality: very large tokens and tokens
// full of markup characters pass when cookie and header agree.
func TestAcceptanceIsByteEquality(t *testing.T) {
	p := New(Config{TokenBytes: 16})
	app := appHandler(p)

	for _, token := range []string{
		strings.Repeat("a", 10000),
		`<script>&'</script>`,
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/protected", strings.NewReader("{}"))
		req.AddCookie(&http.Cookie{Name: p.cfg.CookieName, Value: token})
		req.Header.Set(p.cfg.HeaderName, token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("equal cookie/header of len %d: expected 200, got %d", len(token), rec.Code)
		}
	}
}

// The same token is valid across POST, PUT and DELETE within one session.
func TestTokenReuseAcrossMethods(t *testing.T) {
	p := New(Config{TokenBytes: 16})
	app := appHandler(p)
	token, cookie := bootstrap(t, p)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(method, "/api/protected", strings.NewReader("{}"))
		req.AddCookie(cookie)
		req.Header.Set(p.cfg.HeaderName, token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s with valid token: expected 200, got %d", method, rec.Code)
		}
	}
}

// Full round trip: fresh client, rejection without header, acceptance with
// the echoed token.
func TestFreshClientRoundTrip(t *testing.T) {
	p := New(Config{TokenBytes: 16})
	app := appHandler(p)

	// fresh GET sets both cookies with equal values
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/public", nil))
	res := rec.Result()
	res.Body.Close()
	canonical := getCookieByName(res, p.cfg.CookieName)
	readable := getCookieByName(res, p.cfg.ReadableCookieName)
	if canonical == nil || readable == nil || canonical.Value != readable.Value {
		t.Fatalf("fresh GET must set an identical cookie pair")
	}

	// POST without header is rejected
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/protected", nil)
	req.AddCookie(canonical)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without header, got %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != CodeTokenMissing {
		t.Fatalf("expected %s, got %+v", CodeTokenMissing, e)
	}

	// replaying the cookie and echoing the readable value succeeds
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/protected", strings.NewReader("{}"))
	req.AddCookie(canonical)
	req.Header.Set(p.cfg.HeaderName, readable.Value)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with echoed token, got %d", rec.Code)
	}
}

// GET /api/csrf-token answers 400 until a token exists, then returns it.
func TestTokenRetrievalEndpoint(t *testing.T) {
	p := New(Config{TokenBytes: 16})
	app := appHandler(p)

	// no prior cookie: 400 even though this response issues one
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without prior cookie, got %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != CodeTokenNotFound {
		t.Fatalf("expected %s, got %+v", CodeTokenNotFound, e)
	}

	// with an established session the endpoint returns the token
	token, cookie := bootstrap(t, p)
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(cookie)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with cookie, got %d", rec.Code)
	}
	var body tokenResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding token response: %v", err)
	}
	if body.CSRFToken == "" || body.CSRFToken != token {
		t.Fatalf("token mismatch: got %q want %q", body.CSRFToken, token)
	}
}

// When EnforceOriginCheck is true, Origin/Referer must match same-site policy.
func TestOriginCheck(t *testing.T) {
	p := New(Config{
		TokenBytes:         16,
		EnforceOriginCheck: true,
		// AllowedOrigin empty -> use r.Host
	})
	app := appHandler(p)
	token, cookie := bootstrap(t, p)

	// Matching origin (same as host)
	recOK := httptest.NewRecorder()
	reqOK := httptest.NewRequest(http.MethodPost, "/api/protected", nil)
	reqOK.Host = "example.com"
	reqOK.Header.Set("Origin", "https://example.com")
	reqOK.AddCookie(cookie)
	reqOK.Header.Set(p.cfg.HeaderName, token)
	app.ServeHTTP(recOK, reqOK)
	if recOK.Code != http.StatusOK {
		t.Fatalf("expected 200 with matching origin, got %d", recOK.Code)
	}

	// Mismatching origin
	recBad := httptest.NewRecorder()
	reqBad := httptest.NewRequest(http.MethodPost, "/api/protected", nil)
	reqBad.Host = "example.com"
	reqBad.Header.Set("Origin", "https://evil.com")
	reqBad.AddCookie(cookie)
	reqBad.Header.Set(p.cfg.HeaderName, token)
	app.ServeHTTP(recBad, reqBad)
	if recBad.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with mismatching origin, got %d", recBad.Code)
	}

	// Referer is accepted when Origin is empty and matches the host
	recRef := httptest.NewRecorder()
	reqRef := httptest.NewRequest(http.MethodPost, "/api/protected", nil)
	reqRef.Host = "example.com"
	reqRef.Header.Set("Referer", "https://example.com/page")
	reqRef.AddCookie(cookie)
	reqRef.Header.Set(p.cfg.HeaderName, token)
	app.ServeHTTP(recRef, reqRef)
	if recRef.Code != http.StatusOK {
		t.Fatalf("expected 200 with matching referer, got %d", recRef.Code)
	}
}

// Secure configs default to the __Host- cookie name; insecure configs
// must not, since browsers reject the prefix without the Secure flag.
func TestDefaultCookieNames(t *testing.T) {
	secure := New(Config{CookieSecure: true})
	if secure.cfg.CookieName != DefaultCookieName {
		t.Fatalf("secure default: got %q want %q", secure.cfg.CookieName, DefaultCookieName)
	}
	insecure := New(Config{})
	if insecure.cfg.CookieName != DefaultInsecureCookieName {
		t.Fatalf("insecure default: got %q want %q", insecure.cfg.CookieName, DefaultInsecureCookieName)
	}
	if secure.cfg.ReadableCookieName != DefaultReadableCookieName {
		t.Fatalf("readable default: got %q", secure.cfg.ReadableCookieName)
	}
}

// The injected context token equals the cookie value for downstream handlers.
func TestTokenFromContext(t *testing.T) {
	p := New(Config{TokenBytes: 16})

	var got string
	h := p.Issue(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = TokenFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/public", nil))
	res := rec.Result()
	res.Body.Close()
	c := getCookieByName(res, p.cfg.CookieName)
	if c == nil || got == "" || got != c.Value {
		t.Fatalf("context token %q must match issued cookie %v", got, c)
	}
}
