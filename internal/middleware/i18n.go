package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type localeContextKey struct{}
type countryContextKey struct{}

var (
	LocaleKey  = localeContextKey{}
	CountryKey = countryContextKey{}
)

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

type localeMatcher struct {
	tags    []language.Tag
	matcher language.Matcher
}

func newLocaleMatcher(supported []language.Tag) localeMatcher {
	if len(supported) == 0 {
		supported = []language.Tag{language.English}
	}
	return localeMatcher{tags: supported, matcher: language.NewMatcher(supported)}
}

// match returns the base language of the closest supported tag.
func (m localeMatcher) match(tags ...language.Tag) (string, bool) {
	if len(tags) == 0 {
		return "", false
	}
	_, idx, conf := m.matcher.Match(tags...)
	if conf == language.No {
		return "", false
	}
	base, _ := m.tags[idx].Base()
	return base.String(), true
}

func (m localeMatcher) matchHeader(value string) (string, bool) {
	tags, _, err := language.ParseAcceptLanguage(value)
	if err != nil {
		return "", false
	}
	return m.match(tags...)
}

func (m localeMatcher) matchCountry(country string) (string, bool) {
	region, err := language.ParseRegion(country)
	if err != nil {
		return "", false
	}
	tag, err := language.Compose(region)
	if err != nil {
		return "", false
	}
	return m.match(tag)
}

func (m localeMatcher) fallback() string {
	base, _ := m.tags[0].Base()
	return base.String()
}

// I18N stores the request locale and, when known, the client country in the
// request context. The locale comes from X-Locale, then Accept-Language,
// then the language spoken in the client's country, then defaultLocale.
func I18N(defaultLocale string, supported []language.Tag, lookup CountryLookup) func(http.Handler) http.Handler {
	m := newLocaleMatcher(supported)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			locale := m.detect(r, defaultLocale, country)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, strings.ToUpper(country))
			}
			w.Header().Set("Content-Language", locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (m localeMatcher) detect(r *http.Request, fallback string, country string) string {
	if v := r.Header.Get("X-Locale"); v != "" {
		if locale, ok := m.matchHeader(v); ok {
			return locale
		}
	}
	if v := r.Header.Get("Accept-Language"); v != "" {
		if locale, ok := m.matchHeader(v); ok {
			return locale
		}
	}
	if country != "" {
		if locale, ok := m.matchCountry(country); ok {
			return locale
		}
	}
	if fallback != "" {
		if locale, ok := m.matchHeader(fallback); ok {
			return locale
		}
	}
	return m.fallback()
}

// ClientIP returns the best-effort client IP address for the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return "en"
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}

// ResolveCountry resolves a best-effort ISO country code from edge headers,
// the region subtag of the requested locale, or a GeoIP lookup.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	headerHints := []string{"X-Country-Code", "X-IP-Country", "CF-IPCountry", "X-Appengine-Country"}
	for _, key := range headerHints {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" {
			return strings.ToUpper(val)
		}
	}
	if region := localeRegion(r.Header.Get("X-Locale")); region != "" {
		return region
	}
	if region := localeRegion(r.Header.Get("Accept-Language")); region != "" {
		return region
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if country, err := lookup(ip); err == nil && country != "" {
				return strings.ToUpper(country)
			}
		}
	}
	return ""
}

func localeRegion(accept string) string {
	for _, part := range strings.Split(accept, ",") {
		token := strings.TrimSpace(strings.Split(part, ";")[0])
		if token == "" {
			continue
		}
		if idx := strings.IndexAny(token, "-_"); idx > 0 && idx < len(token)-1 {
			return strings.ToUpper(token[idx+1:])
		}
	}
	return ""
}
