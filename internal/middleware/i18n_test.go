package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func localeForRequest(t *testing.T, mutate func(*http.Request), lookup CountryLookup) string {
	t.Helper()
	var got string
	handler := I18N("en", lookup)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LocaleFromContext(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.9:1000"
	mutate(r)
	handler.ServeHTTP(httptest.NewRecorder(), r)
	return got
}

func TestDetectLocale(t *testing.T) {
	idLookup := CountryLookup(func(ip string) (string, error) { return "ID", nil })

	tests := []struct {
		name   string
		mutate func(*http.Request)
		lookup CountryLookup
		want   string
	}{
		{
			name:   "explicit header wins",
			mutate: func(r *http.Request) { r.Header.Set("X-Locale", "id") },
			lookup: nil,
			want:   "id",
		},
		{
			name:   "explicit header unknown falls to english",
			mutate: func(r *http.Request) { r.Header.Set("X-Locale", "zz") },
			lookup: idLookup,
			want:   "en",
		},
		{
			name:   "accept-language indonesian",
			mutate: func(r *http.Request) { r.Header.Set("Accept-Language", "id-ID,id;q=0.9,en;q=0.5") },
			lookup: nil,
			want:   "id",
		},
		{
			name:   "accept-language english",
			mutate: func(r *http.Request) { r.Header.Set("Accept-Language", "en-US,en;q=0.9") },
			lookup: idLookup,
			want:   "en",
		},
		{
			name:   "geoip country id",
			mutate: func(r *http.Request) {},
			lookup: idLookup,
			want:   "id",
		},
		{
			name:   "default fallback",
			mutate: func(r *http.Request) {},
			lookup: nil,
			want:   "en",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := localeForRequest(t, tc.mutate, tc.lookup); got != tc.want {
				t.Fatalf("locale = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLocaleFromContextDefault(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := LocaleFromContext(r.Context()); got != "en" {
		t.Fatalf("locale = %q, want en", got)
	}
}
