package api

import (
	"crypto/subtle"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"serverdeck/internal/logging"
)

type apiError struct {
	Status  int
	Message string
	Code    string
}

type apiHandler func(http.ResponseWriter, *http.Request) *apiError

const cacheControlNoStore = "no-store, must-revalidate"

// routeSet registers handlers on a mux with the shared request stack.
type routeSet struct {
	mux    *http.ServeMux
	token  string
	logger *logging.Logger
}

// rest registers a JSON endpoint that answers only method.
func (s routeSet) rest(path, method string, handler apiHandler) {
	s.mux.Handle(path, s.logged(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("Cache-Control", cacheControlNoStore)

		var failure *apiError
		switch {
		case r.Method != method:
			headers.Set("Allow", method)
			failure = &apiError{Status: http.StatusMethodNotAllowed, Message: "method not allowed"}
		case !validateToken(r, s.token):
			failure = &apiError{Status: http.StatusUnauthorized, Message: "unauthorized"}
		default:
			failure = handler(w, r)
		}
		if failure != nil {
			writeJSONError(w, failure)
		}
	})))
}

func (s routeSet) raw(path string, handler http.Handler) {
	s.mux.Handle(path, s.logged(handler))
}

func (s routeSet) logged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("api request", map[string]string{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(started).String(),
		})
	})
}

// validateToken accepts a bearer header or a token query parameter. An empty
// token disables the check.
func validateToken(r *http.Request, token string) bool {
	if token == "" {
		return true
	}
	presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		presented = r.URL.Query().Get("token")
	}
	if presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1
}

// isOriginAllowed accepts requests without an Origin header, origins on the
// host being served, and entries of allowed given either as a full origin or
// a bare hostname.
func isOriginAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Hostname() == "" {
		return false
	}
	host := parsed.Hostname()
	for _, entry := range allowed {
		if strings.EqualFold(entry, origin) || strings.EqualFold(entry, host) {
			return true
		}
	}
	return strings.EqualFold(host, requestHost(r.Host))
}

func requestHost(hostport string) string {
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return strings.Trim(host, "[]")
	}
	return strings.Trim(hostport, "[]")
}
