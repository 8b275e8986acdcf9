package server

import (
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// sessionTransport authorizes each outbound request with the access token of the
// session that originated it.
type sessionTransport struct {
	base http.RoundTripper
}

func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	session := SessionFromContext(req.Context())
	if !session.IsAuthenticated() {
		return nil, errNoSession
	}
	transport := &oauth2.Transport{
		Source: oauth2.StaticTokenSource(session.OAuth2Token()),
		Base:   t.base,
	}
	return transport.RoundTrip(req)
}

var errNoSession = errors.New("no authenticated session for backend request")

func (s *Server) newBackendProxy(target *url.URL, base http.RoundTripper) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()

			// SetURL joins the target path with the inbound one; drop the gateway prefix first
			pr.Out.URL.Path = singleJoin(target.Path, strings.TrimPrefix(pr.In.URL.Path, RouteBackendPrefix))
			pr.Out.URL.RawPath = ""

			// The gateway cookie and any client supplied credentials stay here
			pr.Out.Header.Del("Cookie")
			pr.Out.Header.Del("Authorization")
		},
		Transport: &sessionTransport{base: base},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Err(err).
				Str("request_id", RequestIDFromContext(r.Context())).
				Str("path", r.URL.Path).
				Msg("Backend request failed")
			writeJSONError(w, "bad_gateway", "Backend unavailable", http.StatusBadGateway)
		},
	}
}

// BackendProxyHandler relays /api/backend/{path...} to the backend with the session's
// bearer token. Responses are passed through unchanged.
func (s *Server) BackendProxyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.proxy.ServeHTTP(w, r)
	}
}

func singleJoin(base, path string) string {
	if path == "" {
		path = "/"
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}
