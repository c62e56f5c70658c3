// AngelaMos | 2026
// proxy.go

package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/smartscreen-ai/gateway/internal/core"
	"github.com/smartscreen-ai/gateway/internal/middleware"
)

const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
)

// Upstream is one downstream service the gateway forwards to.
type Upstream struct {
	Name    string
	BaseURL *url.URL
	proxy   *httputil.ReverseProxy
	logger  *slog.Logger
}

// Target describes the outbound request for a single inbound call.
type Target struct {
	Path string
	Body []byte
}

type TargetFunc func(r *http.Request) (Target, error)

func NewUpstream(
	name, rawURL string,
	timeout time.Duration,
	logger *slog.Logger,
) (*Upstream, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, &url.Error{Op: "parse", URL: rawURL, Err: errMissingHost}
	}

	u := &Upstream{
		Name:    name,
		BaseURL: base,
		logger:  logger.With("upstream", name),
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	u.proxy = &httputil.ReverseProxy{
		Rewrite:      u.rewrite,
		Transport:    transport,
		ErrorHandler: u.handleError,
	}

	return u, nil
}

type targetKey struct{}

// Handler forwards requests to the upstream path produced by target.
// The authenticated principal is sent as X-User-ID and X-User-Email.
func (u *Upstream) Handler(target TargetFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := middleware.GetPrincipal(r.Context())
		if principal == nil {
			core.Unauthorized(w, "not authenticated")
			return
		}

		t, err := target(r)
		if err != nil {
			core.JSONError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), targetKey{}, t)
		u.proxy.ServeHTTP(w, r.WithContext(ctx))
	}
}

func (u *Upstream) rewrite(pr *httputil.ProxyRequest) {
	t, _ := pr.In.Context().Value(targetKey{}).(Target)

	pr.SetURL(u.BaseURL)
	pr.Out.URL.Path = singleJoin(u.BaseURL.Path, t.Path)
	pr.Out.URL.RawPath = ""
	pr.Out.Host = u.BaseURL.Host
	pr.SetXForwarded()

	pr.Out.Header.Del("Authorization")
	pr.Out.Header.Del("Cookie")
	pr.Out.Header.Del(HeaderUserID)
	pr.Out.Header.Del(HeaderUserEmail)

	if p := middleware.GetPrincipal(pr.In.Context()); p != nil {
		pr.Out.Header.Set(HeaderUserID, strconv.FormatInt(p.ID, 10))
		pr.Out.Header.Set(HeaderUserEmail, p.Email)
	}

	if rid := middleware.GetRequestID(pr.In.Context()); rid != "" {
		pr.Out.Header.Set(middleware.RequestIDHeader, rid)
	}

	if t.Body != nil {
		pr.Out.Body = io.NopCloser(bytes.NewReader(t.Body))
		pr.Out.ContentLength = int64(len(t.Body))
		pr.Out.Header.Set("Content-Type", "application/json")
		pr.Out.Header.Del("Content-Encoding")
	}

	otel.GetTextMapPropagator().Inject(
		pr.In.Context(),
		propagation.HeaderCarrier(pr.Out.Header),
	)
}

func (u *Upstream) handleError(w http.ResponseWriter, r *http.Request, err error) {
	u.logger.ErrorContext(r.Context(), "upstream request failed",
		"path", r.URL.Path,
		"error", err,
		"request_id", middleware.GetRequestID(r.Context()),
	)
	core.JSONError(w, core.ServiceUnavailableError(u.Name))
}

// Static forwards to a fixed upstream path with the inbound body untouched.
func Static(path string) TargetFunc {
	return func(*http.Request) (Target, error) {
		return Target{Path: path}, nil
	}
}

// AnalyzeSubmission posts {"submission_id": <id>} to the upstream path.
func AnalyzeSubmission(path string, submissionID func(*http.Request) string) TargetFunc {
	return func(r *http.Request) (Target, error) {
		id := submissionID(r)
		if !pathIDPattern.MatchString(id) {
			return Target{}, core.ValidationError("invalid submission id")
		}

		body, err := json.Marshal(map[string]string{"submission_id": id})
		if err != nil {
			return Target{}, err
		}

		return Target{Path: path, Body: body}, nil
	}
}

func singleJoin(base, p string) string {
	switch {
	case base == "":
		return p
	case p == "":
		return base
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(p, "/")
}
