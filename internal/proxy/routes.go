// AngelaMos | 2026
// routes.go

package proxy

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/smartscreen-ai/gateway/internal/config"
	"github.com/smartscreen-ai/gateway/internal/core"
)

var errMissingHost = errors.New("upstream url must be absolute")

var pathIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

var connectPlatforms = map[string]bool{
	"google":    true,
	"microsoft": true,
}

// Gateway groups the downstream services reachable through /api.
type Gateway struct {
	Forms       *Upstream
	Plagiarism  *Upstream
	AIDetection *Upstream
	Ranking     *Upstream
}

func NewGateway(cfg config.ServicesConfig, logger *slog.Logger) (*Gateway, error) {
	var (
		g   Gateway
		err error
	)

	specs := []struct {
		dst  **Upstream
		name string
		url  string
	}{
		{&g.Forms, "forms", cfg.FormsURL},
		{&g.Plagiarism, "plagiarism", cfg.PlagiarismURL},
		{&g.AIDetection, "ai detection", cfg.AIDetectionURL},
		{&g.Ranking, "ranking", cfg.RankingURL},
	}

	for _, s := range specs {
		*s.dst, err = NewUpstream(s.name, s.url, cfg.Timeout, logger)
		if err != nil {
			return nil, err
		}
	}

	return &g, nil
}

// RouteLimits carries per-route limiters. Nil entries leave a route unlimited.
type RouteLimits struct {
	Connect  func(http.Handler) http.Handler
	Analysis func(http.Handler) http.Handler
	Tiered   func(http.Handler) http.Handler
}

func (g *Gateway) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	limits RouteLimits,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		if limits.Tiered != nil {
			r.Use(limits.Tiered)
		}

		r.Route("/forms", func(r chi.Router) {
			r.With(passthrough(limits.Connect)).
				Post("/connect/{platform}", g.Forms.Handler(connectTarget))
			r.Get("/", g.Forms.Handler(Static("/forms")))
			r.Get("/{formID}/rankings", g.Ranking.Handler(rankingsTarget))
			r.Get("/{formID}/submissions", g.Forms.Handler(formSubmissionsTarget))
		})

		r.Get("/submissions/{submissionID}", g.Forms.Handler(submissionTarget))

		r.Route("/submissions/{submissionID}/analyze", func(r chi.Router) {
			r.Use(passthrough(limits.Analysis))
			r.Post("/plagiarism", g.Plagiarism.Handler(
				AnalyzeSubmission("/analyze", submissionID),
			))
			r.Post("/ai", g.AIDetection.Handler(
				AnalyzeSubmission("/analyze", submissionID),
			))
		})
	})
}

func connectTarget(r *http.Request) (Target, error) {
	platform := chi.URLParam(r, "platform")
	if !connectPlatforms[platform] {
		return Target{}, core.ValidationError("unsupported form platform")
	}
	return Target{Path: "/connect/" + platform}, nil
}

func rankingsTarget(r *http.Request) (Target, error) {
	return idTarget(r, "formID", "form", "/rankings/", "")
}

func formSubmissionsTarget(r *http.Request) (Target, error) {
	return idTarget(r, "formID", "form", "/forms/", "/submissions")
}

func submissionTarget(r *http.Request) (Target, error) {
	return idTarget(r, "submissionID", "submission", "/submissions/", "")
}

// idTarget checks a path id before it is spliced into the upstream path.
func idTarget(r *http.Request, param, kind, prefix, suffix string) (Target, error) {
	id := chi.URLParam(r, param)
	if !pathIDPattern.MatchString(id) {
		return Target{}, core.ValidationError("invalid " + kind + " id")
	}
	return Target{Path: prefix + id + suffix}, nil
}

func submissionID(r *http.Request) string {
	return chi.URLParam(r, "submissionID")
}

func passthrough(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw != nil {
		return mw
	}
	return func(next http.Handler) http.Handler { return next }
}
