// Package httprouter wires the HTTP API: download submission and
// lifecycle endpoints, the streaming proxy endpoint, health checks and
// the metrics endpoint.
package httprouter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"vidgate/internal/consts"
	"vidgate/internal/coordinator"
	"vidgate/internal/entity"
	"vidgate/internal/errs"
	"vidgate/internal/infrastructure/delivery/http/middleware"
	"vidgate/internal/infrastructure/delivery/http/request"
	"vidgate/internal/infrastructure/delivery/http/response"
	"vidgate/internal/observability"
	"vidgate/internal/streamer"
)

// Router is the top-level HTTP handler with global and per-route
// middleware chains.
type Router struct {
	*http.ServeMux
	log         *slog.Logger
	globalChain []func(http.Handler) http.Handler
	routeChain  []func(http.Handler) http.Handler
	isSubRouter bool

	coord   *coordinator.Coordinator
	streams *streamer.Proxy
	metrics *observability.Metrics
}

// New creates the router with all routes and middlewares registered.
func New(log *slog.Logger, coord *coordinator.Coordinator, streams *streamer.Proxy, metrics *observability.Metrics) *Router {
	r := &Router{
		ServeMux: http.NewServeMux(),
		log:      log,
		coord:    coord,
		streams:  streams,
		metrics:  metrics,
	}

	r.SetGlobalMiddlewares()
	r.SetRoutes()

	return r
}

func (r *Router) Use(middleware ...func(http.Handler) http.Handler) {
	if r.isSubRouter {
		r.routeChain = append(r.routeChain, middleware...)
	} else {
		r.globalChain = append(r.globalChain, middleware...)
	}
}

func (r *Router) Group(fn func(r *Router)) {
	subRouter := &Router{
		isSubRouter: true,
		routeChain:  slices.Clone(r.routeChain),
		ServeMux:    r.ServeMux}

	fn(subRouter)
}

func (r *Router) HandleFunc(pattern string, h http.HandlerFunc) {
	r.Handle(pattern, h)
}

func (r *Router) Handle(pattern string, h http.Handler) {
	for _, middleware := range slices.Backward(r.routeChain) {
		h = middleware(h)
	}
	r.ServeMux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var h http.Handler = r.ServeMux

	for _, middleware := range slices.Backward(r.globalChain) {
		h = middleware(h)
	}

	h.ServeHTTP(w, req)
}

func (r *Router) SetGlobalMiddlewares() {
	r.Use(
		middleware.Recoverer,
		middleware.RequestID,
		middleware.SessionID,
		middleware.Logger,
		middleware.Metrics(r.metrics),
	)
}

func (r *Router) SetRoutes() {
	r.SetRoutesHealthcheck()
	r.SetRoutesDownloads()
	r.SetRoutesStream()
	r.SetRoutesMetrics()
}

func (r *Router) SetRoutesHealthcheck() {
	r.HandleFunc("GET /v1/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}

func (ro *Router) SetRoutesDownloads() {
	downloadRouter := &Router{
		ServeMux: http.NewServeMux(),
	}
	downloadRouter.HandleFunc("POST /{$}", ro.Submit)
	downloadRouter.HandleFunc("GET /{$}", ro.GetJobs)
	downloadRouter.HandleFunc("GET /{id}", ro.GetJob)
	downloadRouter.HandleFunc("DELETE /{id}/cancel", ro.CancelJob)

	ro.Handle("/v1/downloads/", http.StripPrefix("/v1/downloads", downloadRouter))

	// Exact matches so POST bodies are not lost to a trailing-slash redirect.
	ro.HandleFunc("POST /v1/downloads", ro.Submit)
	ro.HandleFunc("GET /v1/downloads", ro.GetJobs)
}

func (ro *Router) SetRoutesStream() {
	ro.HandleFunc("GET /v1/stream/{platform}/{id}", ro.Stream)
}

func (ro *Router) SetRoutesMetrics() {
	ro.Handle("GET /metrics", observability.Handler())
}

func (ro *Router) Submit(w http.ResponseWriter, r *http.Request) {
	log := ro.log.With("handler", "Submit")
	ctx := r.Context()

	var in request.Submit
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		log.ErrorContext(ctx, consts.RespInvalidRequestBody, slog.Any("error", err))
		response.BadRequest(w, consts.RespInvalidRequestBody, errs.ErrInvalidRequestBody)

		return
	}

	if err := in.Validate(); err != nil {
		log.ErrorContext(ctx, consts.RespUnprocessableEntity, slog.Any("error", err))
		response.UnprocessableEntity(w, consts.RespUnprocessableEntity, err)

		return
	}

	job, err := ro.coord.Submit(ctx, coordinator.SubmitRequest{
		URL:          in.URL,
		Quality:      in.Quality,
		Format:       in.Format,
		Filename:     in.Filename,
		OwnerSession: middleware.SessionFromContext(ctx),
	})

	switch {
	case errors.Is(err, errs.ErrInvalidURL):
		log.ErrorContext(ctx, consts.RespUnprocessableEntity, slog.Any("error", err))
		response.UnprocessableEntity(w, consts.RespUnprocessableEntity, err)

		return
	case errors.Is(err, errs.ErrQueueFull):
		log.WarnContext(ctx, consts.RespJobSubmitFail, slog.Any("error", err))
		response.TooManyRequests(w, consts.RespJobSubmitFail, errs.ErrQueueFull)

		return
	case errors.Is(err, errs.ErrServiceClosed):
		log.WarnContext(ctx, consts.RespJobSubmitFail, slog.Any("error", err))
		response.ServiceUnavailable(w, consts.RespJobSubmitFail, errs.ErrServiceClosed)

		return
	case err != nil:
		log.ErrorContext(ctx, consts.RespJobSubmitFail, slog.Any("error", err))
		response.InternalServerError(w, consts.RespJobSubmitFail, nil, err)

		return
	}

	log.InfoContext(ctx, consts.RespJobSubmitted, "job", job)

	response.Accepted(w, consts.RespJobSubmitted, job, nil)
}

func (ro *Router) GetJob(w http.ResponseWriter, r *http.Request) {
	log := ro.log.With("handler", "GetJob")

	ctx, cancel := context.WithTimeout(r.Context(), consts.DefaultHandlerTimeout)
	defer cancel()

	id := r.PathValue("id")
	if id == "" {
		log.ErrorContext(ctx, consts.RespQueryParamMissing)
		response.BadRequest(w, consts.RespQueryParamMissing, nil)

		return
	}

	job, ok := ro.coord.GetStatus(ctx, id)
	if !ok {
		log.DebugContext(ctx, consts.RespJobNotFound, slog.String("job_id", id))
		response.NotFound(w, consts.RespJobNotFound, errs.ErrJobNotFound)

		return
	}

	response.OK(w, consts.RespJobRetrieved, job, nil)
}

func (ro *Router) GetJobs(w http.ResponseWriter, r *http.Request) {
	log := ro.log.With("handler", "GetJobs")

	ctx, cancel := context.WithTimeout(r.Context(), consts.DefaultHandlerTimeout)
	defer cancel()

	jobs := ro.coord.ListJobs(ctx, middleware.SessionFromContext(ctx))
	if len(jobs) == 0 {
		log.DebugContext(ctx, consts.RespNoJobs)
		response.NoContent(w)

		return
	}

	response.OK(w, consts.RespJobsRetrieved, jobs, nil)
}

func (ro *Router) CancelJob(w http.ResponseWriter, r *http.Request) {
	log := ro.log.With("handler", "CancelJob")

	ctx, cancel := context.WithTimeout(r.Context(), consts.DefaultHandlerTimeout)
	defer cancel()

	id := r.PathValue("id")
	if id == "" {
		log.ErrorContext(ctx, consts.RespQueryParamMissing)
		response.BadRequest(w, consts.RespQueryParamMissing, nil)

		return
	}

	if !ro.coord.Cancel(ctx, id) {
		log.DebugContext(ctx, consts.RespJobNotCancellable, slog.String("job_id", id))
		response.Conflict(w, consts.RespJobNotCancellable, errs.ErrJobTerminal)

		return
	}

	log.InfoContext(ctx, consts.RespJobCancelled, slog.String("job_id", id))
	response.OK(w, consts.RespJobCancelled, nil, nil)
}

// Stream proxies media bytes straight to the caller. Once the first
// byte is written the status line is on the wire, so failures after
// that point can only be logged and the connection closed.
func (ro *Router) Stream(w http.ResponseWriter, r *http.Request) {
	log := ro.log.With("handler", "Stream")
	ctx := r.Context()

	platform := r.PathValue("platform")
	videoID := r.PathValue("id")
	if platform == "" || videoID == "" {
		log.ErrorContext(ctx, consts.RespQueryParamMissing)
		response.BadRequest(w, consts.RespQueryParamMissing, nil)

		return
	}

	session, err := ro.streams.Stream(ctx, streamer.Request{
		Platform: platform,
		VideoID:  videoID,
		Quality:  r.URL.Query().Get("quality"),
		OnResolved: func(info *entity.MediaInfo) {
			contentType := info.ContentType
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			w.Header().Set("Content-Type", contentType)
			// Retries restart the upstream fetch, so the proxied stream
			// itself cannot serve byte ranges.
			w.Header().Set("Accept-Ranges", "none")
		},
	}, w)

	if err == nil {
		log.InfoContext(ctx, "stream finished", "session", session)

		return
	}

	if session != nil && session.BytesStreamed > 0 {
		log.WarnContext(ctx, "stream aborted mid-flight", "session", session, slog.Any("error", err))

		return
	}

	switch {
	case errors.Is(err, errs.ErrConcurrencyLimit):
		log.WarnContext(ctx, consts.RespTooManyStreams, "session", session)
		response.TooManyRequests(w, consts.RespTooManyStreams, errs.ErrConcurrencyLimit)
	case errors.Is(err, errs.ErrAuthRequired):
		log.WarnContext(ctx, consts.RespStreamFail, slog.Any("error", err))
		response.Unauthorized(w, consts.RespStreamFail, errs.ErrAuthRequired)
	case errors.Is(err, errs.ErrGeoRestricted):
		log.WarnContext(ctx, consts.RespStreamFail, slog.Any("error", err))
		response.UnavailableForLegalReasons(w, consts.RespStreamFail, errs.ErrGeoRestricted)
	default:
		log.ErrorContext(ctx, consts.RespStreamFail, "session", session, slog.Any("error", err))
		response.BadGateway(w, consts.RespStreamFail, err)
	}
}
