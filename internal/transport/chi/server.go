package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ytproxy/internal/domain"
	"github.com/kailas-cloud/ytproxy/internal/domain/content"
	domusage "github.com/kailas-cloud/ytproxy/internal/domain/usage"
	healthuc "github.com/kailas-cloud/ytproxy/internal/usecase/health"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Media is the façade the server exposes over HTTP.
type Media interface {
	SearchChannels(ctx context.Context, query string) ([]content.Channel, error)
	SearchVideos(ctx context.Context, query string) ([]content.Video, error)
	SearchPlaylists(ctx context.Context, query string) ([]content.Playlist, error)
	LatestVideos(ctx context.Context, channelID string) ([]content.Video, error)
	Channel(ctx context.Context, id string) (*content.Channel, error)
	Video(ctx context.Context, id string) (*content.Video, error)
	Playlist(ctx context.Context, id string) (*content.Playlist, error)
	PlaylistVideosPage(ctx context.Context, playlistID, pageToken string) ([]content.Video, string, error)
	PlaylistVideos(ctx context.Context, playlistID string) ([]content.Video, error)
	ChannelVideos(ctx context.Context, channelID string) ([]content.Video, error)
}

// UsageReporter snapshots the key pool.
type UsageReporter interface {
	GetReport(ctx context.Context) domusage.Report
}

// HealthChecker runs component checks.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server implements ServerInterface.
type Server struct {
	media         Media
	usage         UsageReporter
	health        HealthChecker
	gatherer      prometheus.Gatherer
	logger        *zap.Logger
	errorHandlers []errorHandler
}

var _ ServerInterface = (*Server)(nil)

// NewServer creates an HTTP API server.
func NewServer(media Media, usage UsageReporter, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		media:    media,
		usage:    usage,
		health:   health,
		gatherer: prometheus.DefaultGatherer,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrKeysExhausted, http.StatusServiceUnavailable, ErrorCodeKeysExhausted),
		sentinelHandler(domain.ErrUpstreamTransport, http.StatusBadGateway, ErrorCodeUpstreamTransport),
		sentinelHandler(domain.ErrUpstreamStatus, http.StatusBadGateway, ErrorCodeUpstreamError),
		sentinelHandler(domain.ErrUpstreamDecode, http.StatusBadGateway, ErrorCodeUpstreamError),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrInvalidKind, http.StatusBadRequest, ErrorCodeBadRequest),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, ErrorCodeBadRequest),
	}
	return s
}

// WithGatherer serves metrics from g instead of the default registry.
func (s *Server) WithGatherer(g prometheus.Gatherer) *Server {
	s.gatherer = g
	return s
}

// Alive handles GET /alive.
func (s *Server) Alive(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

// KeyStatus handles GET /v1/admin/status.
func (s *Server) KeyStatus(w http.ResponseWriter, r *http.Request) {
	report := s.usage.GetReport(r.Context())

	keys := make(map[string]int, len(report.Keys()))
	for _, b := range report.Keys() {
		keys[strconv.Itoa(b.Index())] = b.Remaining()
	}

	resp := StatusResponse{
		Keys:      keys,
		Quota:     report.Quota(),
		Available: report.Available(),
	}
	if report.NextResetAt() > 0 {
		next := time.UnixMilli(report.NextResetAt()).UTC()
		resp.NextResetAt = &next
	}

	writeJSON(w, http.StatusOK, resp)
}

// Search handles GET /v1/search/{kind}.
func (s *Server) Search(w http.ResponseWriter, r *http.Request, kind string, params SearchParams) {
	k, err := content.ParseKind(kind)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	switch k {
	case content.KindChannel:
		channels, err := s.media.SearchChannels(r.Context(), params.Q)
		respondList(s, w, channels, err, channelToWire)
	case content.KindVideo:
		videos, err := s.media.SearchVideos(r.Context(), params.Q)
		respondList(s, w, videos, err, videoToWire)
	case content.KindPlaylist:
		playlists, err := s.media.SearchPlaylists(r.Context(), params.Q)
		respondList(s, w, playlists, err, playlistToWire)
	}
}

// GetChannel handles GET /v1/channel/{id}.
func (s *Server) GetChannel(w http.ResponseWriter, r *http.Request, id string) {
	ch, err := s.media.Channel(r.Context(), id)
	respondSingle(s, w, ch, err, channelToWire)
}

// GetVideo handles GET /v1/video/{id}.
func (s *Server) GetVideo(w http.ResponseWriter, r *http.Request, id string) {
	v, err := s.media.Video(r.Context(), id)
	respondSingle(s, w, v, err, videoToWire)
}

// GetPlaylist handles GET /v1/playlist/{id}.
func (s *Server) GetPlaylist(w http.ResponseWriter, r *http.Request, id string) {
	p, err := s.media.Playlist(r.Context(), id)
	respondSingle(s, w, p, err, playlistToWire)
}

// LatestChannelVideos handles GET /v1/channel/{id}/most_recent.
func (s *Server) LatestChannelVideos(w http.ResponseWriter, r *http.Request, id string) {
	videos, err := s.media.LatestVideos(r.Context(), id)
	respondList(s, w, videos, err, videoToWire)
}

// ChannelVideos handles GET /v1/channel/{id}/videos.
func (s *Server) ChannelVideos(w http.ResponseWriter, r *http.Request, id string) {
	videos, err := s.media.ChannelVideos(r.Context(), id)
	respondList(s, w, videos, err, videoToWire)
}

// PlaylistVideos handles GET /v1/playlist/{id}/videos.
// Without page_token every page is fetched; with it (even empty) a single page is returned.
func (s *Server) PlaylistVideos(w http.ResponseWriter, r *http.Request, id string, params PlaylistVideosParams) {
	if params.PageToken == nil {
		videos, err := s.media.PlaylistVideos(r.Context(), id)
		respondList(s, w, videos, err, videoToWire)
		return
	}

	videos, next, err := s.media.PlaylistVideosPage(r.Context(), id, *params.PageToken)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := PlaylistPageResponse{Videos: mapAll(videos, videoToWire)}
	if next != "" {
		resp.NextPageToken = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

func respondList[T, W any](s *Server, w http.ResponseWriter, items []T, err error, conv func(T) W) {
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapAll(items, conv))
}

func respondSingle[T, W any](s *Server, w http.ResponseWriter, item *T, err error, conv func(T) W) {
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, ErrorCodeNotFound, domain.ErrNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, conv(*item))
}

func mapAll[T, W any](items []T, conv func(T) W) []W {
	out := make([]W, len(items))
	for i, item := range items {
		out[i] = conv(item)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrKeysExhausted,
		domain.ErrUpstreamTransport,
		domain.ErrUpstreamStatus,
		domain.ErrUpstreamDecode,
		domain.ErrNotFound,
		domain.ErrInvalidKind,
		domain.ErrInvalidInput,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

func channelToWire(c content.Channel) Channel {
	out := Channel{
		Id:        c.ID(),
		Title:     c.Title(),
		Thumbnail: c.Thumbnail(),
	}
	if n, ok := c.VideoCount(); ok {
		out.YoutubeVideoCount = &n
	}
	if uploads := c.UploadPlaylistID(); uploads != "" {
		out.UploadPlaylistId = &uploads
	}
	return out
}

func videoToWire(v content.Video) Video {
	out := Video{
		Id:           v.ID(),
		Title:        v.Title(),
		Date:         v.Date(),
		Thumbnail:    v.Thumbnail(),
		ChannelId:    v.ChannelID(),
		ChannelTitle: v.ChannelTitle(),
	}
	if d, ok := v.Description(); ok {
		out.Description = &d
	}
	return out
}

func playlistToWire(p content.Playlist) Playlist {
	return Playlist{
		Id:           p.ID(),
		Title:        p.Title(),
		Thumbnail:    p.Thumbnail(),
		ChannelId:    p.ChannelID(),
		ChannelTitle: p.ChannelTitle(),
	}
}
