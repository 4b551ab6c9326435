package chi

import (
	"fmt"
	"net/http"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.
const (
	ErrorCodeBadRequest        ErrorCode = "bad_request"
	ErrorCodeUnauthorized      ErrorCode = "unauthorized"
	ErrorCodeNotFound          ErrorCode = "not_found"
	ErrorCodeKeysExhausted     ErrorCode = "keys_exhausted"
	ErrorCodeUpstreamError     ErrorCode = "upstream_error"
	ErrorCodeUpstreamTransport ErrorCode = "upstream_unavailable"
	ErrorCodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Channel is the wire form of a channel.
type Channel struct {
	Id                string  `json:"id"`
	Title             string  `json:"title"`
	Thumbnail         string  `json:"thumbnail"`
	YoutubeVideoCount *uint64 `json:"youtubeVideoCount,omitempty"`
	UploadPlaylistId  *string `json:"uploadPlaylistId,omitempty"`
}

// Video is the wire form of a video.
type Video struct {
	Id           string  `json:"id"`
	Title        string  `json:"title"`
	Date         string  `json:"date"`
	Thumbnail    string  `json:"thumbnail"`
	ChannelId    string  `json:"channelId"`
	ChannelTitle string  `json:"channelTitle"`
	Description  *string `json:"description"`
}

// Playlist is the wire form of a playlist.
type Playlist struct {
	Id           string `json:"id"`
	Title        string `json:"title"`
	Thumbnail    string `json:"thumbnail"`
	ChannelId    string `json:"channelId"`
	ChannelTitle string `json:"channelTitle"`
}

// PlaylistPageResponse is one page of playlist videos.
type PlaylistPageResponse struct {
	Videos        []Video `json:"videos"`
	NextPageToken *string `json:"next_page_token,omitempty"`
}

// StatusResponse reports remaining budget per key position.
type StatusResponse struct {
	Keys        map[string]int `json:"keys"`
	Quota       int            `json:"quota"`
	Available   int            `json:"available"`
	NextResetAt *time.Time     `json:"next_reset_at,omitempty"`
}

// HealthResponse aggregates component checks.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// SearchParams are the query parameters of GET /v1/search/{kind}.
type SearchParams struct {
	Q string `form:"q" json:"q"`
}

// PlaylistVideosParams are the query parameters of GET /v1/playlist/{id}/videos.
type PlaylistVideosParams struct {
	PageToken *string `form:"page_token,omitempty" json:"page_token,omitempty"`
}

// ServerInterface lists every HTTP operation.
type ServerInterface interface {
	// GET /alive
	Alive(w http.ResponseWriter, r *http.Request)
	// GET /health
	HealthCheck(w http.ResponseWriter, r *http.Request)
	// GET /metrics
	Metrics(w http.ResponseWriter, r *http.Request)
	// GET /v1/admin/status
	KeyStatus(w http.ResponseWriter, r *http.Request)
	// GET /v1/search/{kind}
	Search(w http.ResponseWriter, r *http.Request, kind string, params SearchParams)
	// GET /v1/channel/{id}
	GetChannel(w http.ResponseWriter, r *http.Request, id string)
	// GET /v1/video/{id}
	GetVideo(w http.ResponseWriter, r *http.Request, id string)
	// GET /v1/playlist/{id}
	GetPlaylist(w http.ResponseWriter, r *http.Request, id string)
	// GET /v1/channel/{id}/most_recent
	LatestChannelVideos(w http.ResponseWriter, r *http.Request, id string)
	// GET /v1/channel/{id}/videos
	ChannelVideos(w http.ResponseWriter, r *http.Request, id string)
	// GET /v1/playlist/{id}/videos
	PlaylistVideos(w http.ResponseWriter, r *http.Request, id string, params PlaylistVideosParams)
}

// ParamError reports a path or query parameter that could not be bound.
type ParamError struct {
	Param string
	Err   error
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid format for parameter %s: %v", e.Param, e.Err)
}

func (e *ParamError) Unwrap() error { return e.Err }

// MiddlewareFunc wraps a single operation handler.
type MiddlewareFunc func(http.Handler) http.Handler

// ChiServerOptions configure Handler.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       gochi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

type serverInterfaceWrapper struct {
	handler            ServerInterface
	handlerMiddlewares []MiddlewareFunc
	errorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *serverInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, h http.HandlerFunc) {
	var handler http.Handler = h
	for _, middleware := range siw.handlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

func (siw *serverInterfaceWrapper) pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, gochi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.errorHandlerFunc(w, r, &ParamError{Param: name, Err: err})
		return "", false
	}
	return v, true
}

func (siw *serverInterfaceWrapper) withID(op func(w http.ResponseWriter, r *http.Request, id string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := siw.pathParam(w, r, "id")
		if !ok {
			return
		}
		siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
			op(w, r, id)
		})
	}
}

func (siw *serverInterfaceWrapper) plain(op http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		siw.serve(w, r, op)
	}
}

func (siw *serverInterfaceWrapper) Search(w http.ResponseWriter, r *http.Request) {
	kind, ok := siw.pathParam(w, r, "kind")
	if !ok {
		return
	}

	var params SearchParams
	if err := runtime.BindQueryParameter("form", true, true, "q", r.URL.Query(), &params.Q); err != nil {
		siw.errorHandlerFunc(w, r, &ParamError{Param: "q", Err: err})
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.handler.Search(w, r, kind, params)
	})
}

func (siw *serverInterfaceWrapper) PlaylistVideos(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.pathParam(w, r, "id")
	if !ok {
		return
	}

	var params PlaylistVideosParams
	if err := runtime.BindQueryParameter("form", true, false, "page_token", r.URL.Query(), &params.PageToken); err != nil {
		siw.errorHandlerFunc(w, r, &ParamError{Param: "page_token", Err: err})
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.handler.PlaylistVideos(w, r, id, params)
	})
}

// HandlerWithOptions mounts every operation of si on a chi router.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = gochi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := serverInterfaceWrapper{
		handler:            si,
		handlerMiddlewares: options.Middlewares,
		errorHandlerFunc:   options.ErrorHandlerFunc,
	}

	base := options.BaseURL
	r.Group(func(r gochi.Router) {
		r.Get(base+"/alive", wrapper.plain(si.Alive))
		r.Get(base+"/health", wrapper.plain(si.HealthCheck))
		r.Get(base+"/metrics", wrapper.plain(si.Metrics))
		r.Get(base+"/v1/admin/status", wrapper.plain(si.KeyStatus))
		r.Get(base+"/v1/search/{kind}", wrapper.Search)
		r.Get(base+"/v1/channel/{id}", wrapper.withID(si.GetChannel))
		r.Get(base+"/v1/video/{id}", wrapper.withID(si.GetVideo))
		r.Get(base+"/v1/playlist/{id}", wrapper.withID(si.GetPlaylist))
		r.Get(base+"/v1/channel/{id}/most_recent", wrapper.withID(si.LatestChannelVideos))
		r.Get(base+"/v1/channel/{id}/videos", wrapper.withID(si.ChannelVideos))
		r.Get(base+"/v1/playlist/{id}/videos", wrapper.PlaylistVideos)
	})
	return r
}
