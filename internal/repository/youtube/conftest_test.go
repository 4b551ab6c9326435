package youtube

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ytproxy/internal/keypool"
	"github.com/kailas-cloud/ytproxy/internal/upstream"
)

// fakeAPI serves canned bodies by path and records every query it receives.
type fakeAPI struct {
	mu      sync.Mutex
	bodies  map[string][]string // path -> bodies served in order, the last one repeats
	served  map[string]int
	queries []url.Values
	paths   []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{bodies: map[string][]string{}, served: map[string]int{}}
}

func (f *fakeAPI) on(path string, bodies ...string) *fakeAPI {
	f.bodies[path] = bodies
	return f
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path[len("/youtube/v3/"):]
	f.paths = append(f.paths, path)
	f.queries = append(f.queries, r.URL.Query())

	bodies, ok := f.bodies[path]
	if !ok || len(bodies) == 0 {
		http.NotFound(w, r)
		return
	}
	i := f.served[path]
	if i >= len(bodies) {
		i = len(bodies) - 1
	}
	f.served[path]++

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(bodies[i]))
}

func (f *fakeAPI) lastQuery() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func newTestRepo(t *testing.T, api *fakeAPI) (*Repo, *keypool.Pool) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	pool, err := keypool.New([]string{"key-a", "key-b"}, keypool.DefaultQuota, zap.NewNop())
	if err != nil {
		t.Fatalf("keypool.New: %v", err)
	}
	d := upstream.NewDispatcher(pool, srv.Client(), srv.URL+"/youtube/v3", zap.NewNop())
	return New(d, DefaultCosts()), pool
}

const searchChannelsBody = `{
  "items": [
    {
      "id": {"kind": "youtube#channel", "channelId": "UC1"},
      "snippet": {
        "title": "First",
        "thumbnails": {"default": {"url": "http://d/1"}, "high": {"url": "http://h/1"}}
      }
    },
    {
      "id": {"kind": "youtube#channel", "channelId": "UC2"},
      "snippet": {
        "title": "Second",
        "thumbnails": {"default": {"url": "http://d/2"}, "medium": {"url": "http://m/2"}}
      }
    }
  ]
}`

const searchVideosBody = `{
  "items": [
    {
      "id": {"kind": "youtube#video", "videoId": "v1"},
      "snippet": {
        "title": "Video one",
        "publishedAt": "2021-03-04T05:06:07Z",
        "channelId": "UC1",
        "channelTitle": "First",
        "description": "hello",
        "thumbnails": {"default": {"url": "http://d/v1"}}
      }
    }
  ]
}`

const searchPlaylistsBody = `{
  "items": [
    {
      "id": {"kind": "youtube#playlist", "playlistId": "PL1"},
      "snippet": {"title": "Mix", "channelId": "UC1", "channelTitle": "First"}
    }
  ]
}`

const channelBody = `{
  "pageInfo": {"totalResults": 1},
  "items": [
    {
      "kind": "youtube#channel",
      "id": "UC1",
      "snippet": {"title": "First", "thumbnails": {"default": {"url": "http://d/1"}}},
      "statistics": {"videoCount": "321"},
      "contentDetails": {"relatedPlaylists": {"uploads": "UU1"}}
    }
  ]
}`

const emptyListBody = `{"pageInfo": {"totalResults": 0}, "items": []}`

const videoBody = `{
  "items": [
    {
      "kind": "youtube#video",
      "id": "v1",
      "snippet": {
        "title": "Video one",
        "publishedAt": "2021-03-04T05:06:07Z",
        "channelId": "UC1",
        "channelTitle": "First",
        "thumbnails": {"default": {"url": "http://d/v1"}, "medium": {"url": "http://m/v1"}}
      }
    }
  ]
}`

const playlistPage1Body = `{
  "nextPageToken": "CAUQAA",
  "items": [
    {
      "id": "item1",
      "snippet": {
        "title": "One",
        "publishedAt": "2021-01-01T00:00:00Z",
        "channelId": "UC1",
        "channelTitle": "First",
        "thumbnails": {"default": {"url": "http://d/a"}},
        "resourceId": {"kind": "youtube#video", "videoId": "va"}
      }
    }
  ]
}`
