package rawgkit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// MockRAWGServer mimics the handful of RAWG API endpoints the client is
// exercised against.
type MockRAWGServer struct {
	server *httptest.Server
	calls  int64
}

func NewMockRAWGServer() *MockRAWGServer {
	m := &MockRAWGServer{}
	mux := http.NewServeMux()

	mux.HandleFunc("/games", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&m.calls, 1)
		if r.URL.Query().Get("key") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		response := map[string]interface{}{
			"count": 2,
			"results": []map[string]interface{}{
				{"id": 3498, "name": "Grand Theft Auto V", "rating": 4.47},
				{"id": 3328, "name": "The Witcher 3: Wild Hunt", "rating": 4.65},
			},
		}
		_ = json.NewEncoder(w).Encode(response)
	})

	mux.HandleFunc("/games/3498", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&m.calls, 1)
		response := map[string]interface{}{
			"id":       3498,
			"name":     "Grand Theft Auto V",
			"released": "2013-09-17",
			"rating":   4.47,
		}
		_ = json.NewEncoder(w).Encode(response)
	})

	mux.HandleFunc("/genres", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&m.calls, 1)
		// First hit fails, forcing a retry.
		if n%2 == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"count":   1,
			"results": []map[string]interface{}{{"id": 4, "name": "Action"}},
		})
	})

	m.server = httptest.NewServer(mux)
	return m
}

func (m *MockRAWGServer) Close() {
	m.server.Close()
}

func (m *MockRAWGServer) Calls() int64 {
	return atomic.LoadInt64(&m.calls)
}

type gameList struct {
	Count   int `json:"count"`
	Results []struct {
		ID     int     `json:"id"`
		Name   string  `json:"name"`
		Rating float64 `json:"rating"`
	} `json:"results"`
}

// TestClientLifecycle walks a client through the paths a consumer exercises:
// listing, fetching a single resource, cache reuse, retry recovery and
// cache maintenance.
func TestClientLifecycle(t *testing.T) {
	mock := NewMockRAWGServer()
	defer mock.Close()

	ctx := context.Background()

	client := testClient(mock.server,
		WithAPIKey("integration-test-key"),
		WithMaxRetries(2),
		WithCache(time.Minute, 64),
		WithUserAgent("rawgkit-integration/1.0"),
	)
	require.True(t, client.IsValid(), "configuration should validate: %v", client.ValidationError())

	t.Run("list_games", func(t *testing.T) {
		var list gameList
		err := client.GetResource(ctx, "/games", map[string]string{"page_size": "2"}, &list)
		require.NoError(t, err)
		require.Equal(t, 2, list.Count)
		require.Len(t, list.Results, 2)
		require.Equal(t, "Grand Theft Auto V", list.Results[0].Name)
	})

	t.Run("repeat_list_is_cached", func(t *testing.T) {
		before := mock.Calls()

		var list gameList
		err := client.GetResource(ctx, "/games", map[string]string{"page_size": "2"}, &list)
		require.NoError(t, err)
		require.Equal(t, before, mock.Calls(), "repeat call should not reach the server")

		stats := client.CacheStats()
		require.GreaterOrEqual(t, stats.Hits, int64(1))
	})

	t.Run("fetch_single_game", func(t *testing.T) {
		var game struct {
			ID       int    `json:"id"`
			Name     string `json:"name"`
			Released string `json:"released"`
		}
		err := client.GetResource(ctx, "/games/3498", nil, &game)
		require.NoError(t, err)
		require.Equal(t, 3498, game.ID)
		require.Equal(t, "2013-09-17", game.Released)
	})

	t.Run("retry_recovers_from_server_error", func(t *testing.T) {
		client.sleep = func(ctx context.Context, d time.Duration) error { return nil }

		var genres struct {
			Count int `json:"count"`
		}
		err := client.GetResource(ctx, "/genres", nil, &genres)
		require.NoError(t, err, "a single 503 should be retried away")
		require.Equal(t, 1, genres.Count)
	})

	t.Run("cache_maintenance", func(t *testing.T) {
		stats := client.CacheStats()
		require.Greater(t, stats.TotalEntries, 0)
		require.Equal(t, stats.TotalEntries, stats.ValidEntries+stats.ExpiredEntries)

		removed := client.CleanExpiredCache()
		require.Zero(t, removed, "nothing should have expired inside the TTL")

		client.ClearCache()
		require.Zero(t, client.CacheStats().TotalEntries)
	})

	t.Logf("lifecycle validated against %s with %d upstream calls", mock.server.URL, mock.Calls())
}

// TestMissingAPIKeyRejected checks that the mock's auth behavior maps onto the
// error taxonomy end to end.
func TestMissingAPIKeyRejected(t *testing.T) {
	mock := NewMockRAWGServer()
	defer mock.Close()

	client := testClient(mock.server)

	var out map[string]interface{}
	err := client.GetResource(context.Background(), "/games", nil, &out)
	require.Error(t, err)
	require.ErrorIs(t, err, &ClientError{Type: ErrorTypeUnauthorized})
}

func ExampleClient_GetResource() {
	client := New(WithAPIKey("your-api-key"))

	var game struct {
		Name string `json:"name"`
	}
	if err := client.GetResource(context.Background(), "/games/3498", nil, &game); err != nil {
		fmt.Println("fetch failed:", err)
		return
	}
	fmt.Println(game.Name)
}
