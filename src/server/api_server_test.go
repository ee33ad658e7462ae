package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"market-pulse/src/interfaces"
	"market-pulse/src/models"
	"market-pulse/src/session"
	"market-pulse/src/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubFeed struct {
	name      string
	refreshed bool
}

func (f *stubFeed) Name() string { return f.name }
func (f *stubFeed) Start(context.Context, *sync.WaitGroup) {}
func (f *stubFeed) FetchNow(context.Context) (int, error) { return 0, nil }
func (f *stubFeed) Health() models.MFeedHealth { return models.MFeedHealth{Name: f.name, Items: 1} }
func (f *stubFeed) Read(_ context.Context, refresh bool) models.MFeedView {
	f.refreshed = refresh
	return models.MFeedView{Items: []string{"headline"}, Count: 1}
}

type stubDirectory struct{ feeds map[string]*stubFeed }

func (d *stubDirectory) GetFeed(name string) (interfaces.IFeedPoller, error) {
	f, ok := d.feeds[name]
	if !ok {
		return nil, fmt.Errorf("feed %s not found", name)
	}
	return f, nil
}

func (d *stubDirectory) Health() []models.MFeedHealth {
	var out []models.MFeedHealth
	for _, f := range d.feeds {
		out = append(out, f.Health())
	}
	return out
}

type stubAdmin struct {
	refreshed int
	removed   []string
}

func (a *stubAdmin) FetchAll(context.Context) map[string]int {
	a.refreshed++
	return map[string]int{"cls_news": 2}
}

func (a *stubAdmin) RemoveFeed(name string) error {
	if name != "cls_news" {
		return fmt.Errorf("feed %s not found", name)
	}
	a.removed = append(a.removed, name)
	return nil
}

type stubSession struct {
	state session.State
	err   error
}

func (s stubSession) Current() (session.State, time.Time, error) {
	return s.state, time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC), s.err
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, deps APIDeps) *APIServer {
	t.Helper()
	cfg := &models.MConfig{Host: "127.0.0.1", Port: 3000, LogLevel: "ERROR"}
	return NewAPIServer(cfg, deps, nil)
}

func get(t *testing.T, s *APIServer, path string) (int, envelope) {
	t.Helper()
	return send(t, s, http.MethodGet, path)
}

func send(t *testing.T, s *APIServer, method, path string) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestFeedRouteReadsWithRefresh(t *testing.T) {
	cls := &stubFeed{name: models.FeedClsNews}
	s := newTestServer(t, APIDeps{Feeds: &stubDirectory{feeds: map[string]*stubFeed{models.FeedClsNews: cls}}})

	code, env := get(t, s, "/api/finance/cls-news")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 200, env.Code)
	assert.Equal(t, "success", env.Message)
	assert.JSONEq(t, `{"data":["headline"],"count":1,"lastUpdate":null}`, string(env.Data))
	assert.True(t, cls.refreshed)

	code, _ = get(t, s, "/api/finance/feeds/cls_news")
	assert.Equal(t, http.StatusOK, code)

	code, env = get(t, s, "/api/finance/feeds/unknown")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, 404, env.Code)
}

func TestTradeStatusRoute(t *testing.T) {
	s := newTestServer(t, APIDeps{Session: stubSession{state: session.LunchBreak}})

	code, env := get(t, s, "/api/trade-calendar/status")
	require.Equal(t, http.StatusOK, code)

	var st models.MTradeStatus
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, 4, st.Status)
	assert.Equal(t, "午间休市", st.StatusText)

	s = newTestServer(t, APIDeps{Session: stubSession{err: errors.New("calendar not loaded")}})
	code, env = get(t, s, "/api/trade-calendar/status")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "calendar not loaded", env.Message)
}

func TestMarketRoutesReadTheStore(t *testing.T) {
	cfg := &models.MConfig{Storage: models.MStorageConfig{DBType: "sqlite", DBPath: ":memory:"}}
	db, err := storage.NewAsyncSQLiteDB(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { _ = db.Close() })

	s := newTestServer(t, APIDeps{DB: db})

	// Nothing stored yet.
	code, env := get(t, s, "/api/finance/market-effect")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, env.Code)
	assert.Equal(t, "no content", env.Message)

	require.NoError(t, db.SaveMarketEffect(context.Background(), models.MMarketEffect{Rise: 3000, StatisticsDate: "2024-03-12 15:00:00"}))
	_, env = get(t, s, "/api/finance/market-effect")
	assert.Equal(t, 200, env.Code)
	assert.Contains(t, string(env.Data), "2024-03-12 15:00:00")

	today := time.Now().UTC().Format("2006-01-02")
	var items []models.MMarketActivity
	for i := 0; i < 3; i++ {
		items = append(items, models.MMarketActivity{
			Time: fmt.Sprintf("10:0%d:00", i), Code: "600000", Name: "浦发银行",
			Sector: "火箭发射", DataDate: today,
		})
	}
	_, _, err = db.SaveMarketActivities(context.Background(), items)
	require.NoError(t, err)

	code, env = get(t, s, "/api/market-activity/list?"+url.Values{"symbol": {"火箭发射,大笔买入"}, "page": {"1"}, "limit": {"2"}}.Encode())
	require.Equal(t, http.StatusOK, code)

	var body struct {
		Data       []models.MMarketActivity `json:"data"`
		Count      int                      `json:"count"`
		Pagination models.MPagination       `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, 3, body.Pagination.Total)
	assert.Equal(t, 2, body.Pagination.TotalPages)
	assert.True(t, body.Pagination.HasNextPage)
	assert.False(t, body.Pagination.HasPrevPage)

	code, env = get(t, s, "/api/market-activity/list?limit=1000000000&page=9223372036854775807")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, maxPageLimit, body.Pagination.Limit)
	assert.Equal(t, 3, body.Pagination.Total)
	assert.Empty(t, body.Data)

	code, env = get(t, s, "/api/market-activity/list?limit=1000000000")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, maxPageLimit, body.Pagination.Limit)
	assert.Len(t, body.Data, 3)

	code, _ = get(t, s, "/api/stock-info/600000")
	assert.Equal(t, http.StatusNotFound, code)

	_, err = db.SaveStockInfo(context.Background(), []models.MStockInfo{{Symbol: "600000", Name: "浦发银行"}})
	require.NoError(t, err)
	code, env = get(t, s, "/api/stock-info/600000")
	require.Equal(t, http.StatusOK, code)
	var info models.MStockInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, "浦发银行", info.Name)
	assert.Equal(t, "SH", info.Prefix)
}

func TestMissingCollaboratorsAnswerUnavailable(t *testing.T) {
	s := newTestServer(t, APIDeps{})
	for _, path := range []string{"/api/finance/cls-news", "/api/trade-calendar/status", "/api/finance/market-effect", "/api/market-activity/list", "/api/stock-info/600000"} {
		code, _ := get(t, s, path)
		assert.Equal(t, http.StatusServiceUnavailable, code, path)
	}
}

func TestHealthRoute(t *testing.T) {
	s := newTestServer(t, APIDeps{Feeds: &stubDirectory{feeds: map[string]*stubFeed{"quotes": {name: "quotes"}}}})
	s.Registry.Add(&fakeConn{id: "x"})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status      string               `json:"status"`
		Connections int                  `json:"connections"`
		Feeds       []models.MFeedHealth `json:"feeds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Connections)
	require.Len(t, body.Feeds, 1)
	assert.Equal(t, "quotes", body.Feeds[0].Name)
}

func TestFeedAdminRoutes(t *testing.T) {
	admin := &stubAdmin{}
	s := newTestServer(t, APIDeps{Admin: admin})

	code, env := send(t, s, http.MethodPost, "/api/feeds/refresh")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, admin.refreshed)
	assert.JSONEq(t, `{"cls_news":2}`, string(env.Data))

	code, _ = send(t, s, http.MethodDelete, "/api/feeds/cls_news")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"cls_news"}, admin.removed)

	code, env = send(t, s, http.MethodDelete, "/api/feeds/nope")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "feed nope not found", env.Message)

	code, _ = send(t, newTestServer(t, APIDeps{}), http.MethodPost, "/api/feeds/refresh")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestBuildPagination(t *testing.T) {
	p := buildPagination(2, 20, 41)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNextPage)
	assert.True(t, p.HasPrevPage)

	p = buildPagination(1, 20, 0)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasNextPage)
}

// -----------------------------------------------------------------------------
// WebSocket end to end
// -----------------------------------------------------------------------------

// echoFrames answers "ping" with "ping" on the same connection.
type echoFrames struct{}

func (echoFrames) HandleFrame(conn interfaces.IConnection, frame []byte) {
	if string(frame) == "ping" {
		_ = conn.Send([]byte("ping"))
	}
}

func TestWebSocketLifecycle(t *testing.T) {
	s := newTestServer(t, APIDeps{Frames: echoFrames{}})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return s.Registry.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "ping", string(msg))

	assert.Equal(t, 1, s.Registry.Broadcast(models.MBroadcastMessage{Type: "cls_news_update", Data: models.MFeedUpdate{Count: 0}}))
	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"type":"cls_news_update"`)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return s.Registry.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}
