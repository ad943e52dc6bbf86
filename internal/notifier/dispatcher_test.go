package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CodingHusk3y/heartwake/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var payload = models.TriggerPayload{
	AlarmID: "a-1",
	Kind:    models.TriggerDeadline,
	Title:   "Alarm",
	Body:    "07:00",
	Sound:   true,
}

func setupTestRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestStreamDispatcher_ScheduleOnce(t *testing.T) {
	client := setupTestRedis(t)
	d := NewStreamDispatcher(client, "heartwake:triggers:stream", zap.NewNop())
	ctx := context.Background()

	at := time.Date(2024, 3, 5, 7, 0, 0, 0, time.UTC)
	id, err := d.ScheduleOnce(ctx, at, payload)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	entries, err := client.XRange(ctx, "heartwake:triggers:stream", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionScheduleOnce, entries[0].Values["action"])
	assert.Equal(t, id, entries[0].Values["trigger_id"])
	assert.Equal(t, "a-1", entries[0].Values["alarm_id"])

	var req TriggerRequest
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["data"].(string)), &req))
	require.NotNil(t, req.At)
	assert.True(t, at.Equal(*req.At))
	assert.Equal(t, "07:00", req.Payload.Body)
}

func TestStreamDispatcher_RecurringAndCancel(t *testing.T) {
	client := setupTestRedis(t)
	d := NewStreamDispatcher(client, "triggers", zap.NewNop())
	ctx := context.Background()

	_, err := d.ScheduleRecurring(ctx, 0, 7, 0, payload)
	assert.Error(t, err)

	id, err := d.ScheduleRecurring(ctx, 2, 6, 30, payload)
	require.NoError(t, err)
	require.NoError(t, d.Cancel(ctx, id))

	entries, err := client.XRange(ctx, "triggers", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var req TriggerRequest
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["data"].(string)), &req))
	assert.Equal(t, ActionScheduleRecurring, req.Action)
	assert.Equal(t, 2, req.Weekday)
	assert.Equal(t, 6, req.Hour)
	assert.Equal(t, 30, req.Minute)

	assert.Equal(t, ActionCancel, entries[1].Values["action"])
	assert.Equal(t, id, entries[1].Values["trigger_id"])
}

type gateway struct {
	mu       sync.Mutex
	requests []TriggerRequest
	deleted  []string
	reject   bool
}

func (g *gateway) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/triggers", func(w http.ResponseWriter, r *http.Request) {
		var req TriggerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		g.mu.Lock()
		g.requests = append(g.requests, req)
		reject := g.reject
		n := len(g.requests)
		g.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if reject {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"code":"quota","message":"too many pending triggers"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"trigger_id": "gw-" + string(rune('0'+n))})
	})
	mux.HandleFunc("/v1/triggers/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/v1/triggers/")
		g.mu.Lock()
		g.deleted = append(g.deleted, id)
		g.mu.Unlock()
		if id == "gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func TestHTTPDispatcher_Schedule(t *testing.T) {
	gw := &gateway{}
	server := httptest.NewServer(gw.handler())
	defer server.Close()

	d := NewHTTPDispatcher(server.URL, time.Second, zap.NewNop())
	ctx := context.Background()

	id, err := d.ScheduleOnce(ctx, time.Date(2024, 3, 5, 6, 30, 0, 0, time.UTC), payload)
	require.NoError(t, err)
	assert.Equal(t, "gw-1", id)

	id, err = d.ScheduleRecurring(ctx, 1, 23, 40, payload)
	require.NoError(t, err)
	assert.Equal(t, "gw-2", id)

	require.Len(t, gw.requests, 2)
	assert.Equal(t, ActionScheduleOnce, gw.requests[0].Action)
	assert.Equal(t, 6, gw.requests[0].Hour)
	assert.Equal(t, ActionScheduleRecurring, gw.requests[1].Action)
	assert.Equal(t, 1, gw.requests[1].Weekday)
	assert.Equal(t, "a-1", gw.requests[1].Payload.AlarmID)
}

func TestHTTPDispatcher_Rejected(t *testing.T) {
	gw := &gateway{reject: true}
	server := httptest.NewServer(gw.handler())
	defer server.Close()

	d := NewHTTPDispatcher(server.URL, time.Second, zap.NewNop())
	_, err := d.ScheduleOnce(context.Background(), time.Now().Add(time.Hour), payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many pending triggers")
	// 4xx 不重试
	assert.Len(t, gw.requests, 1)
}

func TestHTTPDispatcher_Cancel(t *testing.T) {
	gw := &gateway{}
	server := httptest.NewServer(gw.handler())
	defer server.Close()

	d := NewHTTPDispatcher(server.URL, time.Second, zap.NewNop())
	require.NoError(t, d.Cancel(context.Background(), "gw-1"))
	// 已不存在的触发视为取消成功
	require.NoError(t, d.Cancel(context.Background(), "gone"))
	assert.Equal(t, []string{"gw-1", "gone"}, gw.deleted)
}

type recordingDispatcher struct {
	once      []time.Time
	recurring []int
}

func (r *recordingDispatcher) ScheduleOnce(ctx context.Context, at time.Time, p models.TriggerPayload) (string, error) {
	r.once = append(r.once, at)
	return "once", nil
}

func (r *recordingDispatcher) ScheduleRecurring(ctx context.Context, weekday, hour, minute int, p models.TriggerPayload) (string, error) {
	r.recurring = append(r.recurring, weekday)
	return "recurring", nil
}

func (r *recordingDispatcher) Cancel(ctx context.Context, id string) error { return nil }

func TestDispatch_RoutesByRepeat(t *testing.T) {
	rd := &recordingDispatcher{}
	at := time.Date(2024, 3, 5, 7, 0, 0, 0, time.UTC)

	id, err := Dispatch(context.Background(), rd, models.Trigger{At: at}, payload)
	require.NoError(t, err)
	assert.Equal(t, "once", id)

	id, err = Dispatch(context.Background(), rd, models.Trigger{Repeats: true, Weekday: 3}, payload)
	require.NoError(t, err)
	assert.Equal(t, "recurring", id)

	assert.Equal(t, []time.Time{at}, rd.once)
	assert.Equal(t, []int{3}, rd.recurring)
}
