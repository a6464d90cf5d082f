package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AikidoSec/ratelimit-go/internal/types"
)

func sampleAlert() Alert {
	return Alert{
		Type:           EventType,
		Key:            "rl:rule:api:ip:1.2.3.4:endpoint:/x",
		RuleID:         "api",
		ViolationCount: 10,
		Severity:       types.SeverityHigh,
		Time:           1_700_000_000_000,
	}
}

func TestAlertJSON(t *testing.T) {
	b, err := json.Marshal(sampleAlert())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "rate_limit_violation",
		"key": "rl:rule:api:ip:1.2.3.4:endpoint:/x",
		"ruleId": "api",
		"violationCount": 10,
		"severity": "high",
		"time": 1700000000000
	}`, string(b))
}

func TestWebhookSink(t *testing.T) {
	t.Run("posts json", func(t *testing.T) {
		var got Alert
		var auth, contentType string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			auth = r.Header.Get("Authorization")
			contentType = r.Header.Get("Content-Type")
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &got)
			w.WriteHeader(http.StatusAccepted)
		}))
		defer srv.Close()

		sink := NewWebhookSink(srv.URL, WithToken("secret"))
		require.NoError(t, sink.Send(context.Background(), sampleAlert()))

		assert.Equal(t, "Bearer secret", auth)
		assert.Equal(t, "application/json", contentType)
		assert.Equal(t, "api", got.RuleID)
		assert.Equal(t, 10, got.ViolationCount)
	})

	t.Run("non 2xx is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		err := NewWebhookSink(srv.URL).Send(context.Background(), sampleAlert())
		assert.ErrorContains(t, err, "500")
	})
}

func TestRedisSink(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, DefaultRedisChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, NewRedisSink(rdb, "").Send(ctx, sampleAlert()))

	select {
	case msg := <-sub.Channel():
		var got Alert
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "api", got.RuleID)
	case <-time.After(2 * time.Second):
		t.Fatal("alert was not published")
	}
}

func TestMultiSendsToAll(t *testing.T) {
	var calls atomic.Int32
	ok := SinkFunc(func(context.Context, Alert) error { calls.Add(1); return nil })
	failing := SinkFunc(func(context.Context, Alert) error { calls.Add(1); return errors.New("down") })

	err := Multi{failing, nil, ok, LogSink{}}.Send(context.Background(), sampleAlert())
	assert.ErrorContains(t, err, "down")
	assert.Equal(t, int32(2), calls.Load())
}

func TestDispatcherThrottles(t *testing.T) {
	var mu sync.Mutex
	var received []Alert
	sink := SinkFunc(func(_ context.Context, a Alert) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, a)
		return nil
	})

	now := time.Unix(1_700_000_000, 0)
	d := NewDispatcher(sink, DispatcherOptions{MaxPerHour: 2, Now: func() time.Time { return now }})

	assert.True(t, d.Dispatch(sampleAlert()))
	assert.True(t, d.Dispatch(sampleAlert()))
	assert.False(t, d.Dispatch(sampleAlert()))

	now = now.Add(time.Hour)
	assert.True(t, d.Dispatch(sampleAlert()))

	d.Wait()
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, received, 3)
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	d := NewDispatcher(SinkFunc(func(context.Context, Alert) error {
		panic("sink bug")
	}), DispatcherOptions{})

	assert.NotPanics(t, func() {
		d.Dispatch(sampleAlert())
		d.Wait()
	})

	d = NewDispatcher(SinkFunc(func(ctx context.Context, _ Alert) error {
		<-ctx.Done()
		return ctx.Err()
	}), DispatcherOptions{SendTimeout: 10 * time.Millisecond})

	start := time.Now()
	d.Dispatch(sampleAlert())
	d.Wait()
	assert.Less(t, time.Since(start), time.Second)
}
