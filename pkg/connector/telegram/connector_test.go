package telegram_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/courier/pkg/connector/telegram"
	"github.com/aretw0/courier/pkg/domain"
	"github.com/aretw0/courier/pkg/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw1"

const textUpdate = `{
  "update_id": 10,
  "message": {
    "message_id": 1,
    "date": 1700000000,
    "from": {"id": 42, "is_bot": false, "first_name": "Ada", "last_name": "Lovelace", "username": "ada", "language_code": "en"},
    "chat": {"id": -100, "type": "group"},
    "text": "hello"
  }
}`

const photoUpdate = `{
  "update_id": 11,
  "message": {
    "message_id": 2,
    "date": 1700000100,
    "from": {"id": 43, "is_bot": false, "first_name": "Bob"},
    "chat": {"id": 43, "type": "private"},
    "photo": [{"file_id": "f1", "file_unique_id": "u1", "width": 10, "height": 10}]
  }
}`

const callbackUpdate = `{
  "update_id": 12,
  "callback_query": {
    "id": "cb-1",
    "from": {"id": 42, "is_bot": false, "first_name": "Ada"},
    "chat_instance": "ci",
    "data": "yes"
  }
}`

func newConnector(t *testing.T, opts ...telegram.Option) *telegram.Connector {
	t.Helper()
	c, err := telegram.New(testToken, opts...)
	require.NoError(t, err)
	return c
}

func TestNew_InvalidToken(t *testing.T) {
	_, err := telegram.New("not-a-token")
	assert.Error(t, err)
}

func TestPreprocess(t *testing.T) {
	ctx := context.Background()

	t.Run("GET is not allowed", func(t *testing.T) {
		_, err := newConnector(t).Preprocess(ctx, &domain.Request{Method: http.MethodGet, Header: http.Header{}})
		assert.Equal(t, http.StatusMethodNotAllowed, domain.StatusFor(err))
	})

	t.Run("POST without secret continues", func(t *testing.T) {
		resp, err := newConnector(t).Preprocess(ctx, &domain.Request{Method: http.MethodPost, Header: http.Header{}})
		assert.NoError(t, err)
		assert.Nil(t, resp)
	})

	t.Run("secret token is enforced", func(t *testing.T) {
		c := newConnector(t, telegram.WithSecretToken("s3cret"))
		req := &domain.Request{Method: http.MethodPost, Header: http.Header{}}

		_, err := c.Preprocess(ctx, req)
		assert.Equal(t, http.StatusUnauthorized, domain.StatusFor(err))

		req.Header.Set(telegram.SecretTokenHeader, "s3cret")
		resp, err := c.Preprocess(ctx, req)
		assert.NoError(t, err)
		assert.Nil(t, resp)
	})
}

func TestMapRequestToEvents(t *testing.T) {
	c := newConnector(t)

	events, err := c.MapRequestToEvents([]byte(textUpdate))
	require.NoError(t, err)
	require.Len(t, events, 1)
	ev := events[0].(*telegram.Event)
	assert.Equal(t, telegram.KindMessage, ev.Kind())
	assert.Equal(t, "hello", ev.Text())
	assert.True(t, ev.Facets().IsText)
	assert.False(t, ev.Facets().IsMedia)
	assert.Same(t, ev.Update(), ev.Raw())

	events, err = c.MapRequestToEvents([]byte(photoUpdate))
	require.NoError(t, err)
	assert.True(t, events[0].Facets().IsMedia)

	events, err = c.MapRequestToEvents([]byte(callbackUpdate))
	require.NoError(t, err)
	cb := events[0].(*telegram.Event)
	assert.Equal(t, telegram.KindCallbackQuery, cb.Kind())
	assert.True(t, cb.Facets().IsCallback)
	assert.Equal(t, "yes", cb.CallbackData())

	events, err = c.MapRequestToEvents([]byte(`{"update_id": 13, "poll": {"id": "p"}}`))
	require.NoError(t, err)
	assert.Empty(t, events, "unsupported update types yield no events")

	_, err = c.MapRequestToEvents([]byte(`[`))
	var merr *domain.MappingError
	assert.ErrorAs(t, err, &merr)
}

func TestSessionKey(t *testing.T) {
	c := newConnector(t)
	key := func(body string) string {
		events, err := c.MapRequestToEvents([]byte(body))
		require.NoError(t, err)
		k, ok := c.SessionKey(events[0])
		require.True(t, ok)
		return k
	}

	assert.Equal(t, "telegram:-100", key(textUpdate))
	assert.Equal(t, key(textUpdate), key(textUpdate))
	assert.Equal(t, "telegram:43", key(photoUpdate))
	assert.Equal(t, "telegram:42", key(callbackUpdate), "callback queries key on the sender")
}

func TestUpdateSession(t *testing.T) {
	c := newConnector(t)
	events, err := c.MapRequestToEvents([]byte(textUpdate))
	require.NoError(t, err)

	s := domain.NewSession("telegram:-100", domain.PlatformTelegram, nil)
	require.NoError(t, c.UpdateSession(s, events[0]))
	first := *s.User()
	require.NoError(t, c.UpdateSession(s, events[0]))
	assert.True(t, first.Equal(*s.User()))

	assert.Equal(t, "42", first.ID())
	assert.Equal(t, "Ada Lovelace", first.Name())
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), first.UpdatedAt())
	username, _ := first.Attr("username")
	assert.Equal(t, "ada", username)

	// A callback carries no timestamp and keeps the last known one.
	cbEvents, err := c.MapRequestToEvents([]byte(callbackUpdate))
	require.NoError(t, err)
	require.NoError(t, c.UpdateSession(s, cbEvents[0]))
	assert.Equal(t, first.UpdatedAt(), s.User().UpdatedAt())
}

func TestSendText(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
		sent map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		path = r.URL.Path
		_ = json.Unmarshal(body, &sent)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":99,"date":1700000001,"chat":{"id":-100,"type":"group"},"text":"pong"}}`)
	}))
	defer srv.Close()

	c := newConnector(t, telegram.WithAPIServer(srv.URL))
	events, err := c.MapRequestToEvents([]byte(textUpdate))
	require.NoError(t, err)
	hc, err := c.CreateContext(handler.ContextParams{Event: events[0], Session: domain.NewSession("k", domain.PlatformTelegram, nil)})
	require.NoError(t, err)

	require.NoError(t, hc.SendText(context.Background(), "pong"))

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, strings.HasSuffix(path, "/sendMessage"), "unexpected path %q", path)
	assert.Equal(t, "pong", sent["text"])
	assert.EqualValues(t, -100, sent["chat_id"])
}

func TestRoutes(t *testing.T) {
	c := newConnector(t)
	noop := handler.Func(func(context.Context, *handler.Context) error { return nil })
	ctxFor := func(body string) *handler.Context {
		events, err := c.MapRequestToEvents([]byte(body))
		require.NoError(t, err)
		hc, err := c.CreateContext(handler.ContextParams{Event: events[0], Session: domain.NewSession("k", domain.PlatformTelegram, nil)})
		require.NoError(t, err)
		return hc
	}
	text, photo, cb := ctxFor(textUpdate), ctxFor(photoUpdate), ctxFor(callbackUpdate)

	assert.True(t, telegram.Text(noop).Predicate(text))
	assert.False(t, telegram.Text(noop).Predicate(photo))
	assert.True(t, telegram.Media(noop).Predicate(photo))
	assert.True(t, telegram.Callback(noop).Predicate(cb))
	assert.False(t, telegram.Message(noop).Predicate(cb))
	assert.True(t, telegram.Any(noop).Predicate(cb))
}
