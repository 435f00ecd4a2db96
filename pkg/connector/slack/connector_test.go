package slack_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/aretw0/courier/pkg/connector/slack"
	"github.com/aretw0/courier/pkg/domain"
	"github.com/aretw0/courier/pkg/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const messageBody = `{
  "type": "event_callback",
  "team_id": "T1",
  "event_id": "Ev1",
  "event_time": 1700000000,
  "event": {"type": "message", "user": "U1", "text": "hello", "channel": "C1", "ts": "1700000000.000100", "thread_ts": "1699999999.000001"}
}`

const botBody = `{
  "type": "event_callback",
  "team_id": "T1",
  "event": {"type": "message", "bot_id": "B1", "text": "echo", "channel": "C1", "ts": "1700000001.000000"}
}`

var fixedNow = time.Unix(1700000000, 0)

func newConnector(t *testing.T, opts ...slack.Option) *slack.Connector {
	t.Helper()
	base := []slack.Option{slack.WithToken("xoxb-test"), slack.WithClock(func() time.Time { return fixedNow })}
	c, err := slack.New(append(base, opts...)...)
	require.NoError(t, err)
	return c
}

func signed(secret string, at time.Time, body string) *domain.Request {
	ts := strconv.FormatInt(at.Unix(), 10)
	req := &domain.Request{Method: http.MethodPost, Header: http.Header{}, Body: []byte(body)}
	req.Header.Set(slack.TimestampHeader, ts)
	req.Header.Set(slack.SignatureHeader, slack.Sign(secret, ts, []byte(body)))
	return req
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := slack.New()
	assert.Error(t, err)
}

func TestPreprocess_URLVerification(t *testing.T) {
	c := newConnector(t)
	resp, err := c.Preprocess(context.Background(), &domain.Request{
		Method: http.MethodPost,
		Header: http.Header{},
		Body:   []byte(`{"type":"url_verification","challenge":"abc"}`),
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, map[string]string{"challenge": "abc"}, resp.Body)
}

func TestPreprocess_Signature(t *testing.T) {
	c := newConnector(t, slack.WithSigningSecret("sign"))
	ctx := context.Background()

	resp, err := c.Preprocess(ctx, signed("sign", fixedNow, messageBody))
	assert.NoError(t, err)
	assert.Nil(t, resp)

	_, err = c.Preprocess(ctx, signed("other", fixedNow, messageBody))
	assert.Equal(t, http.StatusUnauthorized, domain.StatusFor(err))

	_, err = c.Preprocess(ctx, signed("sign", fixedNow.Add(-6*time.Minute), messageBody))
	assert.Equal(t, http.StatusUnauthorized, domain.StatusFor(err), "stale requests are rejected")

	_, err = c.Preprocess(ctx, &domain.Request{Method: http.MethodPost, Header: http.Header{}, Body: []byte(messageBody)})
	assert.Equal(t, http.StatusUnauthorized, domain.StatusFor(err))

	_, err = c.Preprocess(ctx, &domain.Request{Method: http.MethodGet, Header: http.Header{}})
	assert.Equal(t, http.StatusMethodNotAllowed, domain.StatusFor(err))
}

func TestMapRequestToEvents(t *testing.T) {
	c := newConnector(t)

	events, err := c.MapRequestToEvents([]byte(messageBody))
	require.NoError(t, err)
	require.Len(t, events, 1)
	ev := events[0].(*slack.Event)
	assert.Equal(t, domain.EventKind("message"), ev.Kind())
	assert.Equal(t, "hello", ev.Text())
	assert.True(t, ev.Facets().IsText)
	assert.Same(t, ev.Inner(), ev.Raw())
	assert.Equal(t, time.Unix(1700000000, 100*int64(time.Microsecond)).UTC(), ev.Timestamp())

	events, err = c.MapRequestToEvents([]byte(botBody))
	require.NoError(t, err)
	assert.Empty(t, events, "bot messages are ignored")

	events, err = c.MapRequestToEvents([]byte(`{"type":"app_rate_limited"}`))
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = c.MapRequestToEvents([]byte(`{"type":"event_callback","event":"bad"}`))
	var merr *domain.MappingError
	assert.ErrorAs(t, err, &merr)
}

func TestSessionKeyAndUser(t *testing.T) {
	c := newConnector(t)
	events, err := c.MapRequestToEvents([]byte(messageBody))
	require.NoError(t, err)

	key, ok := c.SessionKey(events[0])
	require.True(t, ok)
	assert.Equal(t, "slack:T1:C1", key)

	s := domain.NewSession(key, domain.PlatformSlack, nil)
	require.NoError(t, c.UpdateSession(s, events[0]))
	require.NoError(t, c.UpdateSession(s, events[0]))
	assert.Equal(t, "U1", s.User().ID())
	team, _ := s.User().Attr("team_id")
	assert.Equal(t, "T1", team)
}

func TestPostMessage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		assert.Equal(t, "Bearer xoxb-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = io.WriteString(w, `{"ok":true,"channel":"C1","ts":"1700000002.000000"}`)
	}))
	defer srv.Close()

	c := newConnector(t, slack.WithAPIBaseURL(srv.URL))
	events, err := c.MapRequestToEvents([]byte(messageBody))
	require.NoError(t, err)
	hc, err := c.CreateContext(handler.ContextParams{Event: events[0], Session: domain.NewSession("k", domain.PlatformSlack, nil)})
	require.NoError(t, err)

	require.NoError(t, hc.SendText(context.Background(), "hi back"))
	assert.Equal(t, "C1", got["channel"])
	assert.Equal(t, "hi back", got["text"])
	assert.Equal(t, "1699999999.000001", got["thread_ts"])

	resp, err := slack.PostMessage(context.Background(), hc, "and again")
	require.NoError(t, err)
	assert.Equal(t, "1700000002.000000", resp.TS)
	assert.Equal(t, "and again", got["text"])
}

func TestPostMessage_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":false,"error":"channel_not_found"}`)
	}))
	defer srv.Close()

	client := slack.NewClient("xoxb", slack.WithBaseURL(srv.URL))
	_, err := client.PostMessage(context.Background(), slack.PostMessageRequest{Channel: "C404", Text: "x"})
	var apiErr *slack.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "channel_not_found", apiErr.Code)
}

func TestRoutes(t *testing.T) {
	c := newConnector(t)
	events, err := c.MapRequestToEvents([]byte(messageBody))
	require.NoError(t, err)
	hc, err := c.CreateContext(handler.ContextParams{Event: events[0], Session: domain.NewSession("k", domain.PlatformSlack, nil)})
	require.NoError(t, err)

	noop := handler.Func(func(context.Context, *handler.Context) error { return nil })
	assert.True(t, slack.Message(noop).Predicate(hc))
	assert.True(t, slack.Any(noop).Predicate(hc))
	assert.False(t, slack.Mention(noop).Predicate(hc))
}
