package whatsapp_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/aretw0/courier/pkg/connector/whatsapp"
	"github.com/aretw0/courier/pkg/domain"
	"github.com/aretw0/courier/pkg/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deliveryBody = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA-1",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "15550001111", "phone_number_id": "PN-1"},
        "contacts": [{"profile": {"name": "Ada"}, "wa_id": "5511999"}],
        "messages": [
          {"from": "5511999", "id": "wamid.1", "timestamp": "1700000000", "type": "text", "text": {"body": "hi"}},
          {"from": "5511999", "id": "wamid.2", "timestamp": "1700000005", "type": "image", "image": {"id": "img-1", "mime_type": "image/jpeg"}}
        ],
        "statuses": [
          {"id": "wamid.out", "status": "read", "timestamp": "1700000010", "recipient_id": "5511888"}
        ]
      }
    }]
  }]
}`

func newConnector(t *testing.T, opts ...whatsapp.Option) *whatsapp.Connector {
	t.Helper()
	base := []whatsapp.Option{
		whatsapp.WithCredentials("PN-1", "token"),
		whatsapp.WithVerifyToken("secret-verify"),
	}
	c, err := whatsapp.New(append(base, opts...)...)
	require.NoError(t, err)
	return c
}

func getRequest(q url.Values) *domain.Request {
	return &domain.Request{Method: http.MethodGet, Query: q, Header: http.Header{}}
}

func TestNew_RequiresClientSource(t *testing.T) {
	_, err := whatsapp.New(whatsapp.WithVerifyToken("x"))
	assert.Error(t, err)

	client := whatsapp.NewClient("PN-9", "tok")
	c, err := whatsapp.New(whatsapp.WithClient(client))
	require.NoError(t, err)
	assert.Same(t, client, c.Client())
}

func TestPreprocess_Verification(t *testing.T) {
	c := newConnector(t)
	ctx := context.Background()

	t.Run("correct token answers the challenge", func(t *testing.T) {
		resp, err := c.Preprocess(ctx, getRequest(url.Values{
			"hub.mode":         {"subscribe"},
			"hub.verify_token": {"secret-verify"},
			"hub.challenge":    {"chal-123"},
		}))
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Equal(t, "chal-123", resp.Body)
	})

	t.Run("wrong token is rejected", func(t *testing.T) {
		_, err := c.Preprocess(ctx, getRequest(url.Values{
			"hub.mode":         {"subscribe"},
			"hub.verify_token": {"nope"},
			"hub.challenge":    {"chal-123"},
		}))
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, http.StatusForbidden, verr.Status)
		assert.JSONEq(t, `"Error, wrong validation token"`, string(verr.Body.(json.RawMessage)))
	})

	t.Run("wrong mode is rejected", func(t *testing.T) {
		_, err := c.Preprocess(ctx, getRequest(url.Values{"hub.mode": {"unsubscribe"}}))
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, http.StatusForbidden, verr.Status)
		assert.JSONEq(t, `"Error, wrong mode"`, string(verr.Body.(json.RawMessage)))
	})
}

func TestPreprocess_Post(t *testing.T) {
	ctx := context.Background()

	t.Run("entries continue", func(t *testing.T) {
		resp, err := newConnector(t).Preprocess(ctx, &domain.Request{Method: http.MethodPost, Header: http.Header{}, Body: []byte(deliveryBody)})
		assert.NoError(t, err)
		assert.Nil(t, resp)
	})

	t.Run("empty entry is unsupported", func(t *testing.T) {
		_, err := newConnector(t).Preprocess(ctx, &domain.Request{Method: http.MethodPost, Header: http.Header{}, Body: []byte(`{"entry":[]}`)})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, http.StatusForbidden, verr.Status)
	})

	t.Run("other methods are unsupported", func(t *testing.T) {
		_, err := newConnector(t).Preprocess(ctx, &domain.Request{Method: http.MethodPut, Header: http.Header{}})
		assert.Equal(t, http.StatusForbidden, domain.StatusFor(err))
	})

	t.Run("signature is checked when an app secret is set", func(t *testing.T) {
		c := newConnector(t, whatsapp.WithAppSecret("app-secret"))
		mac := hmac.New(sha256.New, []byte("app-secret"))
		mac.Write([]byte(deliveryBody))
		good := "sha256=" + hex.EncodeToString(mac.Sum(nil))

		req := &domain.Request{Method: http.MethodPost, Header: http.Header{}, Body: []byte(deliveryBody)}
		req.Header.Set(whatsapp.SignatureHeader, good)
		resp, err := c.Preprocess(ctx, req)
		assert.NoError(t, err)
		assert.Nil(t, resp)

		req.Header.Set(whatsapp.SignatureHeader, "sha256=deadbeef")
		_, err = c.Preprocess(ctx, req)
		assert.Equal(t, http.StatusUnauthorized, domain.StatusFor(err))
	})
}

func TestMapRequestToEvents(t *testing.T) {
	c := newConnector(t)

	events, err := c.MapRequestToEvents([]byte(deliveryBody))
	require.NoError(t, err)
	require.Len(t, events, 3)

	text := events[0].(*whatsapp.Event)
	assert.Equal(t, whatsapp.KindMessages, text.Kind())
	assert.Equal(t, "hi", text.Text())
	assert.True(t, text.Facets().IsText)
	assert.True(t, text.Facets().IsReceived)
	contact, ok := text.Contact()
	require.True(t, ok)
	assert.Equal(t, "Ada", contact.Profile.Name)
	assert.Equal(t, "WABA-1", text.BusinessAccountID())

	media := events[1].(*whatsapp.Event)
	assert.True(t, media.Facets().IsMedia)
	assert.False(t, media.Facets().IsText)
	assert.Equal(t, "", media.Text())

	status := events[2].(*whatsapp.Event)
	assert.Equal(t, whatsapp.KindStatuses, status.Kind())
	assert.True(t, status.Facets().IsRead)
	assert.False(t, status.Facets().IsMessage)
	assert.Equal(t, "5511888", status.WaID())
}

func TestMapRequestToEvents_ReferentialStability(t *testing.T) {
	c := newConnector(t)
	events, err := c.MapRequestToEvents([]byte(deliveryBody))
	require.NoError(t, err)

	ev := events[0].(*whatsapp.Event)
	msg, ok := ev.Message()
	require.True(t, ok)
	assert.Equal(t, ev.Raw(), ev.Raw())
	assert.Equal(t, msg, ev.Raw())
	assert.Equal(t, ev.Facets(), ev.Facets())

	again, err := c.MapRequestToEvents([]byte(deliveryBody))
	require.NoError(t, err)
	assert.Equal(t, events, again)
}

func TestEvent_AccessorsReturnCopies(t *testing.T) {
	c := newConnector(t)
	events, err := c.MapRequestToEvents([]byte(deliveryBody))
	require.NoError(t, err)

	text := events[0].(*whatsapp.Event)
	msg, ok := text.Message()
	require.True(t, ok)
	msg.Text.Body = "changed"
	msg.From = "someone-else"
	raw := text.Raw().(whatsapp.InboundMessage)
	raw.Text.Body = "changed too"

	contact, ok := text.Contact()
	require.True(t, ok)
	contact.Profile.Name = "Eve"

	assert.Equal(t, "hi", text.Text())
	assert.Equal(t, "5511999", text.WaID())
	again, _ := text.Contact()
	assert.Equal(t, "Ada", again.Profile.Name)

	status := events[2].(*whatsapp.Event)
	st, ok := status.Status()
	require.True(t, ok)
	st.RecipientID = "0"
	assert.Equal(t, "5511888", status.WaID())

	_, ok = status.Message()
	assert.False(t, ok)
	_, ok = text.Status()
	assert.False(t, ok)
}

func TestMapRequestToEvents_EmptyAndInvalid(t *testing.T) {
	c := newConnector(t)

	events, err := c.MapRequestToEvents([]byte(`{"entry":[{"id":"x","changes":[{"value":{}}]}]}`))
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = c.MapRequestToEvents([]byte(`{"entry": "nope"}`))
	var merr *domain.MappingError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, domain.PlatformWhatsappBusiness, merr.Platform)
}

func TestSessionKey(t *testing.T) {
	c := newConnector(t)
	events, err := c.MapRequestToEvents([]byte(deliveryBody))
	require.NoError(t, err)

	k1, ok := c.SessionKey(events[0])
	require.True(t, ok)
	k2, ok := c.SessionKey(events[1])
	require.True(t, ok)
	k3, ok := c.SessionKey(events[2])
	require.True(t, ok)

	assert.Equal(t, "whatsapp-business:PN-1:5511999", k1)
	assert.Equal(t, k1, k2, "same identity must share a key")
	assert.NotEqual(t, k1, k3, "distinct identities must not collide")
}

func TestUpdateSession_Idempotent(t *testing.T) {
	c := newConnector(t)
	events, err := c.MapRequestToEvents([]byte(deliveryBody))
	require.NoError(t, err)

	s := domain.NewSession("k", domain.PlatformWhatsappBusiness, nil)
	require.NoError(t, c.UpdateSession(s, events[1]))
	first := *s.User()

	require.NoError(t, c.UpdateSession(s, events[1]))
	assert.True(t, first.Equal(*s.User()), "applying the same event twice must be a no-op")

	// An older event does not roll the snapshot back.
	require.NoError(t, c.UpdateSession(s, events[0]))
	assert.True(t, first.Equal(*s.User()))

	assert.Equal(t, "5511999", s.User().ID())
	assert.Equal(t, "Ada", s.User().Name())
	assert.Equal(t, time.Unix(1700000005, 0).UTC(), s.User().UpdatedAt())
	pn, _ := s.User().Attr("phone_number_id")
	assert.Equal(t, "PN-1", pn)
}

func TestCreateContext(t *testing.T) {
	c := newConnector(t)
	events, err := c.MapRequestToEvents([]byte(deliveryBody))
	require.NoError(t, err)
	s := domain.NewSession("k", domain.PlatformWhatsappBusiness, nil)

	hc, err := c.CreateContext(handler.ContextParams{Channel: "wa", Event: events[0], Session: s})
	require.NoError(t, err)
	assert.Equal(t, domain.PlatformWhatsappBusiness, hc.Platform())
	assert.Same(t, s, hc.Session())

	cl, ok := whatsapp.ClientOf(hc)
	require.True(t, ok)
	assert.Equal(t, "PN-1", cl.PhoneNumberID())
	assert.Equal(t, "5511999", whatsapp.RecipientID(hc))
}
