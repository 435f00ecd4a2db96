package whatsapp_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/courier/pkg/connector/whatsapp"
	"github.com/aretw0/courier/pkg/domain"
	"github.com/aretw0/courier/pkg/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Path   string
	Auth   string
	Fields map[string]any
}

func newGraphServer(t *testing.T, status int, reply string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var got []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var fields map[string]any
		_ = json.Unmarshal(body, &fields)
		got = append(got, capturedRequest{Path: r.URL.Path, Auth: r.Header.Get("Authorization"), Fields: fields})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestClient_SendText(t *testing.T) {
	srv, got := newGraphServer(t, http.StatusOK, `{"messaging_product":"whatsapp","messages":[{"id":"wamid.out"}]}`)
	client := whatsapp.NewClient("PN-1", "tok", whatsapp.WithBaseURL(srv.URL))

	resp, err := client.SendText(context.Background(), "5511999", "hello")
	require.NoError(t, err)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "wamid.out", resp.Messages[0].ID)

	require.Len(t, *got, 1)
	req := (*got)[0]
	assert.Equal(t, "/PN-1/messages", req.Path)
	assert.Equal(t, "Bearer tok", req.Auth)
	assert.Equal(t, "whatsapp", req.Fields["messaging_product"])
	assert.Equal(t, "5511999", req.Fields["to"])
	assert.Equal(t, "text", req.Fields["type"])
	assert.Equal(t, map[string]any{"body": "hello"}, req.Fields["text"])
}

func TestClient_APIError(t *testing.T) {
	srv, _ := newGraphServer(t, http.StatusBadRequest, `{"error":{"message":"Invalid parameter","type":"OAuthException","code":100,"fbtrace_id":"abc"}}`)
	client := whatsapp.NewClient("PN-1", "tok", whatsapp.WithBaseURL(srv.URL))

	err := client.MarkAsRead(context.Background(), "wamid.1")
	var apiErr *whatsapp.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 100, apiErr.Code)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "Invalid parameter")
}

func TestContextHelpers(t *testing.T) {
	srv, got := newGraphServer(t, http.StatusOK, `{"messaging_product":"whatsapp","messages":[{"id":"wamid.out"}]}`)
	c, err := whatsapp.New(
		whatsapp.WithCredentials("PN-1", "tok", whatsapp.WithBaseURL(srv.URL)),
		whatsapp.WithVerifyToken("v"),
	)
	require.NoError(t, err)

	events, err := c.MapRequestToEvents([]byte(deliveryBody))
	require.NoError(t, err)
	hc, err := c.CreateContext(handler.ContextParams{Event: events[0], Session: domain.NewSession("k", domain.PlatformWhatsappBusiness, nil)})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, hc.SendText(ctx, "pong"))
	require.NoError(t, whatsapp.MarkAsRead(ctx, hc))

	require.Len(t, *got, 2)
	assert.Equal(t, "5511999", (*got)[0].Fields["to"])
	assert.Equal(t, "wamid.1", (*got)[1].Fields["message_id"])
	assert.Equal(t, "read", (*got)[1].Fields["status"])

	statusCtx, err := c.CreateContext(handler.ContextParams{Event: events[2], Session: domain.NewSession("k2", domain.PlatformWhatsappBusiness, nil)})
	require.NoError(t, err)
	assert.Error(t, whatsapp.MarkAsRead(ctx, statusCtx), "statuses cannot be marked as read")
}
