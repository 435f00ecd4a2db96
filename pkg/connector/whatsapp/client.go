package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultAPIBaseURL is the Graph API root used when none is configured.
const DefaultAPIBaseURL = "https://graph.facebook.com/v21.0"

const messagingProduct = "whatsapp"

// Client sends messages through the Meta Graph API on behalf of one phone number.
type Client struct {
	baseURL       string
	phoneNumberID string
	accessToken   string
	http          *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the Graph API root (tests, API version pinning).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// NewClient creates a Graph API client for phoneNumberID.
func NewClient(phoneNumberID, accessToken string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:       DefaultAPIBaseURL,
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		http:          &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PhoneNumberID returns the business phone number the client sends from.
func (c *Client) PhoneNumberID() string { return c.phoneNumberID }

// OutboundMessage is a message sent to a WhatsApp user. Set the field matching Type.
type OutboundMessage struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type,omitempty"`
	To               string `json:"to"`
	Type             string `json:"type"`

	Text        *OutboundText   `json:"text,omitempty"`
	Image       *OutboundMedia  `json:"image,omitempty"`
	Video       *OutboundMedia  `json:"video,omitempty"`
	Audio       *OutboundMedia  `json:"audio,omitempty"`
	Document    *OutboundMedia  `json:"document,omitempty"`
	Sticker     *OutboundMedia  `json:"sticker,omitempty"`
	Reaction    *Reaction       `json:"reaction,omitempty"`
	Template    *Template       `json:"template,omitempty"`
	Interactive json.RawMessage `json:"interactive,omitempty"`
	Context     *MessageContext `json:"context,omitempty"`
}

// OutboundText is the body of an outbound text message.
type OutboundText struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url,omitempty"`
}

// OutboundMedia references uploaded media by ID or public media by Link.
type OutboundMedia struct {
	ID       string `json:"id,omitempty"`
	Link     string `json:"link,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// Template is a pre-approved message template.
type Template struct {
	Name     string `json:"name"`
	Language struct {
		Code string `json:"code"`
	} `json:"language"`
	Components []json.RawMessage `json:"components,omitempty"`
}

// MessageResponse is the API answer to a sent message.
type MessageResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID            string `json:"id"`
		MessageStatus string `json:"message_status,omitempty"`
	} `json:"messages"`
}

// APIError is a Graph API error response.
type APIError struct {
	StatusCode int
	Code       int    `json:"code"`
	Type       string `json:"type"`
	Message    string `json:"message"`
	TraceID    string `json:"fbtrace_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api: %d %s (http %d, trace %s)", e.Code, e.Message, e.StatusCode, e.TraceID)
}

// CreateMessage sends msg.
func (c *Client) CreateMessage(ctx context.Context, msg OutboundMessage) (*MessageResponse, error) {
	msg.MessagingProduct = messagingProduct
	var out MessageResponse
	if err := c.post(ctx, msg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendText sends a plain text message to the user with WhatsApp id to.
func (c *Client) SendText(ctx context.Context, to, body string) (*MessageResponse, error) {
	return c.CreateMessage(ctx, OutboundMessage{
		To:   to,
		Type: "text",
		Text: &OutboundText{Body: body},
	})
}

// UpdateMessageStatus updates the status of an inbound message.
func (c *Client) UpdateMessageStatus(ctx context.Context, messageID, status string) error {
	body := map[string]string{
		"messaging_product": messagingProduct,
		"message_id":        messageID,
		"status":            status,
	}
	return c.post(ctx, body, nil)
}

// MarkAsRead marks an inbound message as read.
func (c *Client) MarkAsRead(ctx context.Context, messageID string) error {
	return c.UpdateMessageStatus(ctx, messageID, StatusRead)
}

func (c *Client) post(ctx context.Context, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := c.baseURL + "/" + c.phoneNumberID + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp api request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var envelope struct {
			Error APIError `json:"error"`
		}
		_ = json.Unmarshal(data, &envelope)
		apiErr := envelope.Error
		apiErr.StatusCode = resp.StatusCode
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return &apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
