package domain

import (
	"net/http"
	"net/url"
)

// Request is the transport-neutral view of one inbound delivery.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Response is the HTTP-shaped answer to a delivery.
// A Body that is not a string or []byte is encoded as JSON by the transport.
type Response struct {
	Status int
	Header http.Header
	Body   any
}

// NewResponse creates a Response with the given status and body.
func NewResponse(status int, body any) *Response {
	return &Response{
		Status: status,
		Header: make(http.Header),
		Body:   body,
	}
}

// OK returns an empty 200 response.
func OK() *Response {
	return NewResponse(http.StatusOK, nil)
}
