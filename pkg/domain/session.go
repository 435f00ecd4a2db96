package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/mitchellh/mapstructure"
)

// User is an immutable identity snapshot attached to a Session.
// Connectors replace it wholesale through Session.SetUser; it is never mutated in place.
type User struct {
	id        string
	name      string
	updatedAt time.Time
	attrs     map[string]string
}

// NewUser builds a User snapshot. attrs is copied.
func NewUser(id, name string, updatedAt time.Time, attrs map[string]string) User {
	u := User{
		id:        id,
		name:      name,
		updatedAt: updatedAt.UTC(),
	}
	if len(attrs) > 0 {
		u.attrs = maps.Clone(attrs)
	}
	return u
}

func (u User) ID() string           { return u.id }
func (u User) Name() string         { return u.name }
func (u User) UpdatedAt() time.Time { return u.updatedAt }

// Attr returns a single profile attribute.
func (u User) Attr(key string) (string, bool) {
	v, ok := u.attrs[key]
	return v, ok
}

// Attrs returns a copy of the profile attributes.
func (u User) Attrs() map[string]string {
	return maps.Clone(u.attrs)
}

// Equal reports whether two snapshots carry the same identity facts.
func (u User) Equal(other User) bool {
	return u.id == other.id &&
		u.name == other.name &&
		u.updatedAt.Equal(other.updatedAt) &&
		maps.Equal(u.attrs, other.attrs)
}

type userJSON struct {
	ID        string            `json:"id"`
	Name      string            `json:"name,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (u User) MarshalJSON() ([]byte, error) {
	return json.Marshal(userJSON{ID: u.id, Name: u.name, UpdatedAt: u.updatedAt, Attrs: u.attrs})
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *User) UnmarshalJSON(data []byte) error {
	var w userJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*u = NewUser(w.ID, w.Name, w.UpdatedAt, w.Attrs)
	return nil
}

// Session is the durable per-conversation state.
// Between load and persist it is owned by exactly one in-flight dispatch.
type Session struct {
	// ID is the session key derived by the Connector.
	ID string

	// Platform is the platform the conversation lives on.
	Platform Platform

	// State is the user-space key/value bag mutated by handler logic.
	State map[string]any

	// LastActivity is refreshed each time an event is dispatched against the session.
	LastActivity time.Time

	user *User
}

// NewSession creates an empty session. initial is deep-copied into State.
func NewSession(id string, platform Platform, initial map[string]any) *Session {
	s := &Session{
		ID:       id,
		Platform: platform,
		State:    make(map[string]any),
	}
	for k, v := range initial {
		s.State[k] = deepCopy(v)
	}
	return s
}

// User returns the identity snapshot, or nil when no connector has set one yet.
func (s *Session) User() *User {
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// SetUser replaces the identity snapshot.
func (s *Session) SetUser(u User) {
	s.user = &u
}

// Get returns a value from the state bag.
func (s *Session) Get(key string) (any, bool) {
	v, ok := s.State[key]
	return v, ok
}

// Set stores a value in the state bag.
func (s *Session) Set(key string, value any) {
	if s.State == nil {
		s.State = make(map[string]any)
	}
	s.State[key] = value
}

// Decode decodes the state bag into out (a pointer to a struct or map) using json tags.
// Weak typing is enabled because persisted numbers come back as float64.
func (s *Session) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to build state decoder: %w", err)
	}
	if err := dec.Decode(s.State); err != nil {
		return fmt.Errorf("failed to decode session state: %w", err)
	}
	return nil
}

// Touch records activity at t.
func (s *Session) Touch(t time.Time) {
	s.LastActivity = t.UTC()
}

// Clone returns a deep copy, used by stores to isolate persisted data from callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := &Session{
		ID:           s.ID,
		Platform:     s.Platform,
		LastActivity: s.LastActivity,
		State:        make(map[string]any, len(s.State)),
	}
	for k, v := range s.State {
		c.State[k] = deepCopy(v)
	}
	if s.user != nil {
		u := NewUser(s.user.id, s.user.name, s.user.updatedAt, s.user.attrs)
		c.user = &u
	}
	return c
}

type sessionJSON struct {
	ID           string         `json:"id"`
	Platform     Platform       `json:"platform"`
	User         *User          `json:"user,omitempty"`
	State        map[string]any `json:"state"`
	LastActivity time.Time      `json:"last_activity"`
}

// MarshalJSON implements json.Marshaler.
func (s *Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(sessionJSON{
		ID:           s.ID,
		Platform:     s.Platform,
		User:         s.user,
		State:        s.State,
		LastActivity: s.LastActivity,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Session) UnmarshalJSON(data []byte) error {
	var w sessionJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.ID = w.ID
	s.Platform = w.Platform
	s.user = w.User
	s.State = w.State
	if s.State == nil {
		s.State = make(map[string]any)
	}
	s.LastActivity = w.LastActivity
	return nil
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = deepCopy(vv)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = deepCopy(vv)
		}
		return s
	default:
		return v
	}
}
