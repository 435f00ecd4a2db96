package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/courier/pkg/domain"
	"github.com/aretw0/courier/pkg/session"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by InspectSession.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ListSessions prints every stored session key.
func ListSessions(ctx context.Context, mgr *session.Manager, w io.Writer) error {
	keys, err := mgr.List(ctx)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(keys) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return nil
	}
	for _, k := range keys {
		fmt.Fprintln(w, k)
	}
	return nil
}

// InspectSession prints one session in the requested format.
func InspectSession(ctx context.Context, mgr *session.Manager, key, format string, w io.Writer) error {
	s, err := mgr.Load(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("session %q not found", key)
		}
		return fmt.Errorf("loading session %q: %w", key, err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling session: %w", err)
	}

	switch format {
	case FormatJSON, "":
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatYAML:
		var generic map[string]any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return fmt.Errorf("marshalling session: %w", err)
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unsupported format %q: must be json or yaml", format)
	}
}

// RemoveSessions deletes each key, waiting for any in-flight dispatch on it.
// All keys are attempted; failures are joined.
func RemoveSessions(ctx context.Context, mgr *session.Manager, keys []string, w io.Writer) error {
	var errs []error
	for _, key := range keys {
		if err := mgr.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("removing %q: %w", key, err))
			continue
		}
		fmt.Fprintf(w, "Removed session '%s'\n", key)
	}
	return errors.Join(errs...)
}
