package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/streamctl/internal/registry"
	"github.com/rbright/streamctl/internal/session"
)

// statusView is the decoded form of a serialized session.Result.
type statusView struct {
	session.Result
	Error string `json:"error"`
}

func encodeResult(result session.Result) (string, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode status: %w", err)
	}
	return string(data), nil
}

func (r Runner) printStatus(body string, asJSON bool) int {
	if asJSON {
		fmt.Fprintln(r.Stdout, body)
		return 0
	}

	var view statusView
	if err := json.Unmarshal([]byte(body), &view); err != nil {
		fmt.Fprintf(r.Stderr, "error: decode status: %v\n", err)
		return 1
	}
	writeStatus(r.Stdout, view)
	return 0
}

func writeStatus(w io.Writer, view statusView) {
	fmt.Fprintf(w, "status: %s\n", view.Status)
	fmt.Fprintf(w, "phase: %s\n", view.Phase)

	if s := view.Session; s != nil {
		fmt.Fprintf(w, "session: %s (%s) %d Hz\n", s.ClientName, s.ClientDescription, s.RefreshRateHz)
		for _, row := range view.Stats {
			fmt.Fprintf(w, "  %s: %s\n", row.Key, row.Value)
		}
	}

	if len(view.Peers) == 0 {
		fmt.Fprintln(w, "peers: none")
	} else {
		fmt.Fprintln(w, "peers:")
		for _, peer := range view.Peers {
			fmt.Fprintf(w, "  %s\n", describePeer(peer))
		}
	}

	if ac := view.AutoConnect; ac != nil {
		switch {
		case ac.Attempted:
			fmt.Fprintf(w, "auto-connect: requested %s\n", ac.Address)
		case ac.Rejected:
			fmt.Fprintf(w, "auto-connect: declined %s (%s)\n", ac.Address, ac.Reason)
		case ac.CooldownRemaining > 0:
			fmt.Fprintf(w, "auto-connect: cooling down (%d cycles)\n", ac.CooldownRemaining)
		}
	}

	if view.Error != "" {
		fmt.Fprintf(w, "error: %s\n", view.Error)
	}
}

func describePeer(peer registry.Peer) string {
	compat := "compatible"
	if !peer.VersionCompatible {
		compat = "wrong version"
	}
	return strings.Join([]string{peer.Address, peer.DisplayName, fmt.Sprintf("%d Hz", peer.RefreshRateHz), compat}, "  ")
}

// logCycleResult records one cycle. Quiet cycles log at debug to keep the file small.
func logCycleResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"status", result.Status,
		"phase", result.Phase,
		"peers", len(result.Peers),
		"changes", len(result.Changes),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
	}
	if result.Session != nil {
		fields = append(fields, "client", result.Session.ClientName)
	}
	if ac := result.AutoConnect; ac != nil && (ac.Attempted || ac.Rejected) {
		fields = append(fields, "auto_connect", ac.Address, "auto_connect_rejected", ac.Rejected)
	}

	switch {
	case result.Halted():
		logger.Error("cycle halted", append(fields, "error", errorText(result.Err))...)
	case result.Err != nil:
		logger.Warn("cycle degraded", append(fields, "error", result.Err.Error())...)
	case len(result.Changes) > 0 || result.AutoConnect != nil && result.AutoConnect.Attempted:
		logger.Info("cycle complete", fields...)
	default:
		logger.Debug("cycle complete", fields...)
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
