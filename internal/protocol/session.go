package protocol

import (
	"strconv"
	"strings"
)

// Snapshot keys reported by GetConfig.
const (
	KeyConnected   = "Connected"
	KeyClientName  = "ClientName"
	KeyClient      = "Client"
	KeyRefreshRate = "RefreshRate"
)

// ActiveSession describes the peer currently streaming from the server.
type ActiveSession struct {
	ClientName        string `json:"client_name"`
	ClientDescription string `json:"client_description"`
	RefreshRateHz     int    `json:"refresh_rate_hz"`
}

// PeerReport is one row of a GetRequests response.
type PeerReport struct {
	Address           string `json:"address"`
	VersionCompatible bool   `json:"version_compatible"`
	RefreshRateHz     int    `json:"refresh_rate_hz"`
	DisplayName       string `json:"display_name"`
}

// SessionFromSnapshot decides between the streaming and discovery branches.
//
// It returns a nil session when no client is connected. Missing keys, unexpected
// flag values and snapshots that describe both branches at once are violations.
func SessionFromSnapshot(snap Snapshot) (*ActiveSession, error) {
	connected, ok := snap.Get(KeyConnected)
	if !ok {
		return nil, violationf(VerbGetConfig, "", "missing %s", KeyConnected)
	}

	switch connected {
	case "0":
		for _, key := range []string{KeyClientName, KeyClient} {
			if v, present := snap.Get(key); present && strings.TrimSpace(v) != "" {
				return nil, violationf(VerbGetConfig, "", "%s=0 but %s is set", KeyConnected, key)
			}
		}
		return nil, nil
	case "1":
	default:
		return nil, violationf(VerbGetConfig, "", "%s must be 0 or 1, got %q", KeyConnected, connected)
	}

	session := &ActiveSession{}
	var present bool
	if session.ClientName, present = snap.Get(KeyClientName); !present {
		return nil, violationf(VerbGetConfig, "", "connected snapshot missing %s", KeyClientName)
	}
	if session.ClientDescription, present = snap.Get(KeyClient); !present {
		return nil, violationf(VerbGetConfig, "", "connected snapshot missing %s", KeyClient)
	}
	rate, present := snap.Get(KeyRefreshRate)
	if !present {
		return nil, violationf(VerbGetConfig, "", "connected snapshot missing %s", KeyRefreshRate)
	}
	hz, err := strconv.Atoi(strings.TrimSpace(rate))
	if err != nil {
		return nil, violationf(VerbGetConfig, "", "%s %q is not an integer", KeyRefreshRate, rate)
	}
	session.RefreshRateHz = hz
	return session, nil
}

// ParseDiscovery parses GetRequests rows of exactly four space-delimited tokens:
// `address versionOk refreshRateHz displayName`.
//
// Any malformed row fails the whole response; nothing is returned partially.
func ParseDiscovery(r Response) ([]PeerReport, error) {
	lines := r.Lines()
	reports := make([]PeerReport, 0, len(lines))
	for _, line := range lines {
		tokens := strings.Split(line, " ")
		if len(tokens) != 4 {
			return nil, violationf(VerbGetRequests, line, "expected 4 tokens, got %d", len(tokens))
		}
		for _, tok := range tokens {
			if tok == "" {
				return nil, violationf(VerbGetRequests, line, "empty token")
			}
		}

		var compatible bool
		switch tokens[1] {
		case "1":
			compatible = true
		case "0":
		default:
			return nil, violationf(VerbGetRequests, line, "version flag must be 0 or 1")
		}

		hz, err := strconv.Atoi(tokens[2])
		if err != nil {
			return nil, violationf(VerbGetRequests, line, "refresh rate %q is not an integer", tokens[2])
		}

		reports = append(reports, PeerReport{
			Address:           tokens[0],
			VersionCompatible: compatible,
			RefreshRateHz:     hz,
			DisplayName:       tokens[3],
		})
	}
	return reports, nil
}
