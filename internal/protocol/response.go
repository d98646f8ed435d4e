package protocol

import (
	"sort"
	"strings"
)

// Terminator is the line that closes every response body on the wire.
const Terminator = "END"

// Response is the raw text body returned for one command.
type Response string

// Text returns the opaque response payload.
func (r Response) Text() string { return string(r) }

// Lines splits the payload on the protocol line separator, dropping empty lines.
func (r Response) Lines() []string {
	raw := strings.Split(string(r), "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Snapshot is a key/value view of a structured response. Insertion order is not kept.
type Snapshot map[string]string

// StatRow is one ordered key/value statistics row.
type StatRow struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ParseSnapshot splits each line on its first space. Lines without a space or with an
// empty key are skipped; later duplicates win.
func ParseSnapshot(r Response) Snapshot {
	snap := make(Snapshot)
	for _, row := range ParseRows(r) {
		snap[row.Key] = row.Value
	}
	return snap
}

// ParseRows is ParseSnapshot preserving line order and duplicates.
func ParseRows(r Response) []StatRow {
	lines := r.Lines()
	rows := make([]StatRow, 0, len(lines))
	for _, line := range lines {
		key, value, ok := strings.Cut(line, " ")
		if !ok || key == "" {
			continue
		}
		rows = append(rows, StatRow{Key: key, Value: value})
	}
	return rows
}

// Get returns the value for key and whether it was present.
func (s Snapshot) Get(key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}

// Serialize renders `key value` lines joined by newlines, sorted by key.
func (s Snapshot) Serialize() string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteByte(' ')
		b.WriteString(s[k])
	}
	return b.String()
}
