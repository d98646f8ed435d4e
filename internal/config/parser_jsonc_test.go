package config

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeJSONCRemovesCommentsAndTrailingCommas(t *testing.T) {
	input := `
{
  // line comment
  "items": [
    "one", /* block comment */
    "two",
  ],
  "nested": {
    "enabled": true,
  },
}
`

	normalized, err := normalizeJSONC(input)
	require.NoError(t, err)
	require.NotContains(t, normalized, "//")
	require.NotContains(t, normalized, "/*")
	require.NotContains(t, normalized, ",]")
	require.NotContains(t, normalized, ",}")
}

func TestNormalizeJSONCRetainsCommentLikeTextInsideStrings(t *testing.T) {
	input := `{"value":"contains // and /* comment-like */ text",}`
	normalized, err := normalizeJSONC(input)
	require.NoError(t, err)
	require.Contains(t, normalized, "// and /* comment-like */")
}

func TestNormalizeJSONCUnterminatedBlockCommentFails(t *testing.T) {
	_, err := normalizeJSONC("{ /* unterminated ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unterminated block comment")
}

func TestEnsureSingleJSONValueRejectsExtraPayload(t *testing.T) {
	decoder := json.NewDecoder(strings.NewReader(`{"one":1}{"two":2}`))
	var payload map[string]any
	require.NoError(t, decoder.Decode(&payload))

	err := ensureSingleJSONValue(decoder)
	require.Error(t, err)
	require.Contains(t, err.Error(), "multiple JSON values")
}

func TestOffsetToLineCol(t *testing.T) {
	content := "line1\nline2\nline3"
	line, col := offsetToLineCol(content, 1)
	require.Equal(t, 1, line)
	require.Equal(t, 1, col)

	line, col = offsetToLineCol(content, 8) // line2, col2
	require.Equal(t, 2, line)
	require.Equal(t, 2, col)

	line, col = offsetToLineCol(content, 999)
	require.Equal(t, 3, line)
	require.Equal(t, 5, col)
}

func TestParseJSONCOverridesDefaults(t *testing.T) {
	cfg, warnings, err := parseJSONC(`{
  // local server on a unix socket
  "control": {
    "network": "unix",
    "address": " /run/streamer/control.sock ",
    "liveness_command": "GetConfig",
  },
  "poll": {"auto_connect": true, "cooldown_cycles": 3},
  "feed": {"listen": "127.0.0.1:9950"},
  "log": {"level": " DEBUG "},
}`, Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, "unix", cfg.Control.Network)
	require.Equal(t, "/run/streamer/control.sock", cfg.Control.Address)
	require.Equal(t, "GetConfig", cfg.Control.Liveness().String())
	require.True(t, cfg.Poll.AutoConnect)
	require.Equal(t, 3, cfg.Poll.CooldownCycles)
	require.Equal(t, 1000, cfg.Poll.IntervalMS)
	require.Equal(t, "127.0.0.1:9950", cfg.Feed.Listen)
	require.Empty(t, cfg.Health.Listen)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestParseJSONCRejectsUnknownField(t *testing.T) {
	_, _, err := parseJSONC(`{"control":{"port":9944}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown field")
}

func TestParseJSONCRejectsMultipleTopLevelValues(t *testing.T) {
	_, _, err := parseJSONC(`{"poll":{"auto_connect":false}}{"poll":{"auto_connect":true}}`, Default())
	require.Error(t, err)
	require.True(
		t,
		strings.Contains(err.Error(), "multiple JSON values") || strings.Contains(err.Error(), "unknown field"),
		"unexpected error: %v",
		err,
	)
}

func TestParseJSONCTypeErrorIncludesLocation(t *testing.T) {
	_, _, err := parseJSONC(`{
  "control": {"address": 9944}
}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line")
	require.Contains(t, err.Error(), "column")
}

func TestParseEmptyContentReturnsBase(t *testing.T) {
	cfg, _, err := Parse("   \n", Default())
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestParseRejectsNonObject(t *testing.T) {
	_, _, err := Parse("control.address = 1.2.3.4", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "JSONC object")
}

func TestNormalizeJSONCPreservesOffsets(t *testing.T) {
	input := "{\n  /* note\n  spans */ \"poll\": {\"interval_ms\": 250,},\n}"
	normalized, err := normalizeJSONC(input)
	require.NoError(t, err)
	require.Len(t, normalized, len(input))
	require.Equal(t, strings.Count(input, "\n"), strings.Count(normalized, "\n"))

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(normalized), &payload))
}

func TestParseJSONCErrorLocationSurvivesComments(t *testing.T) {
	content := "{\n  // comment line\n  \"poll\": {\"interval_ms\": \"fast\"}\n}"
	_, _, err := Parse(content, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 3")
}
