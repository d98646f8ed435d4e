package protocol

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandString(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{name: "bare verb", cmd: GetStat(), want: "GetStat"},
		{name: "set config", cmd: SetConfig("controllerTriggerMode", "2"), want: "SetConfig controllerTriggerMode 2"},
		{name: "connect", cmd: Connect("10.0.0.5"), want: "Connect 10.0.0.5"},
		{name: "suspend on", cmd: Suspend(true), want: "Suspend 1"},
		{name: "suspend off", cmd: Suspend(false), want: "Suspend 0"},
		{name: "test mode", cmd: EnableTestMode(3), want: "EnableTestMode 3"},
		{name: "driver test mode", cmd: EnableDriverTestMode(0), want: "EnableDriverTestMode 0"},
		{name: "debug pos", cmd: SetDebugPos(true, 0.5, -1, 2.25), want: "SetDebugPos 1 0.5 -1 2.25"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, tc.cmd.Validate())
			require.Equal(t, tc.want, tc.cmd.String())
		})
	}
}

func TestCommandIsImmutable(t *testing.T) {
	args := []string{"key", "1"}
	cmd := NewCommand(VerbSetConfig, args...)
	args[0] = "mutated"

	got := cmd.Args()
	got[1] = "mutated"

	require.Equal(t, "SetConfig key 1", cmd.String())
}

func TestCommandValidateRejectsUnframeableTokens(t *testing.T) {
	require.ErrorIs(t, NewCommand("").Validate(), ErrInvalidCommand)
	require.ErrorIs(t, NewCommand("Get Stat").Validate(), ErrInvalidCommand)
	require.ErrorIs(t, NewCommand(VerbSetConfig, "key", "").Validate(), ErrInvalidCommand)
	require.ErrorIs(t, NewCommand(VerbSetConfig, "key", "a\nGetStat").Validate(), ErrInvalidCommand)
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand("  SetConfig   useKeyedMutex 1 ")
	require.NoError(t, err)
	require.Equal(t, VerbSetConfig, cmd.Verb())
	require.Equal(t, []string{"useKeyedMutex", "1"}, cmd.Args())

	_, err = ParseCommand("   ")
	require.ErrorIs(t, err, ErrInvalidCommand)
}

func TestParseSnapshotDropsMalformedLines(t *testing.T) {
	snap := ParseSnapshot(Response("Connected 0\nmalformed"))
	require.Equal(t, Snapshot{"Connected": "0"}, snap)
}

func TestParseSnapshotValuesKeepSpaces(t *testing.T) {
	snap := ParseSnapshot(Response("Client Oculus Quest 2\nRefreshRate 72\n"))
	require.Equal(t, "Oculus Quest 2", snap["Client"])
	require.Equal(t, "72", snap["RefreshRate"])
}

func TestSnapshotRoundTrip(t *testing.T) {
	inputs := [][]string{
		{"Connected 1", "ClientName Quest2", "Client Oculus Quest 2", "RefreshRate 72"},
		{"a b", "c d e f"},
		{"key "},
	}

	for _, lines := range inputs {
		snap := ParseSnapshot(Response(strings.Join(lines, "\n")))
		again := ParseSnapshot(Response(snap.Serialize()))
		require.Equal(t, snap, again)
		require.Len(t, again, len(lines))
	}
}

func TestParseRowsPreservesOrder(t *testing.T) {
	rows := ParseRows(Response("PacketsSent 10\nbogus\nBitrate 30 Mbps\nPacketsSent 11"))
	require.Equal(t, []StatRow{
		{Key: "PacketsSent", Value: "10"},
		{Key: "Bitrate", Value: "30 Mbps"},
		{Key: "PacketsSent", Value: "11"},
	}, rows)
}

func TestSessionFromSnapshot(t *testing.T) {
	session, err := SessionFromSnapshot(Snapshot{"Connected": "0"})
	require.NoError(t, err)
	require.Nil(t, session)

	session, err = SessionFromSnapshot(Snapshot{
		"Connected":   "1",
		"ClientName":  "Quest2",
		"Client":      "Oculus Quest 2",
		"RefreshRate": "72",
	})
	require.NoError(t, err)
	require.Equal(t, &ActiveSession{ClientName: "Quest2", ClientDescription: "Oculus Quest 2", RefreshRateHz: 72}, session)
}

func TestSessionFromSnapshotViolations(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want string
	}{
		{name: "missing connected", snap: Snapshot{}, want: "missing Connected"},
		{name: "bad flag", snap: Snapshot{"Connected": "yes"}, want: "must be 0 or 1"},
		{name: "missing client name", snap: Snapshot{"Connected": "1", "Client": "x", "RefreshRate": "60"}, want: "missing ClientName"},
		{name: "missing refresh rate", snap: Snapshot{"Connected": "1", "ClientName": "q", "Client": "x"}, want: "missing RefreshRate"},
		{name: "bad refresh rate", snap: Snapshot{"Connected": "1", "ClientName": "q", "Client": "x", "RefreshRate": "fast"}, want: "not an integer"},
		{name: "ambiguous", snap: Snapshot{"Connected": "0", "ClientName": "Quest2"}, want: "Connected=0 but ClientName is set"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := SessionFromSnapshot(tc.snap)
			require.ErrorIs(t, err, ErrViolation)
			require.Contains(t, err.Error(), tc.want)

			var v *Violation
			require.True(t, errors.As(err, &v))
			require.Equal(t, VerbGetConfig, v.Command)
		})
	}
}

func TestParseDiscovery(t *testing.T) {
	reports, err := ParseDiscovery(Response("10.0.0.5 1 72 Quest2\n\n10.0.0.6 0 60 Go\n"))
	require.NoError(t, err)
	require.Equal(t, []PeerReport{
		{Address: "10.0.0.5", VersionCompatible: true, RefreshRateHz: 72, DisplayName: "Quest2"},
		{Address: "10.0.0.6", VersionCompatible: false, RefreshRateHz: 60, DisplayName: "Go"},
	}, reports)

	reports, err = ParseDiscovery(Response(""))
	require.NoError(t, err)
	require.Empty(t, reports)
}

func TestParseDiscoveryRejectsMalformedRows(t *testing.T) {
	for _, body := range []string{
		"10.0.0.5 1 72",
		"10.0.0.5 1 72 Quest 2",
		"10.0.0.5 1 72 Quest2\n10.0.0.6 1 72",
		"10.0.0.5  1 72",
		"10.0.0.5 2 72 Quest2",
		"10.0.0.5 1 fast Quest2",
	} {
		reports, err := ParseDiscovery(Response(body))
		require.ErrorIs(t, err, ErrViolation, body)
		require.Nil(t, reports, body)
	}
}
