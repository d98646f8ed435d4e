package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/streamctl/internal/channel"
	"github.com/rbright/streamctl/internal/protocol"
)

type fakeChannel struct {
	connectErr error
	sendErr    error
	sent       []string
	connects   int
}

func (f *fakeChannel) ConnectIfNeeded(context.Context) error {
	f.connects++
	return f.connectErr
}

func (f *fakeChannel) Send(_ context.Context, cmd protocol.Command) (protocol.Response, error) {
	f.sent = append(f.sent, cmd.String())
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "Bitrate 30", nil
}

func TestRefreshConnected(t *testing.T) {
	ch := &fakeChannel{}
	m := New(ch, protocol.Command{}, nil)
	require.Equal(t, StatusDown, m.Status())

	require.Equal(t, StatusConnected, m.Refresh(context.Background()))
	require.Equal(t, StatusConnected, m.Status())
	require.NoError(t, m.LastError())
	require.Equal(t, []string{"GetStat"}, ch.sent)
	require.Equal(t, 1, ch.connects)
}

func TestRefreshFlipsToDownOnIOFailure(t *testing.T) {
	ch := &fakeChannel{}
	m := New(ch, protocol.GetStat(), nil)
	require.Equal(t, StatusConnected, m.Refresh(context.Background()))

	ch.sendErr = &channel.Error{Kind: channel.KindIO, Op: "GetStat", Err: errors.New("connection reset")}
	require.Equal(t, StatusDown, m.Refresh(context.Background()))
	require.ErrorIs(t, m.LastError(), channel.ErrIO)
}

func TestRefreshDownWhenConnectFails(t *testing.T) {
	ch := &fakeChannel{connectErr: &channel.Error{Kind: channel.KindIO, Op: "connect"}}
	m := New(ch, protocol.GetStat(), nil)

	require.Equal(t, StatusDown, m.Refresh(context.Background()))
	require.Empty(t, ch.sent)
}

func TestRefreshUsesConfiguredLivenessCommand(t *testing.T) {
	ch := &fakeChannel{}
	m := New(ch, protocol.GetConfig(), nil)

	m.Refresh(context.Background())
	m.Refresh(context.Background())
	require.Equal(t, []string{"GetConfig", "GetConfig"}, ch.sent)
	require.Equal(t, 2, ch.connects)
}
