package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSendRoundTrip(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "streamctl.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, req Request) Response {
			require.Equal(t, CommandStatus, req.Command)
			return Response{OK: true, State: "discovering", Message: "ok"}
		}))
	}()

	resp, err := Send(context.Background(), socketPath, Request{Command: CommandStatus}, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Equal(t, "discovering", resp.State)
	require.Equal(t, "ok", resp.Message)

	cancel()
	require.NoError(t, <-serveDone)
}

func TestSendDecodeResponseError(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "streamctl.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		_, _ = reader.ReadBytes('\n')
		_, _ = conn.Write([]byte("not-json\n"))
	}()

	_, err = Send(context.Background(), socketPath, Request{Command: CommandStatus}, 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestSendReadResponseError(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "streamctl.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		_ = conn.Close()
	}()

	_, err = Send(context.Background(), socketPath, Request{Command: CommandStatus}, 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "read response")
}

func TestServeDecodeRequestErrorResponse(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "streamctl.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, _ Request) Response {
			return Response{OK: true}
		}))
	}()

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not-json\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "decode request")

	cancel()
	require.NoError(t, <-serveDone)
}

func TestProbe(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "streamctl.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, req Request) Response {
			if req.Command == CommandStatus {
				return Response{OK: true, State: "down"}
			}
			return Response{OK: false, Error: "bad"}
		}))
	}()

	alive, probeErr := Probe(context.Background(), socketPath, 200*time.Millisecond)
	require.NoError(t, probeErr)
	require.True(t, alive)

	cancel()
	require.NoError(t, <-serveDone)

	alive, probeErr = Probe(context.Background(), socketPath, 100*time.Millisecond)
	require.NoError(t, probeErr)
	require.False(t, alive)
}

func TestSendCarriesArgsAndBody(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "streamctl.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, req Request) Response {
			if req.Command != CommandSend {
				return Response{OK: false, Error: "unexpected command"}
			}
			return Response{OK: true, Body: strings.Join(req.Args, "|")}
		}))
	}()

	resp, err := Send(context.Background(), socketPath, Request{
		Command: CommandSend,
		Args:    []string{"SetConfig", "bitrate", "30"},
	}, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Equal(t, "SetConfig|bitrate|30", resp.Body)

	cancel()
	require.NoError(t, <-serveDone)
}

func TestServeRejectsRequestWithoutCommand(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), SocketName)

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveDone := make(chan error, 1)
	called := make(chan struct{}, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(context.Context, Request) Response {
			called <- struct{}{}
			return Response{OK: true}
		}))
	}()

	resp, err := Send(context.Background(), socketPath, Request{Args: []string{"GetStat"}}, 200*time.Millisecond)
	require.NoError(t, err)
	require.False(t, resp.OK)
	require.Equal(t, "request has no command", resp.Error)
	require.Empty(t, called)

	cancel()
	require.NoError(t, <-serveDone)
}

func TestSendHonoursContextCancellation(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), SocketName)

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		defer conn.Close()
		time.Sleep(time.Second)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err = Send(ctx, socketPath, Request{Command: CommandStatus}, 5*time.Second)
	require.Error(t, err)
	require.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestServeBoundsHandlerByClientTimeout(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), SocketName)

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handlerDone := make(chan time.Duration, 1)
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(reqCtx context.Context, req Request) Response {
			start := time.Now()
			<-reqCtx.Done()
			handlerDone <- time.Since(start)
			return Response{OK: false, Error: reqCtx.Err().Error()}
		}))
	}()

	_, err = Send(context.Background(), socketPath, Request{Command: CommandSend, Args: []string{"GetStat"}}, 150*time.Millisecond)
	require.Error(t, err)

	select {
	case waited := <-handlerDone:
		require.Less(t, waited, time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("handler outlived the client timeout")
	}

	cancel()
	require.NoError(t, <-serveDone)
}
