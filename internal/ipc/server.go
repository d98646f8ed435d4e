// Package ipc carries CLI requests to a running watcher over a unix socket.
// Each connection holds exactly one newline-terminated JSON request and response.
package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

const (
	maxRequestBytes    = 64 << 10
	requestReadTimeout = 2 * time.Second
)

// Handler processes one IPC command request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Serve answers clients until ctx is cancelled or the listener closes. Clients
// still connected at shutdown are disconnected before Serve returns.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	var (
		wg      sync.WaitGroup
		connsMu sync.Mutex
		conns   = make(map[net.Conn]struct{})
	)

	go func() {
		<-ctx.Done()
		_ = listener.Close()
		connsMu.Lock()
		for c := range conns {
			_ = c.Close()
		}
		connsMu.Unlock()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		connsMu.Lock()
		conns[conn] = struct{}{}
		connsMu.Unlock()

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer func() {
				connsMu.Lock()
				delete(conns, c)
				connsMu.Unlock()
				_ = c.Close()
			}()
			serveConn(ctx, c, handler)
		}(conn)
	}
}

func serveConn(ctx context.Context, conn net.Conn, handler Handler) {
	_ = conn.SetReadDeadline(time.Now().Add(requestReadTimeout))
	req, err := readRequest(conn)
	if err != nil {
		writeResponse(conn, Response{OK: false, Error: err.Error()})
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	if req.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMS)*time.Millisecond)
		defer cancel()
	}
	writeResponse(conn, handler.Handle(ctx, req))
}

func readRequest(r io.Reader) (Request, error) {
	line, err := bufio.NewReader(io.LimitReader(r, maxRequestBytes)).ReadBytes('\n')
	if err != nil {
		return Request{}, fmt.Errorf("read request: %w", err)
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	if strings.TrimSpace(req.Command) == "" {
		return Request{}, errors.New("request has no command")
	}
	return req, nil
}

func writeResponse(w io.Writer, resp Response) {
	_ = json.NewEncoder(w).Encode(resp)
}
