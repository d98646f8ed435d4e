package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"time"
)

// maxResponseBytes bounds a response line; status bodies carry the full peer list.
const maxResponseBytes = 4 << 20

// Send performs one request/response exchange with the watcher listening on path.
// timeout bounds dial, write and read together. An earlier ctx deadline wins, and
// cancelling ctx aborts the exchange.
func Send(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return Response{}, fmt.Errorf("set deadline: %w", err)
		}
		if remaining := time.Until(deadline).Milliseconds(); req.TimeoutMS <= 0 && remaining > 0 {
			req.TimeoutMS = remaining
		}
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return Response{}, fmt.Errorf("write request: %w", err)
	}
	return readResponse(conn)
}

func readResponse(r io.Reader) (Response, error) {
	line, err := bufio.NewReader(io.LimitReader(r, maxResponseBytes)).ReadBytes('\n')
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Probe reports whether a watcher answers status on path. A missing socket or
// one nobody listens on is not an error.
func Probe(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	_, err := Send(ctx, path, Request{Command: CommandStatus}, timeout)
	switch {
	case err == nil:
		return true, nil
	case noListener(err):
		return false, nil
	default:
		return false, fmt.Errorf("probe socket: %w", err)
	}
}

func noListener(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED)
}
