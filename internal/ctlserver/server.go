// Package ctlserver serves the line-oriented control protocol. It stands in for the
// streaming server in integration tests and local rehearsals.
package ctlserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/rbright/streamctl/internal/protocol"
)

// Handler answers one command with a response body.
type Handler interface {
	Handle(context.Context, protocol.Command) string
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, protocol.Command) string

func (f HandlerFunc) Handle(ctx context.Context, cmd protocol.Command) string {
	return f(ctx, cmd)
}

// Serve accepts clients until context cancellation or listener close. Each client
// keeps its connection open and may issue any number of commands in sequence.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	var wg sync.WaitGroup

	var (
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
			return fmt.Errorf("accept control connection: %w", err)
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
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		body := ""
		cmd, parseErr := protocol.ParseCommand(line)
		if parseErr != nil {
			body = fmt.Sprintf("error %v", parseErr)
		} else {
			body = handler.Handle(ctx, cmd)
		}

		if err := WriteResponse(conn, body); err != nil {
			return
		}
	}
}

// WriteResponse frames one response body followed by the terminator line.
func WriteResponse(w io.Writer, body string) error {
	body = strings.TrimSuffix(body, "\n")
	if body == "" {
		_, err := io.WriteString(w, protocol.Terminator+"\n")
		return err
	}
	_, err := io.WriteString(w, body+"\n"+protocol.Terminator+"\n")
	return err
}
