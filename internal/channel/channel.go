// Package channel owns the socket to the local streaming server and serializes commands over it.
package channel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rbright/streamctl/internal/logging"
	"github.com/rbright/streamctl/internal/protocol"
)

// MaxResponseBytes bounds one response body.
const MaxResponseBytes = 1 << 20

// Options configures the fixed endpoint and deadlines.
type Options struct {
	Network        string
	Address        string
	DialTimeout    time.Duration
	CommandTimeout time.Duration
	Logger         *slog.Logger
}

// Channel is a persistent, single-flight request/response session.
type Channel struct {
	opts   Options
	logger *slog.Logger

	// inflight admits exactly one dial or command at a time.
	inflight *semaphore.Weighted

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// New constructs a disconnected channel.
func New(opts Options) *Channel {
	if opts.Network == "" {
		opts.Network = "tcp"
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = time.Second
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 2 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Channel{
		opts:     opts,
		logger:   logger.With("component", "channel"),
		inflight: semaphore.NewWeighted(1),
	}
}

// Connected reports whether a socket is currently held.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// ConnectIfNeeded dials the endpoint unless a socket is already held.
func (c *Channel) ConnectIfNeeded(ctx context.Context) error {
	if err := c.inflight.Acquire(ctx, 1); err != nil {
		return classify("connect", err)
	}
	defer c.inflight.Release(1)

	if c.Connected() {
		return nil
	}

	dialer := net.Dialer{Timeout: c.opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, c.opts.Network, c.opts.Address)
	if err != nil {
		return classify("connect", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.mu.Unlock()

	c.logger.Info("control channel connected", "network", c.opts.Network, "address", c.opts.Address)
	return nil
}

// Send writes one command and blocks until its full response or a failure.
//
// A disconnected channel fails fast with ErrNotConnected; reconnecting is left to
// the periodic status refresh.
func (c *Channel) Send(ctx context.Context, cmd protocol.Command) (protocol.Response, error) {
	if err := cmd.Validate(); err != nil {
		return "", err
	}
	if err := c.inflight.Acquire(ctx, 1); err != nil {
		return "", classify(cmd.Verb(), err)
	}
	defer c.inflight.Release(1)

	c.mu.Lock()
	conn, reader := c.conn, c.reader
	c.mu.Unlock()
	if conn == nil {
		return "", &Error{Kind: KindNotConnected, Op: cmd.Verb()}
	}

	deadline := time.Now().Add(c.opts.CommandTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return "", c.fail(cmd, classify(cmd.Verb(), fmt.Errorf("set deadline: %w", err)))
	}

	if _, err := io.WriteString(conn, cmd.String()+"\n"); err != nil {
		return "", c.fail(cmd, classify(cmd.Verb(), fmt.Errorf("write command: %w", err)))
	}

	body, err := readResponse(reader)
	if err != nil {
		return "", c.fail(cmd, classify(cmd.Verb(), fmt.Errorf("read response: %w", err)))
	}

	return protocol.Response(body), nil
}

// Close drops the socket. The next status refresh may reconnect.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Channel) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

// fail closes the socket so a half-read response can never leak into the next command.
func (c *Channel) fail(cmd protocol.Command, err *Error) error {
	c.mu.Lock()
	_ = c.closeLocked()
	c.mu.Unlock()

	c.logger.Warn("control channel failure", "command", cmd.Verb(), "kind", err.Kind.String(), "error", err.Error())
	return err
}

var errResponseTooLarge = errors.New("response exceeds size limit")

// readResponse collects body lines until the terminator line.
func readResponse(reader *bufio.Reader) (string, error) {
	var (
		lines []string
		size  int
	)
	for {
		line, err := readLine(reader, MaxResponseBytes-size)
		if err != nil {
			return "", err
		}
		if line == protocol.Terminator {
			return strings.Join(lines, "\n"), nil
		}

		size += len(line) + 1
		lines = append(lines, line)
	}
}

// readLine reads one line of at most limit bytes, without its line ending.
func readLine(reader *bufio.Reader, limit int) (string, error) {
	var buf []byte
	for {
		chunk, err := reader.ReadSlice('\n')
		if len(buf)+len(chunk) > limit+2 {
			return "", errResponseTooLarge
		}
		buf = append(buf, chunk...)

		switch {
		case err == nil:
			line := strings.TrimSuffix(string(buf), "\n")
			return strings.TrimSuffix(line, "\r"), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			return "", io.ErrUnexpectedEOF
		default:
			return "", err
		}
	}
}
