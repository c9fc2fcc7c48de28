package server

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/mpegts-tools/tsfan"
	"github.com/mpegts-tools/tsfan/httpreq"
)

// DefaultQueueSize is the per-client outbound packet high-water mark. It
// resolves the unbounded-queue open question from the original design: a
// slow client is disconnected rather than allowed to grow its queue without
// bound, so one stalled reader never affects pacing for everyone else.
const DefaultQueueSize = 256

// Client is one HTTP-fan-out connection: it parses its own request line and
// headers, then (once ready) receives paced TS packets through QueuePacket until
// it disconnects or its queue overflows.
type Client struct {
	conn   net.Conn
	logger mpegts.Logger

	request *httpreq.Request
	queue   chan []byte

	createdAt time.Time

	mu            sync.Mutex
	bytesSent     int64
	bytesReceived int64
	closed        bool
}

// NewClient takes ownership of conn. reqOpts configures the HTTP request
// parser (Host whitelist, max buffered header bytes).
func NewClient(conn net.Conn, queueSize int, reqOpts httpreq.Options, logger mpegts.Logger) *Client {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Client{
		conn:      conn,
		logger:    logger,
		request:   httpreq.New(reqOpts),
		queue:     make(chan []byte, queueSize),
		createdAt: time.Now(),
	}
}

// RemoteAddr is the connected peer's address, for logging.
func (c *Client) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// ReceiveData reads whatever is currently available and feeds it to the
// request parser. It returns once the request is Ready(), on any parse
// error, or on a read error/EOF.
func (c *Client) ReceiveData() error {
	buf := make([]byte, 1024)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.mu.Lock()
			c.bytesReceived += int64(n)
			c.mu.Unlock()
			if ferr := c.request.Feed(buf[:n]); ferr != nil {
				return ferr
			}
			if c.request.Ready() {
				return nil
			}
		}
		if err != nil {
			return err
		}
	}
}

// Request returns the parsed HTTP request; valid only once ReceiveData has
// returned nil (i.e. the request reached StateReady).
func (c *Client) Request() *httpreq.Request { return c.request }

// QueuePacket enqueues raw (a full TS packet) for delivery. It never
// blocks: if the queue is full, it returns false and the caller should
// disconnect the client.
func (c *Client) QueuePacket(raw []byte) bool {
	select {
	case c.queue <- raw:
		return true
	default:
		return false
	}
}

// Run drains the outbound queue to the socket (the framed-writer side, C9)
// until ctx-equivalent closing or a write error. It is meant to run in its
// own goroutine, one per client.
func (c *Client) Run() error {
	w := bufio.NewWriterSize(c.conn, 64*1024)
	for raw := range c.queue {
		n, err := w.Write(raw)
		if n > 0 {
			c.mu.Lock()
			c.bytesSent += int64(n)
			c.mu.Unlock()
		}
		if err != nil {
			return err
		}
		// Flush whenever the queue is momentarily empty so clients don't
		// wait on a full 64KiB buffer during low-bitrate streams.
		if len(c.queue) == 0 {
			if err := w.Flush(); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

// Stats returns bytes sent/received so far, for disconnect logging.
func (c *Client) Stats() (sent, received int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytesSent, c.bytesReceived
}

// ConnectedDuration is how long this client has been connected.
func (c *Client) ConnectedDuration() time.Duration { return time.Since(c.createdAt) }

// Close closes the outbound queue and the underlying connection. Safe to
// call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	close(c.queue)
	return c.conn.Close()
}
