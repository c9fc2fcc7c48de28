// Package server implements the PCR-paced stream server: it reads an MPEG-TS
// input at its encoded pace and fans each packet out to connected HTTP
// clients, reopening the input on EOF and rebasing its clock across
// discontinuities.
package server

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/asticode/go-astikit"

	"github.com/mpegts-tools/tsfan"
)

// Options configures a Server. Zero values pick the defaults named in
// SPEC_FULL.md's Open Question resolutions.
type Options struct {
	Logger astikit.StdLogger

	// ClientQueueSize is each client's outbound packet high-water mark.
	ClientQueueSize int
	// ResyncErrorThreshold/ResyncPassCap tune the framed reader's resync.
	ResyncErrorThreshold int
	ResyncPassCap        int
	// InputReopenDelay is how long to wait before reopening the input
	// after it reaches EOF. Zero uses 2 seconds.
	InputReopenDelay time.Duration
}

// OpenInputFunc opens (or reopens) the server's input stream.
type OpenInputFunc func(ctx context.Context) (io.ReadCloser, error)

// Server paces a single input across any number of connected clients.
type Server struct {
	opts   Options
	logger mpegts.Logger

	mu      sync.Mutex
	clients map[*Client]struct{}

	openRealTime   time.Time
	lastPacketTime float64
	lastRealTime   time.Duration
}

// New builds a Server. Call Run to start pacing an input.
func New(opts Options) *Server {
	if opts.ClientQueueSize == 0 {
		opts.ClientQueueSize = DefaultQueueSize
	}
	if opts.InputReopenDelay == 0 {
		opts.InputReopenDelay = 2 * time.Second
	}
	return &Server{
		opts:    opts,
		logger:  mpegts.AdaptLogger(opts.Logger),
		clients: map[*Client]struct{}{},
	}
}

// AddClient registers c for fan-out. The caller is responsible for running
// c.ReceiveData and c.Run in their own goroutines and for calling
// RemoveClient (and c.Close) on disconnect.
func (s *Server) AddClient(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
}

// RemoveClient unregisters c.
func (s *Server) RemoveClient(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
}

// ClientCount returns the number of currently registered clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Run opens the input, paces packets to registered clients at PCR rate, and
// reopens the input whenever it reaches EOF, until ctx is canceled.
func (s *Server) Run(ctx context.Context, openInput OpenInputFunc) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := s.runOnce(ctx, openInput); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Errorf("mpegts/server: input error, reopening in %s: %v", s.opts.InputReopenDelay, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.opts.InputReopenDelay):
		}
	}
}

func (s *Server) runOnce(ctx context.Context, openInput OpenInputFunc) error {
	rc, err := openInput(ctx)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer rc.Close()

	s.openRealTime = time.Now()
	s.lastPacketTime = 0
	s.lastRealTime = 0

	fr := mpegts.NewFramedReader(rc, mpegts.FramedReaderOptions{
		ResyncErrorThreshold: s.opts.ResyncErrorThreshold,
		ResyncPassCap:        s.opts.ResyncPassCap,
		Logger:               s.opts.Logger,
	})
	pr := mpegts.NewPacketReader(fr)

	for {
		if ctx.Err() != nil {
			return nil
		}

		res, err := pr.Read()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		s.pace(res)
		s.fanOut(res.Packet.Bytes)
	}
}

// pace implements the PCR pacing algorithm against the server's own
// lastPacketTime/lastRealTime, kept independently of PacketReader's
// discontinuity tracking (that one gates segment numbering on having already
// seen a PCR; this one starts from the zero value every time the input is
// (re)opened, so the first PCR of a run that lies more than 1s into the
// stream clock takes the rebase branch below). On a backward jump or a gap of more than ~1s, rebase the
// clock (no sleep); otherwise sleep the difference between stream time
// elapsed and wall time elapsed since the last packet.
func (s *Server) pace(res *mpegts.ReadResult) {
	af := res.Packet.AdaptationField
	if af == nil || !af.HasPCR || af.PCR == nil {
		return
	}
	pcr := af.PCR.Seconds()
	now := time.Since(s.openRealTime)

	if s.lastPacketTime+1 < pcr || pcr < s.lastPacketTime {
		s.logger.Infof("mpegts/server: PCR discontinuity, rebasing clock (segment %d)", res.Segment)
		s.openRealTime = time.Now().Add(-time.Duration(pcr * float64(time.Second)))
		s.lastPacketTime = pcr
		s.lastRealTime = time.Since(s.openRealTime)
		return
	}

	dt := (pcr - s.lastPacketTime) - (now.Seconds() - s.lastRealTime.Seconds())
	if dt > 0 && pcr >= now.Seconds() {
		time.Sleep(time.Duration(dt * float64(time.Second)))
	}

	s.lastPacketTime = pcr
	s.lastRealTime = time.Since(s.openRealTime)
}

// fanOut delivers raw sequentially to every registered client, dropping (and
// logging) any client whose queue is full rather than blocking the shared clock.
func (s *Server) fanOut(raw []byte) {
	s.mu.Lock()
	toDrop := make([]*Client, 0)
	for c := range s.clients {
		if !c.QueuePacket(raw) {
			toDrop = append(toDrop, c)
		}
	}
	for _, c := range toDrop {
		delete(s.clients, c)
	}
	s.mu.Unlock()

	for _, c := range toDrop {
		sent, received := c.Stats()
		s.logger.Warnf(
			"mpegts/server: dropping client %s, queue full after %s connected (%d B sent, %d B received)",
			c.RemoteAddr(), c.ConnectedDuration(), sent, received,
		)
		c.Close()
	}
}
