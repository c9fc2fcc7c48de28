// Command tsstream serves an MPEG-TS file to any number of HTTP clients at
// its encoded playback pace.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/asticode/go-astikit"
	"github.com/pkg/profile"

	"github.com/mpegts-tools/tsfan"
	"github.com/mpegts-tools/tsfan/httpreq"
	"github.com/mpegts-tools/tsfan/humanreadable"
	"github.com/mpegts-tools/tsfan/internal/journallog"
	"github.com/mpegts-tools/tsfan/server"
)

var (
	ctx, cancel = context.WithCancel(context.Background())

	cpuProfiling    = flag.Bool("cp", false, "enables CPU profiling")
	memoryProfiling = flag.Bool("mp", false, "enables memory profiling")
	listenAddr      = flag.String("l", ":8080", "address to listen on")
	allowedHosts    = astikit.NewFlagStrings()
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: tsstream <input file> [options]")
		flag.PrintDefaults()
	}
	flag.Var(allowedHosts, "host", "allowed Host header value (repeatable); default allows any")
	inputPath := astikit.FlagCmd()
	flag.Parse()
	handleSignals()

	if *cpuProfiling {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	} else if *memoryProfiling {
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	}

	if inputPath == "" {
		fmt.Fprintln(os.Stderr, "tsstream: missing input file")
		os.Exit(journallog.ExitInvalidArgs)
	}

	jlog := journallog.New(log.Default())
	logger := mpegts.AdaptLogger(jlog)
	srv := server.New(server.Options{Logger: jlog})

	ln, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		jlog.Errorf("tsstream: listening on %s: %v", *listenAddr, err)
		os.Exit(journallog.ExitRuntimeError)
	}
	defer ln.Close()
	go acceptLoop(ln, srv, logger)

	if err := srv.Run(ctx, func(ctx context.Context) (io.ReadCloser, error) {
		return os.Open(inputPath)
	}); err != nil && ctx.Err() == nil {
		jlog.Errorf("tsstream: %v", err)
		os.Exit(journallog.ExitRuntimeError)
	}
}

func acceptLoop(ln net.Listener, srv *server.Server, logger mpegts.Logger) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("tsstream: accept: %v", err)
			continue
		}
		go handleClient(conn, srv, logger)
	}
}

func handleClient(conn net.Conn, srv *server.Server, logger mpegts.Logger) {
	reqOpts := httpreq.Options{AllowedHosts: allowedHosts.Results}
	c := server.NewClient(conn, server.DefaultQueueSize, reqOpts, logger)

	if err := c.ReceiveData(); err != nil {
		logger.Warnf("tsstream: client %s request error: %v", conn.RemoteAddr(), err)
		c.Close()
		return
	}

	req := c.Request()
	if req.Path == "" {
		c.Close()
		return
	}

	logger.Infof("tsstream: client %s connected, requested %s %s", conn.RemoteAddr(), req.Method, req.Path)
	srv.AddClient(c)

	err := c.Run()
	srv.RemoveClient(c)
	sent, received := c.Stats()
	logger.Infof(
		"tsstream: client %s disconnected after %s, sent %s, received %s: %v",
		conn.RemoteAddr(), humanreadable.Duration(c.ConnectedDuration()), humanreadable.ByteCount(sent), humanreadable.ByteCount(received), err,
	)
	c.Close()
}

func handleSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGABRT, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
}
