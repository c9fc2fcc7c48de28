// Command tsdump decodes an MPEG-TS file to a human-readable or JSON
// summary, one line per packet.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/asticode/go-astikit"
	"github.com/pkg/profile"

	"github.com/mpegts-tools/tsfan"
	"github.com/mpegts-tools/tsfan/internal/journallog"
)

var (
	ctx, cancel = context.WithCancel(context.Background())

	cpuProfiling    = flag.Bool("cp", false, "enables CPU profiling")
	memoryProfiling = flag.Bool("mp", false, "enables memory profiling")
	format          = flag.String("f", "text", "output format: text or json")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: tsdump <input file> [options]")
		flag.PrintDefaults()
	}
	inputPath := astikit.FlagCmd()
	flag.Parse()
	handleSignals()

	if *cpuProfiling {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	} else if *memoryProfiling {
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	}

	jlog := journallog.New(log.Default())

	if inputPath == "" {
		fmt.Fprintln(os.Stderr, "tsdump: missing input file")
		os.Exit(journallog.ExitInvalidArgs)
	}

	f, err := os.Open(inputPath)
	if err != nil {
		jlog.Errorf("tsdump: opening %s: %v", inputPath, err)
		os.Exit(journallog.ExitInvalidArgs)
	}
	defer f.Close()

	fr := mpegts.NewFramedReader(f, mpegts.FramedReaderOptions{Logger: jlog})
	pr := mpegts.NewPacketReader(fr)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := pr.Read()
		if err != nil {
			if err == io.EOF {
				return
			}
			jlog.Errorf("tsdump: reading packet: %v", err)
			os.Exit(journallog.ExitRuntimeError)
		}

		switch *format {
		case "json":
			printJSON(jlog, res)
		default:
			printText(res)
		}
	}
}

func printText(res *mpegts.ReadResult) {
	h := res.Packet.Header
	line := fmt.Sprintf("pkt=%d pid=0x%04x cc=%d seg=%d", res.PacketIndex, h.PID, h.ContinuityCounter, res.Segment)
	if res.Discontinuity {
		line += " DISCONTINUITY"
	}
	if af := res.Packet.AdaptationField; af != nil && af.HasPCR && af.PCR != nil {
		line += fmt.Sprintf(" pcr=%.6fs", af.PCR.Seconds())
	}
	fmt.Println(line)
}

type jsonPacket struct {
	PacketIndex   int64   `json:"packetIndex"`
	PID           uint16  `json:"pid"`
	ContinuityCtr uint8   `json:"continuityCounter"`
	Segment       int     `json:"segment"`
	Discontinuity bool    `json:"discontinuity"`
	PCRSeconds    float64 `json:"pcrSeconds,omitempty"`
}

func printJSON(jlog *journallog.Logger, res *mpegts.ReadResult) {
	jp := jsonPacket{
		PacketIndex:   res.PacketIndex,
		PID:           res.Packet.Header.PID,
		ContinuityCtr: res.Packet.Header.ContinuityCounter,
		Segment:       res.Segment,
		Discontinuity: res.Discontinuity,
	}
	if af := res.Packet.AdaptationField; af != nil && af.HasPCR && af.PCR != nil {
		jp.PCRSeconds = af.PCR.Seconds()
	}
	b, err := json.Marshal(jp)
	if err != nil {
		jlog.Errorf("tsdump: marshaling packet: %v", err)
		os.Exit(journallog.ExitRuntimeError)
	}
	fmt.Println(string(b))
}

func handleSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGABRT, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
}
