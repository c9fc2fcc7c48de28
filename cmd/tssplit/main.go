// Command tssplit carves an MPEG-TS file into output files selected by byte
// offset, packet count, or discontinuity segment, plus dynamically
// instantiated per-segment outputs driven by a filename template.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/asticode/go-astikit"
	"github.com/pkg/profile"

	"github.com/mpegts-tools/tsfan"
	"github.com/mpegts-tools/tsfan/internal/journallog"
	"github.com/mpegts-tools/tsfan/numrange"
	"github.com/mpegts-tools/tsfan/splitter"
)

// outputFlags and templateFlags collect repeatable -out/-template flags,
// parsed once flag.Parse has run.
type outputFlags struct{ values []string }

func (f *outputFlags) String() string     { return strings.Join(f.values, ",") }
func (f *outputFlags) Set(s string) error { f.values = append(f.values, s); return nil }

var (
	cpuProfiling    = flag.Bool("cp", false, "enables CPU profiling")
	memoryProfiling = flag.Bool("mp", false, "enables memory profiling")
	discard         = flag.Bool("discard", false, "write outputs to discard instead of disk (profiling/debug only)")
	outFlags        = &outputFlags{}
	templateFlags   = &outputFlags{}
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: tssplit <input file> [options]")
		fmt.Fprintln(os.Stderr, "  -out  start=<offset|packet|segment>:<N>,length=<bytes|packets|segments>:<N>,file=<path>")
		fmt.Fprintln(os.Stderr, "  -template file=<fmt-string-with-%d>[,segments=<numrange>]")
		flag.PrintDefaults()
	}
	flag.Var(outFlags, "out", "static output request (repeatable)")
	flag.Var(templateFlags, "template", "dynamic per-segment output template (repeatable)")
	inputPath := astikit.FlagCmd()
	flag.Parse()

	if *cpuProfiling {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	} else if *memoryProfiling {
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	}

	if inputPath == "" {
		fmt.Fprintln(os.Stderr, "tssplit: missing input file")
		os.Exit(journallog.ExitInvalidArgs)
	}
	if len(outFlags.values) == 0 && len(templateFlags.values) == 0 {
		fmt.Fprintln(os.Stderr, "tssplit: at least one -out or -template is required")
		os.Exit(journallog.ExitInvalidArgs)
	}

	jlog := journallog.New(log.Default())

	reqs, err := parseOutputRequests(outFlags.values)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tssplit: %v\n", err)
		os.Exit(journallog.ExitInvalidArgs)
	}
	tmpls, err := parseOutputTemplates(templateFlags.values)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tssplit: %v\n", err)
		os.Exit(journallog.ExitInvalidArgs)
	}

	f, err := os.Open(inputPath)
	if err != nil {
		jlog.Errorf("tssplit: opening %s: %v", inputPath, err)
		os.Exit(journallog.ExitInvalidArgs)
	}
	defer f.Close()

	s := splitter.New(splitter.Options{Logger: jlog, Discard: *discard})
	if err := s.SetOutputRequests(reqs); err != nil {
		fmt.Fprintf(os.Stderr, "tssplit: %v\n", err)
		os.Exit(journallog.ExitInvalidArgs)
	}
	if err := s.SetOutputTemplates(tmpls); err != nil {
		fmt.Fprintf(os.Stderr, "tssplit: %v\n", err)
		os.Exit(journallog.ExitInvalidArgs)
	}

	fr := mpegts.NewFramedReader(f, mpegts.FramedReaderOptions{Logger: jlog})
	pr := mpegts.NewPacketReader(fr)

	for {
		res, err := pr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			jlog.Errorf("tssplit: reading packet: %v", err)
			os.Exit(journallog.ExitRuntimeError)
		}
		if err := s.HandlePacket(res); err != nil {
			jlog.Errorf("tssplit: %v", err)
			os.Exit(journallog.ExitRuntimeError)
		}
	}

	if err := s.Close(); err != nil {
		jlog.Errorf("tssplit: %v", err)
		os.Exit(journallog.ExitRuntimeError)
	}
}

// parseOutputRequests parses each "key=value,..." spec into an
// splitter.OutputRequest. Recognized keys: start, length, file.
func parseOutputRequests(specs []string) ([]splitter.OutputRequest, error) {
	var out []splitter.OutputRequest
	for _, spec := range specs {
		fields, err := splitFields(spec)
		if err != nil {
			return nil, fmt.Errorf("-out %q: %w", spec, err)
		}

		var req splitter.OutputRequest
		for k, v := range fields {
			switch k {
			case "start":
				start, err := parseStart(v)
				if err != nil {
					return nil, fmt.Errorf("-out %q: %w", spec, err)
				}
				req.Start = start
			case "length":
				length, err := parseLength(v)
				if err != nil {
					return nil, fmt.Errorf("-out %q: %w", spec, err)
				}
				req.Length = length
			case "file":
				req.Filename = v
			default:
				return nil, fmt.Errorf("-out %q: unrecognized field %q", spec, k)
			}
		}
		if req.Filename == "" {
			return nil, fmt.Errorf("-out %q: missing file=", spec)
		}
		out = append(out, req)
	}
	return out, nil
}

func parseOutputTemplates(specs []string) ([]splitter.OutputTemplate, error) {
	var out []splitter.OutputTemplate
	for _, spec := range specs {
		fields, err := splitFields(spec)
		if err != nil {
			return nil, fmt.Errorf("-template %q: %w", spec, err)
		}

		var tmpl splitter.OutputTemplate
		for k, v := range fields {
			switch k {
			case "file":
				tmpl.Format = v
			case "segments":
				filter, err := numrange.Parse(v)
				if err != nil {
					return nil, fmt.Errorf("-template %q: %w", spec, err)
				}
				tmpl.SegmentFilter = filter
			default:
				return nil, fmt.Errorf("-template %q: unrecognized field %q", spec, k)
			}
		}
		out = append(out, tmpl)
	}
	return out, nil
}

// splitFields splits a comma-separated "key=value" spec into a map. Values
// may themselves contain ':' (start/length kind:value pairs) but not ','.
func splitFields(spec string) (map[string]string, error) {
	fields := map[string]string{}
	for _, part := range strings.Split(spec, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("malformed field %q, want key=value", part)
		}
		fields[kv[0]] = kv[1]
	}
	return fields, nil
}

func parseStart(v string) (splitter.Start, error) {
	kind, value, err := splitKindValue(v)
	if err != nil {
		return splitter.Start{}, err
	}
	switch kind {
	case "offset":
		return splitter.Start{Kind: splitter.StartOffset, Value: value}, nil
	case "packet":
		return splitter.Start{Kind: splitter.StartPacket, Value: value}, nil
	case "segment":
		return splitter.Start{Kind: splitter.StartSegment, Value: value}, nil
	default:
		return splitter.Start{}, fmt.Errorf("unrecognized start kind %q", kind)
	}
}

func parseLength(v string) (splitter.Length, error) {
	kind, value, err := splitKindValue(v)
	if err != nil {
		return splitter.Length{}, err
	}
	switch kind {
	case "bytes":
		return splitter.Length{Kind: splitter.LengthBytes, Value: value}, nil
	case "packets":
		return splitter.Length{Kind: splitter.LengthPackets, Value: value}, nil
	case "segments":
		return splitter.Length{Kind: splitter.LengthSegments, Value: value}, nil
	default:
		return splitter.Length{}, fmt.Errorf("unrecognized length kind %q", kind)
	}
}

func splitKindValue(v string) (string, int64, error) {
	colon := strings.IndexByte(v, ':')
	if colon < 0 {
		return "", 0, fmt.Errorf("expected kind:value, got %q", v)
	}
	n, err := strconv.ParseInt(v[colon+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid value in %q: %w", v, err)
	}
	return v[:colon], n, nil
}
