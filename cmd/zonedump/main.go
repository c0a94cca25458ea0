package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rawbytedev/zonebuf"
	"github.com/rawbytedev/zonebuf/internal/config"
	"github.com/rawbytedev/zonebuf/internal/logger"
	"github.com/rawbytedev/zonebuf/internal/metrics"
	"github.com/rawbytedev/zonebuf/pkg/query"
	"github.com/rawbytedev/zonebuf/pkg/zonewire"
)

type options struct {
	in          string
	format      string
	inspect     bool
	workers     int
	unsafe      bool
	sample      int
	sampleOut   string
	compress    bool
	checksum    bool
	metricsAddr string
	cacheSize   int
	pprofAddr   string
	serve       bool
}

func main() {
	cfg := config.Load(".env")
	var o options
	flag.StringVar(&o.in, "in", "-", "wire payload to decode, - for stdin")
	flag.StringVar(&o.format, "format", "json", "output format: json or yaml")
	flag.BoolVar(&o.inspect, "inspect", false, "print the header and column table instead of zones")
	flag.IntVar(&o.workers, "workers", cfg.Workers, "decode workers")
	flag.BoolVar(&o.unsafe, "unsafe", cfg.UnsafeStrings, "alias ids and numeric columns into the input buffer")
	flag.IntVar(&o.sample, "sample", 0, "generate a synthetic payload with this many zones instead of reading -in")
	flag.StringVar(&o.sampleOut, "sample-out", "", "write the generated payload here and exit")
	flag.BoolVar(&o.compress, "compress", cfg.WireCompress, "zstd-compress generated payload columns")
	flag.BoolVar(&o.checksum, "checksum", true, "append a CRC32 trailer to generated payloads")
	flag.StringVar(&o.metricsAddr, "metrics-addr", cfg.MetricsAddr, "serve prometheus metrics and /zone?id= lookups on this address")
	flag.IntVar(&o.cacheSize, "cache", cfg.CacheSize, "decoded results kept by the /zone lookup cache, 0 disables it")
	flag.StringVar(&o.pprofAddr, "pprof", "", "serve net/http/pprof on this address")
	flag.BoolVar(&o.serve, "serve", false, "keep serving metrics/pprof after decoding until interrupted")
	flag.Parse()

	l := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := run(l, o, os.Stdout); err != nil {
		l.Error("zonedump_failed", "err", err)
		os.Exit(1)
	}
}

func run(l *slog.Logger, o options, out io.Writer) error {
	if o.pprofAddr != "" {
		go func() {
			l.Info("pprof_listen", "addr", o.pprofAddr)
			l.Error("pprof_server_stopped", "err", http.ListenAndServe(o.pprofAddr, nil))
		}()
	}

	payload, err := load(l, o)
	if err != nil {
		return err
	}
	if o.sample > 0 && o.sampleOut != "" {
		if err := os.WriteFile(o.sampleOut, payload, 0o644); err != nil {
			return fmt.Errorf("write sample: %w", err)
		}
		l.Info("sample_written", "path", o.sampleOut, "zones", o.sample, "bytes", len(payload))
		return nil
	}

	wire := zonewire.NewDecoder(zonewire.Options{UnsafePrimitives: o.unsafe})
	opts := zonebuf.Options{UnsafeStrings: o.unsafe, Workers: o.workers}
	if o.metricsAddr != "" {
		client, err := newClient(l, wire, opts, o.cacheSize, payload)
		if err != nil {
			return err
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/zone", zoneHandler(l, client))
		go func() {
			l.Info("metrics_listen", "addr", o.metricsAddr)
			l.Error("metrics_server_stopped", "err", http.ListenAndServe(o.metricsAddr, mux))
		}()
	}
	if o.inspect {
		h, cols, err := wire.Inspect(payload)
		if err != nil {
			return err
		}
		return write(out, o.format, map[string]any{
			"version":  h.Version,
			"zones":    h.ZoneCount,
			"checksum": h.Flags&zonewire.FlagChecksum != 0,
			"columns":  cols,
		})
	}

	zones, err := decode(l, wire, opts, payload)
	if err != nil {
		return err
	}
	if err := write(out, o.format, zones); err != nil {
		return err
	}
	if o.serve {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		l.Info("serving_until_interrupted")
		<-ctx.Done()
	}
	return nil
}

// load returns the payload to work on: a generated sample or the input file.
func load(l *slog.Logger, o options) ([]byte, error) {
	if o.sample > 0 {
		buf, err := zonebuf.Encode(sampleZones(o.sample))
		if err != nil {
			return nil, err
		}
		e := &zonewire.Encoder{Checksum: o.checksum}
		if o.compress {
			e.Compression = zonewire.CompZstd
		}
		payload, err := e.Encode(buf)
		if err != nil {
			return nil, err
		}
		l.Debug("sample_generated", "zones", o.sample, "bytes", len(payload))
		return payload, nil
	}
	var (
		payload []byte
		err     error
	)
	if o.in == "" || o.in == "-" {
		payload, err = io.ReadAll(os.Stdin)
	} else {
		payload, err = os.ReadFile(o.in)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	l.Debug("input_read", "path", o.in, "bytes", len(payload))
	return payload, nil
}

func decode(l *slog.Logger, wire *zonewire.Decoder, opts zonebuf.Options, payload []byte) ([]zonebuf.Zone, error) {
	buf, err := wire.Decode(payload)
	if err != nil {
		metrics.DecodeFailuresTotal.WithLabelValues("wire").Inc()
		return nil, err
	}
	start := time.Now()
	zones, err := zonebuf.NewDecoder(opts).DecodeAll(buf)
	elapsed := time.Since(start)
	metrics.DecodeDurationMs.Observe(float64(elapsed.Microseconds()) / 1000)
	if err != nil {
		metrics.DecodeFailuresTotal.WithLabelValues(zonebuf.Kind(err)).Inc()
		var de *zonebuf.DecodeError
		if errors.As(err, &de) {
			l.Debug("decode_error_detail", "zone", de.Zone, "field", de.Field, "start", de.Start, "end", de.End, "limit", de.Limit)
		}
		return nil, err
	}
	metrics.ZonesDecodedTotal.Add(float64(len(zones)))
	l.Info("decoded", "zones", len(zones), "workers", opts.Workers, "elapsed", elapsed)
	return zones, nil
}

// newClient serves queries from the loaded payload: every request fetches
// the same bytes and the client's cache keeps decoded results per query.
func newClient(l *slog.Logger, wire *zonewire.Decoder, opts zonebuf.Options, cacheSize int, payload []byte) (*query.Client, error) {
	eng := &query.WireEngine{
		Fetch: func(ctx context.Context, req query.Request) ([]byte, error) {
			return payload, nil
		},
		Decoder: wire,
	}
	return query.NewClient(eng, query.Options{Decoder: opts, CacheSize: cacheSize, Logger: l})
}

// zoneHandler answers GET /zone?id=<zone id> with the zone as JSON.
func zoneHandler(l *slog.Logger, c *query.Client) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "missing id", http.StatusBadRequest)
			return
		}
		zones, err := c.ZoneFromID(r.Context(), id, r.URL.Query().Get("densify") == "true")
		if err != nil {
			l.Warn("zone_lookup_failed", "id", id, "err", err)
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		i, ok := query.Index(zones)[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(zones[i]); err != nil {
			l.Warn("zone_write_failed", "id", id, "err", err)
		}
	})
}

func write(w io.Writer, format string, v any) error {
	switch format {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
