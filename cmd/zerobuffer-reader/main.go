// Command zerobuffer-reader creates a zerobuffer and prints each frame
// it receives until a read or release fails (for example because the
// writer process died) or the process is signalled. Read timeouts,
// including those after a writer closed cleanly, are retried.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/modelingevolution/zerobuffer"
	"github.com/modelingevolution/zerobuffer/config"
	"github.com/modelingevolution/zerobuffer/errs"
	"github.com/modelingevolution/zerobuffer/internal/metrics"
	"github.com/modelingevolution/zerobuffer/internal/obslog"
)

func main() {
	cfgPath := flag.String("config", "zerobuffer.toml", "path to TOML configuration")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := obslog.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	reg := prometheus.NewRegistry()
	met := metrics.New(reg)
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, reg, log)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	r, err := zerobuffer.NewReader(cfg.BufferName, cfg.MetadataSize, cfg.PayloadSize, zerobuffer.Options{
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		Logger:  log,
		Metrics: met,
	})
	if err != nil {
		log.Sugar().Fatalf("create reader: %v", err)
	}
	defer r.Close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		f, err := r.ReadFrame()
		if err != nil {
			if errs.KindOf(err) == errs.KindTimeout {
				continue
			}
			log.Sugar().Warnf("read frame: %v", err)
			return
		}

		fmt.Printf("frame %d (%d bytes): %s\n", f.Sequence(), len(f.Bytes()), hex.EncodeToString(f.Bytes()[:min(16, len(f.Bytes()))]))
		if err := f.Release(); err != nil {
			log.Sugar().Warnf("release frame: %v", err)
			return
		}
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Sugar().Infof("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Sugar().Warnf("metrics server: %v", err)
	}
}
