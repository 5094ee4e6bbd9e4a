// Command zerobuffer-writer attaches to an existing zerobuffer and
// writes one frame per line read from stdin until EOF or the process is
// signalled.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/modelingevolution/zerobuffer"
	"github.com/modelingevolution/zerobuffer/config"
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

	met := metrics.New(prometheus.NewRegistry())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	w, err := zerobuffer.NewWriter(cfg.BufferName, zerobuffer.Options{
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		Logger:  log,
		Metrics: met,
	})
	if err != nil {
		log.Sugar().Fatalf("attach writer: %v", err)
	}
	defer w.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := scanner.Bytes()
		if err := w.WriteFrame(line); err != nil {
			log.Sugar().Warnf("write frame: %v", err)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Sugar().Warnf("read stdin: %v", err)
	}
}
