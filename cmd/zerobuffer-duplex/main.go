// Command zerobuffer-duplex runs either side of a duplex channel: in
// -mode=server it echoes every request back as the response; in
// -mode=client it sends each stdin line as a request and prints the
// matching response.
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

	"github.com/modelingevolution/zerobuffer"
	"github.com/modelingevolution/zerobuffer/config"
	"github.com/modelingevolution/zerobuffer/duplex"
	"github.com/modelingevolution/zerobuffer/internal/obslog"
)

func main() {
	cfgPath := flag.String("config", "zerobuffer.toml", "path to TOML configuration")
	mode := flag.String("mode", "server", "server or client")
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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := zerobuffer.Options{
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		Logger:  log,
	}

	switch *mode {
	case "server":
		runServer(ctx, cfg, opts, log.Sugar().Infof)
	case "client":
		runClient(ctx, cfg, opts, log.Sugar().Warnf)
	default:
		fmt.Fprintf(os.Stderr, "unknown -mode %q, want server or client\n", *mode)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, cfg config.Config, opts zerobuffer.Options, infof func(string, ...any)) {
	srv, err := duplex.NewServer(cfg.BufferName, cfg.MetadataSize, cfg.PayloadSize, opts)
	if err != nil {
		infof("create duplex server: %v", err)
		os.Exit(1)
	}
	defer srv.Close()

	infof("duplex server %q ready, echoing requests", cfg.BufferName)
	if err := srv.Serve(ctx, func(req []byte) ([]byte, error) {
		echo := append([]byte(nil), req...)
		return echo, nil
	}); err != nil && ctx.Err() == nil {
		infof("duplex server stopped: %v", err)
	}
}

func runClient(ctx context.Context, cfg config.Config, opts zerobuffer.Options, warnf func(string, ...any)) {
	cl, err := duplex.NewClient(cfg.BufferName, cfg.MetadataSize, cfg.PayloadSize, opts)
	if err != nil {
		warnf("connect duplex client: %v", err)
		os.Exit(1)
	}
	defer cl.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, resp, err := cl.Call(scanner.Bytes())
		if err != nil {
			warnf("call: %v", err)
			return
		}
		fmt.Println(string(resp))
	}
}
