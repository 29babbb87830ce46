package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
	"github.com/omochice/room-chat/internal/chat"
	"github.com/omochice/room-chat/internal/config"
	"github.com/omochice/room-chat/internal/transport/ws"
	"github.com/omochice/room-chat/pkg/protocol"
)

// Exit codes for the relay.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	cfg, err := config.LoadRelay(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		return exitOK, nil
	}
	if err != nil {
		return exitConfig, err
	}

	log := logs.GetLoggerFromString(cfg.LogLevel)

	codec, err := protocol.NewCodec(cfg.Codec)
	if err != nil {
		return exitConfig, err
	}

	srv := ws.NewServer(ws.ServerOptions{
		Address:        cfg.Address,
		Codec:          codec,
		OutgoingBuffer: cfg.OutgoingBuffer,
		Logger:         log,
	}, chat.NewHub())
	if err := srv.Listen(); err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", cfg.Address, err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return exitRuntime, err
		}
	case sig := <-sigChan:
		log.Info("Shutting down", "signal", sig.String())
		srv.Stop()
	}

	log.Info("Relay stopped")
	return exitOK, nil
}
