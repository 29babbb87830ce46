package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/omochice/room-chat/internal/client"
	"github.com/omochice/room-chat/internal/config"
	"github.com/omochice/room-chat/internal/session"
	"github.com/omochice/room-chat/internal/transport/ws"
	"github.com/omochice/room-chat/pkg/protocol"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	cfg, err := config.LoadClient(os.Args[1:])
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	term := client.NewTerminal(os.Stdout, color.SupportColor())
	sess, err := session.New(session.Options{
		RoomID:       cfg.RoomID,
		Endpoint:     cfg.Endpoint,
		Codec:        codec,
		Dialer:       &ws.Dialer{Timeout: cfg.DialTimeout, Binary: codec.Binary()},
		Sink:         term,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
		EventBuffer:  cfg.EventBuffer,
		Logger:       log,
	})
	if err != nil {
		return exitConfig, err
	}

	if err := term.Run(ctx, sess, cfg.Nickname, os.Stdin); err != nil {
		return exitRuntime, err
	}
	return exitOK, nil
}
