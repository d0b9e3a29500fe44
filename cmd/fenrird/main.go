package main

import (
	"context"
	"os/signal"
	"syscall"

	"fenrir/internal/engine"
	"fenrir/internal/transport"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const bookCapacityHint = 4096

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	book := engine.New(bookCapacityHint)
	srv := transport.New("0.0.0.0", 9001, book)

	log.Info().Msg("starting fenrird")
	go srv.Run(ctx)

	<-ctx.Done()
}
