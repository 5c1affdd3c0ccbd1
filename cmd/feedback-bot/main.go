// Long-running Telegram bot: records emoji reactions on delivered cards
// and answers /start and /stats.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/PollyDrive/estate-sub000/internal/app"
	"github.com/PollyDrive/estate-sub000/internal/stage"
)

func main() {
	configPath := flag.String("config", app.EnvString("CONFIG_PATH", "config.toml"), "Config file path. Env: CONFIG_PATH")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Bootstrap(ctx, *configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bootstrap:", err)
		os.Exit(2)
	}
	defer a.Close()

	tg, err := a.Telegram()
	if err != nil {
		fmt.Fprintln(os.Stderr, "telegram:", err)
		os.Exit(2)
	}

	bot := stage.NewFeedbackBot(a.Store, tg)
	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "feedback-bot:", err)
		os.Exit(1)
	}
}
