// Stage 5: the final guard pass and Telegram delivery batch.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/PollyDrive/estate-sub000/internal/app"
	"github.com/PollyDrive/estate-sub000/internal/stage"
)

func main() {
	configPath := flag.String("config", app.EnvString("CONFIG_PATH", "config.toml"), "Config file path. Env: CONFIG_PATH")
	chat := flag.String("chat", app.EnvString("PROFILE_CHAT_ID", ""), "Deliver to one profile's chat id only. Env: PROFILE_CHAT_ID")
	flag.Parse()

	ctx := context.Background()
	a, err := app.Bootstrap(ctx, *configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bootstrap:", err)
		os.Exit(2)
	}
	defer a.Close()

	profiles, err := a.SelectProfiles(*chat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "profiles:", err)
		os.Exit(2)
	}
	sender, err := a.Telegram()
	if err != nil {
		fmt.Fprintln(os.Stderr, "telegram:", err)
		os.Exit(2)
	}

	for _, p := range profiles {
		s5, err := stage.NewStage5(a.Store, sender, p, a.Cfg.Telegram, a.Cfg.Filters.Stage5Guard)
		if err != nil {
			fmt.Fprintln(os.Stderr, "stage5:", err)
			os.Exit(2)
		}
		res, err := s5.Run(ctx)
		if err != nil {
			a.ReportError(ctx, "stage5", err)
			fmt.Fprintln(os.Stderr, "stage5:", err)
			os.Exit(1)
		}
		if res.Quiet {
			fmt.Printf("stage=5 profile=%s quiet_hours=true\n", p.Name)
			continue
		}
		fmt.Printf("stage=5 profile=%s sent=%d no_desc_sent=%d blocked=%d errors=%d\n",
			p.Name, res.Sent, res.NoDescSent, res.Blocked, res.Errors)
	}
}
