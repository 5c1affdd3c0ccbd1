// Stage 4: per-profile evaluation and summary generation. With no --chat
// every configured profile runs in order.
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
	chat := flag.String("chat", app.EnvString("PROFILE_CHAT_ID", ""), "Run for one profile's chat id only. Env: PROFILE_CHAT_ID")
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

	summarizer := a.Summarizer()
	for _, p := range profiles {
		s4 := stage.NewStage4(a.Store, summarizer, p)
		res, err := s4.Run(ctx)
		if err != nil {
			a.ReportError(ctx, "stage4", err)
			fmt.Fprintln(os.Stderr, "stage4:", err)
			os.Exit(1)
		}
		fmt.Printf("stage=4 profile=%s evaluated=%d passed=%d rejected=%d\n",
			p.Name, res.Evaluated, res.Passed, res.Rejected)
	}
}
