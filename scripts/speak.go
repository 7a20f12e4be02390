package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/harunnryd/koe/pkg/adapters/tts"
	"github.com/harunnryd/koe/pkg/auth"
	"github.com/harunnryd/koe/pkg/koe"
	"github.com/harunnryd/koe/pkg/logging"
	"github.com/harunnryd/koe/pkg/providers/translator"
	"github.com/harunnryd/koe/pkg/session"
)

func main() {
	configPath := flag.String("config", "", "")
	text := flag.String("text", "", "")
	voice := flag.String("voice", "", "")
	rate := flag.String("rate", "", "")
	pitch := flag.String("pitch", "", "")
	style := flag.String("style", "", "")
	format := flag.String("format", "", "")
	out := flag.String("out", "out.mp3", "")
	proxy := flag.String("proxy", "", "")
	flag.Parse()
	if *text == "" {
		fmt.Println("usage: speak -text=... [-voice=...] [-out=out.mp3] [-config=config.yaml]")
		os.Exit(1)
	}

	logger := logging.InitLogger("warn", "text")

	defaults := tts.Request{}
	proxyURL := *proxy
	if *configPath != "" {
		cfg, err := koe.LoadConfig(*configPath)
		if err != nil {
			fmt.Println("config error:", err)
			os.Exit(1)
		}
		defaults = tts.Request{
			VoiceName:    cfg.Defaults.VoiceName,
			Rate:         cfg.Defaults.Rate,
			Pitch:        cfg.Defaults.Pitch,
			OutputFormat: cfg.Defaults.OutputFormat,
			Style:        cfg.Defaults.Style,
		}
		if proxyURL == "" {
			proxyURL = cfg.Transport.ProxyURL
		}
	}

	manager, err := session.NewManager(session.Config{ProxyURL: proxyURL}, logger)
	if err != nil {
		fmt.Println("session error:", err)
		os.Exit(1)
	}
	defer manager.Close()
	client := session.NewClient(manager, logger)

	cache := auth.NewCache(auth.Config{}, client, logger, nil)
	synth := translator.New(translator.Config{Defaults: defaults}, cache, client, logger, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	audio, err := synth.Synthesize(ctx, tts.Request{
		Text:         *text,
		VoiceName:    *voice,
		Rate:         *rate,
		Pitch:        *pitch,
		Style:        *style,
		OutputFormat: *format,
	})
	if err != nil {
		fmt.Println("synthesis error:", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, audio, 0o644); err != nil {
		fmt.Println("write error:", err)
		os.Exit(1)
	}
	fmt.Println("wrote", len(audio), "bytes to", *out)
}
