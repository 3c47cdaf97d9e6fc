package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/wolfdex/idjc/internal/app"
	"github.com/wolfdex/idjc/internal/irc"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.json", "path to config file (json or yaml)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}

	go controlFeed(ctx, a.IRC())

	select {
	case <-ctx.Done():
	case <-a.Done():
	}
	_ = a.Stop(context.Background())
}

// controlFeed reads the events the broadcast host would deliver, one per
// line on stdin:
//
//	up                     stream became active
//	down                   stream became inactive
//	meta key=value ...     track metadata changed (artist, title, album,
//	                       songname, djname, description, url, source)
func controlFeed(ctx context.Context, mgr *irc.Manager) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "up":
			mgr.SetStreamActive(true)
		case line == "down":
			mgr.SetStreamActive(false)
		case strings.HasPrefix(line, "meta "):
			fields := make(map[string]string)
			for _, kv := range strings.Fields(strings.TrimPrefix(line, "meta ")) {
				if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
					fields[k] = v
				}
			}
			if len(fields) > 0 {
				mgr.NewMetadata(fields)
			}
		}
	}
}
