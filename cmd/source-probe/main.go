package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"jokeboard/internal/config"
	"jokeboard/internal/source"
	"jokeboard/pkg/logger"
)

var (
	n   = flag.Int("n", 3, "number of jokes to fetch")
	url = flag.String("url", source.DefaultURL, "joke API endpoint")
)

func main() {
	flag.Parse()
	logger.Init("debug", logger.FormatText, os.Stderr)

	fmt.Println("=== Probing joke source ===")
	fmt.Println()

	cfg := config.SourceConfig{
		URL:         *url,
		HTTPTimeout: 30 * time.Second,
	}
	src := source.FromConfig(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	failed := 0
	for i := 1; i <= *n; i++ {
		joke, err := src.RandomJoke(ctx)
		if err != nil {
			failed++
			var statusErr *source.StatusError
			switch {
			case errors.As(err, &statusErr):
				fmt.Printf("✗ %d: HTTP %d\n", i, statusErr.Code)
			case errors.Is(err, source.ErrMalformedJoke):
				fmt.Printf("✗ %d: malformed response\n", i)
			default:
				fmt.Printf("✗ %d: %v\n", i, err)
			}
			continue
		}

		text := joke.Text
		if len(text) > 60 {
			text = text[:60] + "..."
		}
		fmt.Printf("✓ %d: [%s] %s\n", i, joke.ID, text)
	}

	fmt.Println()
	fmt.Printf("=== Probe complete: %d ok, %d failed ===\n", *n-failed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
