package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/querytalk/querytalk/internal/cli/querytalkctl"
)

func main() {
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("QUERYTALK_CLI_TIMEOUT")), 60*time.Second)
	options := querytalkctl.Options{
		BaseURL:   envOr("QUERYTALK_API_URL", "http://localhost:8080"),
		SessionID: strings.TrimSpace(os.Getenv("QUERYTALK_SESSION_ID")),
		Timeout:   timeout,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}

	code := querytalkctl.Run(context.Background(), os.Args[1:], options)
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid QUERYTALK_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
