// authcheck signs in with the test account from the environment and calls the
// chat API with the resulting bearer token, reporting each response and the
// remaining token lifetime.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/liminal-ai/liminal-chat/config"
	"github.com/liminal-ai/liminal-chat/internal/observability"
	"github.com/liminal-ai/liminal-chat/tokenclient"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type options struct {
	path         string
	count        int
	forceRefresh bool
	verbose      bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "authcheck: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("authcheck", pflag.ContinueOnError)
	flagSet.StringVar(&opts.path, "path", "/api/v1/me", "API path to call")
	flagSet.IntVarP(&opts.count, "count", "n", 1, "number of requests to send")
	flagSet.BoolVar(&opts.forceRefresh, "force-refresh", false, "refresh the token before the last request")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "log token lifecycle events")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if opts.count < 1 {
		return fmt.Errorf("--count must be at least 1")
	}

	cfg, err := config.LoadClientConfig()
	if err != nil {
		return err
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	logger, err := observability.NewLogger(config.ObservabilityConfig{LogLevel: level, LogFormat: "text"})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return check(ctx, *cfg, opts, logger, out)
}

func check(ctx context.Context, cfg config.ClientConfig, opts options, logger *zap.Logger, out io.Writer) error {
	manager, err := tokenclient.NewManager(cfg, nil, logger, observability.NopMetrics())
	if err != nil {
		return err
	}
	client := tokenclient.NewClient(manager, cfg.HTTPTimeout)
	target := strings.TrimRight(cfg.ChatAPIURL, "/") + "/" + strings.TrimLeft(opts.path, "/")

	failures := 0
	for i := 1; i <= opts.count; i++ {
		if opts.forceRefresh && i == opts.count {
			if err := manager.ForceRefresh(ctx); err != nil {
				return fmt.Errorf("force refresh: %w", err)
			}
			fmt.Fprintln(out, "token refreshed")
		}

		status, body, err := get(ctx, client, target)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			failures++
		}
		fmt.Fprintf(out, "[%d/%d] GET %s -> %d %s\n", i, opts.count, opts.path, status, strings.TrimSpace(body))
	}

	fmt.Fprintf(out, "token valid for %s\n", manager.TimeUntilExpiry().Round(time.Second))
	if failures > 0 {
		return fmt.Errorf("%d of %d requests failed", failures, opts.count)
	}
	return nil
}

func get(ctx context.Context, client *http.Client, target string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return 0, "", fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, string(body), nil
}
