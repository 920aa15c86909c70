package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jroosing/nettest/internal/cli"
)

var scenarioHelp = map[string]string{
	"txone":   `Send "txone" to the peer once`,
	"tx":      `Send "t 0" to "t 4" to the peer, one per tx interval`,
	"rx":      "Receive four numbered packets in order on port 2000",
	"rxburst": "Receive four numbered packets on port 2000 while port 2001 is flooded",
	"rx2":     "Receive interleaved traffic on ports 2000 and 2001",
	"ping0":   "One echo round trip",
	"ping1":   "Twenty echo round trips",
	"ping2":   "Echo traffic on two ports at once",
	"ping3":   "Check that a flooded port queues a bounded number of datagrams",
	"dns":     "Resolve a name through the configured DNS server",
	"grade":   "Run txone, ping0 to ping3 and dns, then check for leaked resources",
}

func newScenarioCommand(gs *cli.GlobalState, name string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: scenarioHelp[name],
		Args:  cli.UsageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScenario(cmd.Context(), gs, name)
		},
	}
}

func runScenario(ctx context.Context, gs *cli.GlobalState, name string) error {
	r, err := newRig(gs, name)
	if err != nil {
		return cli.WithExitCodeIfNone(err, cli.ExitFatal)
	}
	defer func() {
		if err := r.close(); err != nil {
			gs.Logger.Warn("transport close failed", "err", err)
		}
	}()

	feedCtx, stopFeed := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if r.feed != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.feed(feedCtx); err != nil && !errors.Is(err, context.Canceled) {
				gs.Logger.Warn("streamer stopped", "err", err)
			}
		}()
	}

	results, err := r.h.Run(ctx, name)
	stopFeed()
	wg.Wait()
	if err != nil {
		return cli.WithExitCodeIfNone(err, cli.ExitFatal)
	}

	failed := 0
	for _, res := range results {
		if !res.Passed() {
			failed++
		}
	}
	if failed > 0 {
		return cli.WithExitCodeIfNone(
			fmt.Errorf("%s: %d of %d checks failed", name, failed, len(results)),
			cli.ExitScenarioFailed)
	}
	return nil
}
