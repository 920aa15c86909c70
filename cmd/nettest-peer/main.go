// Command nettest-peer is the host side of nettest: it streams traffic to
// the harness, reflects its pings, answers its DNS queries, and checks what
// it sends.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jroosing/nettest/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	gs := cli.NewGlobalState(ctx)
	code := cli.Execute(gs, newRootCommand(gs))
	stop()
	os.Exit(code)
}
