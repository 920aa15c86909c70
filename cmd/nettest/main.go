// Command nettest runs the UDP networking scenarios against a peer started
// with nettest-peer, or against an in-process loopback network.
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
