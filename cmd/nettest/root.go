package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jroosing/nettest/internal/cli"
	"github.com/jroosing/nettest/internal/config"
	"github.com/jroosing/nettest/internal/harness"
)

// keyFlags are the harness flags that map one to one onto config keys.
var keyFlags = []cli.KeyFlag{
	{Flag: "peer", Key: "peer.addr"},
	{Flag: "peer-port", Key: "peer.port"},
	{Flag: "local-host", Key: "harness.local_host"},
	{Flag: "counter", Key: "harness.counter"},
	{Flag: "dns-server", Key: "dns.server"},
	{Flag: "dns-name", Key: "dns.name"},
	{Flag: "dns-expect", Key: "dns.expect"},
	{Flag: "timeout", Key: "harness.timeout"},
	{Flag: "tx-interval", Key: "harness.tx_interval"},
	{Flag: "settle", Key: "harness.settle"},
	{Flag: "drain-window", Key: "harness.drain_window"},
	{Flag: "grade-pause", Key: "harness.grade_pause"},
	{Flag: "queue-bound", Key: "harness.queue_bound"},
	{Flag: "free-tolerance", Key: "harness.free_tolerance"},
	{Flag: "stream-interval", Key: "peer.stream_interval"},
}

func harnessFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("", pflag.ContinueOnError)
	fs.SortFlags = false
	fs.Bool("loopback", false, "run against an in-process loopback network with built-in peer endpoints")
	fs.String("peer", "", "peer address")
	fs.Int("peer-port", 0, "peer server port (default uid%5000+25099)")
	fs.String("local-host", "", "address harness ports are bound on")
	fs.String("counter", "", "resource counter for grade: fd, memory or loopback")
	fs.String("dns-server", "", "resolver for the dns scenario, addr[:port]")
	fs.String("dns-name", "", "name looked up by the dns scenario")
	fs.String("dns-expect", "", "address the dns answer must equal")
	fs.Duration("timeout", 0, "bound on each receive (0 waits forever)")
	fs.Duration("tx-interval", 0, "pause between tx sends")
	fs.Duration("settle", 0, "ping3 pause around the burst")
	fs.Duration("drain-window", 0, "time ping3 gives its drain goroutine")
	fs.Duration("grade-pause", 0, "pause between grade scenarios")
	fs.Int("queue-bound", 0, "most replies ping3 tolerates on one port")
	fs.Int("free-tolerance", 0, "resources grade may lose")
	fs.Duration("stream-interval", 0, "loopback only: pace of the built-in streamers")
	return fs
}

func newRootCommand(gs *cli.GlobalState) *cobra.Command {
	root := &cobra.Command{
		Use:   "nettest",
		Short: "Exercise a UDP stack against a remote peer",
		Long: `nettest runs one networking scenario per subcommand and prints one line per
result. It exits 0 when every scenario passed, 3 when any failed, and 1 on
usage errors or fatal failures such as a port that cannot be bound.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadHarnessConfig(gs, cmd, true)
		},
	}
	root.PersistentFlags().AddFlagSet(cli.GlobalFlagSet(gs))
	root.PersistentFlags().AddFlagSet(harnessFlagSet())

	for _, name := range harness.Names() {
		root.AddCommand(newScenarioCommand(gs, name))
	}
	root.AddCommand(newConfigCommand(gs))
	return root
}

func loadHarnessConfig(gs *cli.GlobalState, cmd *cobra.Command, strict bool) error {
	fs := cmd.Flags()
	if loopback, _ := fs.GetBool("loopback"); loopback {
		// Explicit --set values still win.
		gs.Flags.Sets = append([]string{"harness.transport=" + config.TransportLoopback}, gs.Flags.Sets...)
	}
	return gs.LoadConfig(fs, keyFlags, strict)
}
