package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jroosing/nettest/internal/cli"
)

var keyFlags = []cli.KeyFlag{
	{Flag: "addr", Key: "peer.addr"},
	{Flag: "port", Key: "peer.port"},
	{Flag: "harness", Key: "peer.harness_addr"},
	{Flag: "harness-port1", Key: "peer.harness_port1"},
	{Flag: "harness-port2", Key: "peer.harness_port2"},
	{Flag: "interval", Key: "peer.stream_interval"},
	{Flag: "rounds", Key: "peer.rounds"},
	{Flag: "dns-listen", Key: "dns.listen"},
	{Flag: "ttl", Key: "dns.ttl"},
	{Flag: "edns", Key: "dns.edns_payload_size"},
	{Flag: "api", Key: "api.enabled"},
	{Flag: "api-host", Key: "api.host"},
	{Flag: "api-port", Key: "api.port"},
	{Flag: "api-key", Key: "api.api_key"},
}

func peerFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("", pflag.ContinueOnError)
	fs.SortFlags = false
	fs.String("addr", "", "address the peer listens and sends on")
	fs.Int("port", 0, "peer server port (default uid%5000+25099)")
	fs.String("harness", "", "address of the harness")
	fs.Int("harness-port1", 0, "first harness port")
	fs.Int("harness-port2", 0, "second harness port")
	fs.Duration("interval", 0, "pause between streamed rounds (0 sends back to back)")
	fs.Int("rounds", 0, "streamed rounds before exiting (0 streams until interrupted)")
	fs.String("dns-listen", "", "dns mode listen address")
	fs.Uint32("ttl", 0, "TTL of dns mode answers")
	fs.Uint16("edns", 0, "attach an EDNS OPT record with this UDP payload size to every answer")
	fs.Bool("api", false, "serve the status API while running")
	fs.String("api-host", "", "status API host")
	fs.Int("api-port", 0, "status API port")
	fs.String("api-key", "", "require this X-API-Key on the status API")
	return fs
}

func newRootCommand(gs *cli.GlobalState) *cobra.Command {
	root := &cobra.Command{
		Use:   "nettest-peer",
		Short: "Host-side peer for nettest",
		Long: `nettest-peer plays the remote host for one nettest scenario per mode. The
streaming and serving modes run until interrupted; txone and tx exit with 0
when the expected payloads arrived and 3 when they did not.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return gs.LoadConfig(cmd.Flags(), keyFlags, true)
		},
	}
	root.PersistentFlags().AddFlagSet(cli.GlobalFlagSet(gs))
	root.PersistentFlags().AddFlagSet(peerFlagSet())

	for _, m := range modes {
		root.AddCommand(newModeCommand(gs, m))
	}
	return root
}
