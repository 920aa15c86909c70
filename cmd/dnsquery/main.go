// Command dnsquery sends one A query built by the nettest DNS codec and
// prints the parsed answer. It is the dns scenario without the harness.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/jroosing/nettest/internal/dns"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("dnsquery", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		server   = fs.String("server", "8.8.8.8:53", "DNS server HOST:PORT")
		name     = fs.String("name", "pdos.csail.mit.edu.", "Query name")
		id       = fs.Uint16("id", 0, "Query ID (0 picks a random one)")
		timeout  = fs.Duration("timeout", 2*time.Second, "Timeout")
		recvSize = fs.Int("recv-size", 2048, "UDP receive buffer size")
		quiet    = fs.Bool("quiet", false, "Suppress output (exit status indicates success)")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *id == 0 {
		*id = uint16(rand.N(0xFFFF)) + 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	ans, err := query(ctx, *server, *name, *id, *recvSize)
	if err != nil {
		if !*quiet {
			fmt.Fprintf(stderr, "dnsquery error: %v\n", err)
		}
		return 1
	}
	if *quiet {
		return 0
	}

	fmt.Fprintf(stdout, "id=%d rcode=%d answers=%d authorities=%d additionals=%d\n",
		ans.Header.ID,
		ans.Header.RCode(),
		ans.Header.ANCount,
		ans.Header.NSCount,
		ans.Header.ARCount,
	)
	if ans.EDNSPayloadSize != 0 {
		fmt.Fprintf(stdout, "edns udp=%d\n", ans.EDNSPayloadSize)
	}
	fmt.Fprintf(stdout, "%s %d IN A %s\n", ans.QName, ans.TTL, ans.Addr)
	return 0
}

func query(ctx context.Context, server, name string, id uint16, recvSize int) (dns.AnswerSet, error) {
	req, err := dns.BuildQuery(name, id)
	if err != nil {
		return dns.AnswerSet{}, err
	}

	var d net.Dialer
	c, err := d.DialContext(ctx, "udp4", server)
	if err != nil {
		return dns.AnswerSet{}, err
	}
	defer c.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.SetDeadline(deadline)
	}
	if _, err := c.Write(req); err != nil {
		return dns.AnswerSet{}, err
	}
	buf := make([]byte, recvSize)
	n, err := c.Read(buf)
	if err != nil {
		return dns.AnswerSet{}, err
	}
	return dns.ParseResponse(buf[:n], id)
}
