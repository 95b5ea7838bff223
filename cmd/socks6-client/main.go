// Command socks6-client connects stdin and stdout to a destination through a
// SOCKS6 proxy, optionally asking it to forward along a chain of further
// proxies.
//
//	socks6-client --proxy=127.0.0.1:1080 --chain=hop2.example:1080 example.com:80
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/die-net/socksx/internal/chain"
	"github.com/die-net/socksx/internal/dialer"
	"github.com/die-net/socksx/internal/endpoint"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		proxyAddr          = pflag.String("proxy", "127.0.0.1:1080", "SOCKS6 proxy host:port")
		chainLinks         = pflag.StringSlice("chain", nil, "Further proxy hops host:port for the proxy to traverse, in order (repeatable)")
		initialData        = pflag.String("initial-data", "", "Bytes to send to the destination as part of the request")
		dialTimeout        = pflag.Duration("dial-timeout", 10*time.Second, "Timeout for DNS lookup and TCP connect to the proxy")
		negotiationTimeout = pflag.Duration("negotiation-timeout", 10*time.Second, "Timeout for SOCKS6 negotiation")
	)

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] host:port\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	if pflag.NArg() != 1 {
		pflag.Usage()
		return errors.New("expected exactly one destination")
	}

	dst, err := endpoint.Parse(pflag.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid destination: %w", err)
	}
	proxy, err := endpoint.Parse(*proxyAddr)
	if err != nil {
		return fmt.Errorf("invalid --proxy: %w", err)
	}
	links, err := chain.ParseLinks(*chainLinks)
	if err != nil {
		return fmt.Errorf("invalid --chain: %w", err)
	}

	var c *chain.Chain
	if len(links) > 0 {
		cc := chain.New(links...)
		c = &cc
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := dialer.NewSOCKS6ProxyDialer(dialer.Config{
		DialTimeout:        *dialTimeout,
		NegotiationTimeout: *negotiationTimeout,
	}, proxy)

	conn, err := d.Connect(ctx, dst, c, []byte(*initialData))
	if err != nil {
		return err
	}
	context.AfterFunc(ctx, func() { _ = conn.Close() })

	return pipe(conn, os.Stdin, os.Stdout)
}

// pipe copies in to conn and conn to out, half-closing conn when in ends.
// It returns once conn has nothing more to send.
func pipe(conn net.Conn, in io.Reader, out io.Writer) error {
	defer conn.Close()

	go func() {
		_, _ = io.Copy(conn, in)
		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.CloseWrite()
		}
	}()

	_, err := io.Copy(out, conn)
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
