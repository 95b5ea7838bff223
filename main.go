package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // Intentionally exposed on debug port.
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/socksx/internal/chain"
	"github.com/die-net/socksx/internal/dialer"
	"github.com/die-net/socksx/internal/proxy"
	"github.com/die-net/socksx/internal/tproxy"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		socksListen   = pflag.String("socks6-listen", "", "SOCKS6 proxy listen address (e.g. 127.0.0.1:1080). Empty disables.")
		tproxyListen  = pflag.String("tproxy-listen", "", "Transparent redirector listen address (e.g. 127.0.0.1:42000). Empty disables.")
		proxyProtocol = pflag.Bool("proxy-protocol", false, "Redirector takes original destinations from a PROXY protocol header instead of the socket")

		upstream   = pflag.String("upstream", defaultUpstream(), "Upstream forwarding target URL: direct:// | socks6://host[:port]")
		chainLinks = pflag.StringSlice("chain", nil, "Proxy chain hop host:port, in order; replaces chains requested by SOCKS6 clients and is sent to a socks6 upstream (repeatable)")

		allowPorts = pflag.UintSlice("allow-port", nil, "Only allow SOCKS6 destinations on these ports (repeatable)")
		allowCIDRs = pflag.StringSlice("allow-cidr", nil, "Only allow SOCKS6 destinations within these CIDRs (repeatable)")
		limit      = pflag.Int64("limit", 0, "Maximum concurrent SOCKS6 connections, 0 for unlimited")

		function    = pflag.String("function", "none", "Stream function applied to relayed traffic: none|count|log|chacha20")
		chachaKey   = pflag.String("chacha20-key", os.Getenv("CHACHA20_KEY"), "32-byte key for --function=chacha20")
		debugListen = pflag.String("debug-listen", "", "Debug HTTP listen address exposing /debug/pprof (e.g. 127.0.0.1:6060). Empty disables.")

		dialTimeout        = pflag.Duration("dial-timeout", 10*time.Second, "Timeout for outbound DNS lookup and TCP connect")
		negotiationTimeout = pflag.Duration("negotiation-timeout", 10*time.Second, "Timeout for protocol negotiation to set up connection")
		tcpKeepAlive       = pflag.String("tcp-keepalive", "45:45:3", "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")

		logLevel   = pflag.String("log-level", "info", "Log level: debug|info|warn|error")
		logFile    = pflag.String("log-file", "", "Write logs to this file, rotated by size, instead of stderr")
		verbose    = pflag.Bool("verbose", false, "Enable per-connection error logging")
		configPath = pflag.String("config", "", "TOML config file using flag names as keys; command line flags take precedence")
	)

	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	if *configPath != "" {
		if err := applyConfigFile(pflag.CommandLine, *configPath); err != nil {
			return fmt.Errorf("invalid --config: %w", err)
		}
	}

	log, err := newLogger(*logLevel, *logFile)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ka, err := parseTCPKeepAlive(*tcpKeepAlive)
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}

	if *socksListen == "" && *tproxyListen == "" {
		return errors.New("no listeners enabled (set at least one of --socks6-listen, --tproxy-listen)")
	}

	links, err := chain.ParseLinks(*chainLinks)
	if err != nil {
		return fmt.Errorf("invalid --chain: %w", err)
	}

	cfg := proxy.Config{
		NegotiationTimeout: *negotiationTimeout,
		KeepAlive:          ka,
		Chain:              links,
		Limit:              *limit,
		Logger:             log,
		Verbose:            *verbose,
	}

	cfg.DialConfig = dialer.Config{
		DialTimeout:        *dialTimeout,
		NegotiationTimeout: cfg.NegotiationTimeout,
		KeepAlive:          cfg.KeepAlive,
		Chain:              links,
	}

	cfg.Dialer, err = dialer.New(cfg.DialConfig, *upstream)
	if err != nil {
		return fmt.Errorf("invalid --upstream: %w", err)
	}

	if len(*allowPorts) > 0 || len(*allowCIDRs) > 0 {
		ports, err := toPorts(*allowPorts)
		if err != nil {
			return fmt.Errorf("invalid --allow-port: %w", err)
		}
		cfg.Policy, err = proxy.NewAllowList(ports, *allowCIDRs)
		if err != nil {
			return fmt.Errorf("invalid --allow-cidr: %w", err)
		}
	}

	cfg.Functions, err = newFunctions(*function, *chachaKey, log)
	if err != nil {
		return fmt.Errorf("invalid --function: %w", err)
	}

	g, ctx := errgroup.WithContext(context.Background())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *debugListen != "" {
		debugSrv := &http.Server{Handler: http.DefaultServeMux} //nolint:gosec // Not concerned about timeouts on debug port.
		lc := net.ListenConfig{KeepAliveConfig: cfg.KeepAlive}
		debugLn, err := lc.Listen(ctx, "tcp", *debugListen)
		if err != nil {
			return fmt.Errorf("debug listen: %w", err)
		}
		context.AfterFunc(ctx, func() {
			_ = debugSrv.Close()
			_ = debugLn.Close()
		})

		g.Go(func() error {
			if err := debugSrv.Serve(debugLn); err != nil {
				return fmt.Errorf("debug serve: %w", err)
			}
			return nil
		})
		log.Info("debug listening", zap.String("addr", *debugListen))
	}

	if *socksListen != "" {
		ln, err := proxy.ListenTCP("tcp", *socksListen, cfg.KeepAlive)
		if err != nil {
			return fmt.Errorf("socks6 listen: %w", err)
		}
		s6 := proxy.NewServer(ctx, cfg)
		context.AfterFunc(ctx, func() {
			_ = ln.Close()
		})

		g.Go(func() error {
			if err := s6.Serve(ln); err != nil {
				return fmt.Errorf("socks6 serve: %w", err)
			}
			return nil
		})

		log.Info("socks6 proxy listening", zap.String("addr", *socksListen), zap.Stringer("chain", chain.New(links...)))
	}

	if *tproxyListen != "" {
		ln, err := tproxy.ListenTransparentTCP(*tproxyListen, cfg.KeepAlive, *proxyProtocol)
		if err != nil {
			return fmt.Errorf("tproxy listen: %w", err)
		}
		tsrv := tproxy.NewServer(ctx, cfg)
		context.AfterFunc(ctx, func() {
			_ = ln.Close()
		})

		g.Go(func() error {
			if err := tsrv.Serve(ln); err != nil {
				return fmt.Errorf("tproxy serve: %w", err)
			}
			return nil
		})
		log.Info("tproxy listening", zap.String("addr", *tproxyListen), zap.Bool("proxy_protocol", *proxyProtocol))
	}

	err = g.Wait()
	if ctx.Err() != nil && isShutdownError(err) {
		err = nil
	}

	log.Info("shutting down")
	return err
}

// isShutdownError reports whether err is what a server returns once its
// listener is closed during shutdown.
func isShutdownError(err error) bool {
	return errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) || errors.Is(err, context.Canceled)
}

func defaultUpstream() string {
	if p := os.Getenv("SOCKS6_PROXY"); p != "" {
		return p
	}

	if p := os.Getenv("socks6_proxy"); p != "" {
		return p
	}

	return "direct://"
}
