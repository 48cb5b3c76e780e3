// Command foxy-proxy runs the forward-proxy core: it binds a client-facing
// listener, dials upstreams on demand per tunnel, and optionally exposes a
// Prometheus /metrics endpoint.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/foxyproxy/foxy/pkg/config"
	"github.com/foxyproxy/foxy/pkg/flog"
	"github.com/foxyproxy/foxy/pkg/listener"
	"github.com/foxyproxy/foxy/pkg/metrics"
	"github.com/foxyproxy/foxy/pkg/session"
	"github.com/foxyproxy/foxy/pkg/tunnel"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:   "foxy-proxy",
		Short: "An asynchronous HTTP/1.1 forward proxy",
		Long: `foxy-proxy accepts client connections, classifies each inbound request as
either a CONNECT tunnel or a one-shot absolute-URI relay, strips hop-by-hop
header fields, inserts its own Via token, and forwards the exchange to the
requested upstream.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}
	cfg.BindFlags(cmd)
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	log := flog.New(os.Stderr, cfg.PrettyLog)

	reg := prometheus.NewRegistry()
	met := metrics.New(reg)

	tlsCfg, err := cfg.ListenerTLSConfig()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return err
	}

	opts := cfg.SessionOptions()
	l := listener.New(ln, tlsCfg, opts, log)
	dial := tunnel.DefaultDialer(opts, log)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, reg, log)
	}

	log.Info().Str("addr", ln.Addr().String()).Msg("foxy-proxy listening")

	return l.Serve(ctx, func(s *session.ServerSession) func(context.Context) error {
		return func(ctx context.Context) error {
			return tunnel.Dispatch(ctx, s, dial, met)
		}
	})
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, log flog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warn().Err(err).Msg("metrics server exited")
	}
}
