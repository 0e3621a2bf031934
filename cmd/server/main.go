// Command server hosts one matching engine behind the transport package's
// REST/WebSocket surface.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"matchbook/engine"
	"matchbook/internal/logging"
	"matchbook/internal/metrics"
	"matchbook/transport"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("MATCHBOOK")
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "matchbook",
		Short: "Single-instrument price-time priority matching engine",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the matching engine behind an HTTP/WebSocket front door",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(v)
		},
	}

	flags := serve.Flags()
	flags.String("listen-addr", ":8080", "address to listen on")
	flags.String("symbol", "LMT", "instrument symbol served by this engine instance")
	flags.Int("max-depth", 25, "number of price levels tracked per side")
	flags.String("auth-token", "", "bearer token required on every request; empty disables auth")
	flags.String("cors-origin", "*", "Access-Control-Allow-Origin value")
	flags.String("environment", "dev", "logging environment: dev or prod")
	flags.String("config", "", "optional config file (yaml/json/toml, viper-resolved)")
	_ = v.BindPFlags(flags)

	cmd.AddCommand(serve)
	return cmd
}

func runServe(v *viper.Viper) error {
	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	log := logging.New(v.GetString("environment"))
	defer log.AtExit()
	engineLog := log.Named("engine")
	transportLog := log.Named("transport")

	symbol := v.GetString("symbol")
	eng := engine.NewMatchingEngine(symbol, v.GetInt("max-depth"), engineLog)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg, symbol)

	srv := transport.NewServer(eng, v.GetString("auth-token"), v.GetString("cors-origin"), transportLog, m)

	mux := http.NewServeMux()
	mux.Handle("/", srv.Routes())
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	addr := v.GetString("listen-addr")
	log.Sugar().Infow("listening", "addr", addr, "symbol", symbol)
	return http.ListenAndServe(addr, mux)
}
