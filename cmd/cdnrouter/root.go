package main

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cdnrouter/internal/config"
)

const envPrefix = "CDNROUTER"

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	logger := logrus.New()

	root := &cobra.Command{
		Use:           "cdnrouter",
		Short:         "Weighted consistent-hash request router for CDN delivery nodes",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.SetOutput(cmd.ErrOrStderr())
			level, err := logrus.ParseLevel(v.GetString("log-level"))
			if err != nil {
				return err
			}
			logger.SetLevel(level)
			if v.GetString("log-format") == "json" {
				logger.SetFormatter(&logrus.JSONFormatter{})
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "path to a YAML configuration file")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text or json)")
	flags.String("listen-addr", "", "gRPC listen address")
	flags.String("metrics-addr", "", "Prometheus metrics listen address (empty string disables)")
	flags.String("hash-function", "", "hash function: md5, murmur3 or xxhash")
	flags.Float64("points-per-weight", 0, "ring points per unit of node weight")
	flags.Int("max-points-per-node", 0, "largest number of ring points a single node may own")
	flags.String("nodes", "", "static nodes: id=addr[@weight],...")
	flags.Int("dispersion-limit", 0, "default number of candidates per request")
	flags.Bool("dispersion-shuffled", false, "shuffle candidates after the primary by default")
	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}

	root.AddCommand(
		newServeCommand(v, logger),
		newRouteCommand(v, logger),
		newSetWeightCommand(v),
		newAddNodeCommand(v),
		newRemoveNodeCommand(v),
	)
	return root
}

// loadConfig reads the config file, if any, then applies flags and
// CDNROUTER_* environment variables on top.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg := config.Default()
	if path := v.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if v.IsSet("listen-addr") && v.GetString("listen-addr") != "" {
		cfg.ListenAddr = v.GetString("listen-addr")
	}
	if v.IsSet("metrics-addr") {
		cfg.MetricsAddr = v.GetString("metrics-addr")
	}
	if s := v.GetString("hash-function"); s != "" {
		cfg.HashFunction = s
	}
	if k := v.GetFloat64("points-per-weight"); k > 0 {
		cfg.PointsPerWeight = k
	}
	if n := v.GetInt("max-points-per-node"); n > 0 {
		cfg.MaxPointsPerNode = n
	}
	if s := v.GetString("nodes"); s != "" {
		nodes, err := config.ParseNodes(s)
		if err != nil {
			return nil, fmt.Errorf("--nodes: %w", err)
		}
		cfg.Nodes = nodes
	}
	if v.IsSet("dispersion-limit") && v.GetInt("dispersion-limit") != 0 {
		cfg.Dispersion.Limit = v.GetInt("dispersion-limit")
	}
	if v.IsSet("dispersion-shuffled") {
		cfg.Dispersion.Shuffled = v.GetBool("dispersion-shuffled")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
