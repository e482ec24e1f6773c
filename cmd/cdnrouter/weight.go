package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cdnrouter/internal/config"
	"cdnrouter/internal/router"
)

func newSetWeightCommand(v *viper.Viper) *cobra.Command {
	var remote string
	cmd := &cobra.Command{
		Use:   "set-weight ID WEIGHT",
		Short: "Change a node's weight on a running router",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			weight, err := parseWeight(args[1])
			if err != nil {
				return err
			}
			return withRouter(cmd, v, remote, func(ctx context.Context, client *router.Client) error {
				version, err := client.SetWeight(ctx, args[0], weight)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s weight set to %s (pool version %d)\n", args[0], args[1], version)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&remote, "remote", "", "router address (defaults to the configured listen address)")
	return cmd
}

func newAddNodeCommand(v *viper.Viper) *cobra.Command {
	var remote string
	cmd := &cobra.Command{
		Use:   "add-node ID ADDR [WEIGHT]",
		Short: "Add a node to a running router, or replace its address and weight",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			weight := float64(config.DefaultWeight)
			if len(args) == 3 {
				w, err := parseWeight(args[2])
				if err != nil {
					return err
				}
				weight = w
			}
			return withRouter(cmd, v, remote, func(ctx context.Context, client *router.Client) error {
				version, err := client.AddNode(ctx, args[0], args[1], weight)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s added at %s with weight %v (pool version %d)\n", args[0], args[1], weight, version)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&remote, "remote", "", "router address (defaults to the configured listen address)")
	return cmd
}

func newRemoveNodeCommand(v *viper.Viper) *cobra.Command {
	var remote string
	cmd := &cobra.Command{
		Use:   "remove-node ID",
		Short: "Remove a node from a running router",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRouter(cmd, v, remote, func(ctx context.Context, client *router.Client) error {
				version, err := client.RemoveNode(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s removed (pool version %d)\n", args[0], version)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&remote, "remote", "", "router address (defaults to the configured listen address)")
	return cmd
}

func parseWeight(s string) (float64, error) {
	w, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid weight %q: %w", s, err)
	}
	return w, nil
}

// withRouter dials remote, or the configured listen address when remote is
// empty, and runs fn with a request timeout.
func withRouter(cmd *cobra.Command, v *viper.Viper, remote string, fn func(context.Context, *router.Client) error) error {
	if remote == "" {
		remote = v.GetString("listen-addr")
	}
	if remote == "" {
		cfg, err := loadConfig(v)
		if err != nil {
			return err
		}
		remote = cfg.ListenAddr
	}

	client, err := router.Dial(remote)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	return fn(ctx, client)
}
