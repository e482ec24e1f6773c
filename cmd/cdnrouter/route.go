package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cdnrouter/internal/dispersion"
	"cdnrouter/internal/pool"
	"cdnrouter/internal/router"
)

const requestTimeout = 5 * time.Second

func newRouteCommand(v *viper.Viper, logger *logrus.Logger) *cobra.Command {
	var (
		remote         string
		dispersionJSON string
		connect        bool
	)
	cmd := &cobra.Command{
		Use:   "route KEY...",
		Short: "Print the candidate nodes for request keys",
		Long: "Route keys against the configured pool, or against a running router with --remote.\n" +
			"The dispersion defaults to the configured one and may be given as JSON, e.g.\n" +
			`  --dispersion '{"dispersion": {"limit": 2, "shuffled": "true"}}'` + "\n" +
			"With --connect, candidates are dialed in order and the first reachable one is marked as served.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			d := cfg.Dispersion
			if dispersionJSON != "" {
				d, err = dispersion.ParseOrDefault([]byte(dispersionJSON))
				if err != nil {
					logger.WithError(err).Warn("Malformed dispersion, using default")
				}
			}

			var lookup lookupFunc
			if remote != "" {
				client, err := router.Dial(remote)
				if err != nil {
					return err
				}
				defer client.Close()
				lookup = client.Route
			} else {
				p, err := buildPool(cfg, logger)
				if err != nil {
					return err
				}
				lookup = poolLookup(p)
			}

			header := []string{"Key", "Rank", "Node", "Addr", "Weight"}
			if connect {
				header = append(header, "Served")
			}
			rows := make([][]string, 0, len(args))
			for _, key := range args {
				ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
				cands, err := lookup(ctx, key, d)
				if err != nil {
					cancel()
					return fmt.Errorf("routing %q: %w", key, err)
				}
				var served string
				if connect {
					served = firstReachable(ctx, cands, logger.WithField("key", key))
				}
				cancel()

				for i, c := range cands {
					row := []string{key, strconv.Itoa(i + 1), c.ID, c.Addr, strconv.FormatFloat(c.Weight, 'f', -1, 64)}
					if connect {
						mark := ""
						if c.ID == served {
							mark = "yes"
						}
						row = append(row, mark)
					}
					rows = append(rows, row)
				}
			}
			renderTable(cmd.OutOrStdout(), header, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&remote, "remote", "", "address of a running router to query instead of the local pool")
	cmd.Flags().StringVar(&dispersionJSON, "dispersion", "", "dispersion JSON for this lookup")
	cmd.Flags().BoolVar(&connect, "connect", false, "dial candidates in order and report the first reachable one")
	return cmd
}

type lookupFunc func(ctx context.Context, key string, d dispersion.Dispersion) ([]router.Candidate, error)

func poolLookup(p *pool.Pool) lookupFunc {
	return func(_ context.Context, key string, d dispersion.Dispersion) ([]router.Candidate, error) {
		members, err := p.Select(d, key)
		if err != nil {
			return nil, err
		}
		cands := make([]router.Candidate, len(members))
		for i, m := range members {
			cands[i] = router.Candidate{ID: m.ID, Addr: m.Addr, Weight: m.Weight}
		}
		return cands, nil
	}
}

// firstReachable dials cands over TCP in order and returns the ID of the
// first one that accepts a connection, or "" when none does.
func firstReachable(ctx context.Context, cands []router.Candidate, log *logrus.Entry) string {
	var dialer net.Dialer
	_, served, err := router.TryCandidates(ctx, cands, func(ctx context.Context, c router.Candidate) (struct{}, error) {
		conn, err := dialer.DialContext(ctx, "tcp", c.Addr)
		if err != nil {
			log.WithError(err).WithField("node", c.ID).Debug("Candidate unreachable")
			return struct{}{}, err
		}
		return struct{}{}, conn.Close()
	})
	if err != nil {
		log.WithError(err).Warn("No candidate reachable")
		return ""
	}
	return served.ID
}

func renderTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.AppendBulk(rows)
	table.Render()
}
