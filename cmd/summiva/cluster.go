package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/cli"
)

var flagSimilarLimit int

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Inspect and retrain document clusters",
}

var clusterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clusters with their size and representative document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, func(b backend, format cli.OutputFormat) error {
			clusters, err := b.Clusters(cmd.Context())
			if err != nil {
				return err
			}
			return cli.WriteClusters(cmd.OutOrStdout(), clusters, format)
		})
	},
}

var clusterOfCmd = &cobra.Command{
	Use:   "of <doc-id>",
	Short: "Print the cluster a document belongs to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, func(b backend, format cli.OutputFormat) error {
			id, err := b.ClusterOf(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return cli.WriteIDs(cmd.OutOrStdout(), []uint64{id}, format)
		})
	},
}

var clusterMembersCmd = &cobra.Command{
	Use:   "members <cluster-id>",
	Short: "List the documents in a cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseClusterID(args[0])
		if err != nil {
			return err
		}
		return withBackend(cmd, func(b backend, format cli.OutputFormat) error {
			members, err := b.MembersOf(cmd.Context(), id)
			if err != nil {
				return err
			}
			return cli.WriteIDs(cmd.OutOrStdout(), members, format)
		})
	},
}

var clusterSimilarCmd = &cobra.Command{
	Use:   "similar <cluster-id>",
	Short: "List clusters whose centroids are closest to the given cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseClusterID(args[0])
		if err != nil {
			return err
		}
		return withBackend(cmd, func(b backend, format cli.OutputFormat) error {
			similar, err := b.SimilarClusters(cmd.Context(), id, flagSimilarLimit)
			if err != nil {
				return err
			}
			return cli.WriteIDs(cmd.OutOrStdout(), similar, format)
		})
	},
}

var clusterRetrainCmd = &cobra.Command{
	Use:   "retrain",
	Short: "Recompute all clusters with k-means",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, func(b backend, format cli.OutputFormat) error {
			stats, err := b.Retrain(cmd.Context())
			if err != nil {
				return err
			}
			return cli.WriteStats(cmd.OutOrStdout(), stats, format)
		})
	},
}

func init() {
	clusterSimilarCmd.Flags().IntVarP(&flagSimilarLimit, "limit", "n", 5, "maximum clusters to list (0 = all)")
	clusterCmd.AddCommand(clusterListCmd, clusterOfCmd, clusterMembersCmd, clusterSimilarCmd, clusterRetrainCmd)
	rootCmd.AddCommand(clusterCmd)
}

func parseClusterID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cluster id %q", s)
	}
	return id, nil
}

// withBackend opens the backend, runs fn and closes the backend.
func withBackend(cmd *cobra.Command, fn func(backend, cli.OutputFormat) error) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	b, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(b, format)
}
