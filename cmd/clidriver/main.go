// Command clidriver runs one client process: it waits for a proposer list,
// submits a single value, waits for the learned result, and terminates the
// cluster.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"paxosring/internal/config"
	"paxosring/internal/directory"
	"paxosring/internal/ids"

	"paxosring/internal/client"
)

var directoryPath string

var rootCmd = &cobra.Command{
	Use:   "clidriver <uid> <value> <desiredProposerIndex>",
	Short: "Submit one value to the cluster and print the learned result",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("clidriver: uid must be an integer: %w", err)
		}
		value := args[1]
		proposerIdx, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("clidriver: desiredProposerIndex must be an integer: %w", err)
		}

		dir, err := directory.Parse(directoryPath)
		if err != nil {
			return err
		}
		cfg := config.Load()

		c, err := client.New(ids.NodeID(uid), dir, cfg)
		if err != nil {
			return fmt.Errorf("clidriver: %w", err)
		}

		if err := c.Initialize(proposerIdx); err != nil {
			return err
		}
		result, err := c.Set(value)
		if err != nil {
			return err
		}
		fmt.Println(result)
		c.Cleanup()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&directoryPath, "directory", "d", envOr("DIRECTORY", "directory.txt"), "host directory file")
}

func envOr(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
