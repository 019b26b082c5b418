// Command condriver runs one consensus process: it takes part in leader
// election, receives its role assignment, and runs the Paxos Proposer,
// Acceptor, or Learner state machine until TERMINATE arrives.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"paxosring/internal/config"
	"paxosring/internal/directory"
	"paxosring/internal/ids"
	"paxosring/internal/node"
)

var directoryPath string

var rootCmd = &cobra.Command{
	Use:   "condriver <uid>",
	Short: "Run one consensus (proposer/acceptor/learner) node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("condriver: uid must be an integer: %w", err)
		}

		dir, err := directory.Parse(directoryPath)
		if err != nil {
			return err
		}
		cfg := config.Load()

		n, err := node.New(ids.NodeID(uid), dir, cfg)
		if err != nil {
			return fmt.Errorf("condriver: %w", err)
		}
		n.Start()
		n.Wait()
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
