package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [config]",
	Short: "Check a hierarchy configuration file.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPathFromEnv("")
		if len(args) == 1 {
			path = args[0]
		}

		if path == "" {
			return fmt.Errorf("no configuration file given")
		}

		cfg, err := loadConfig(path)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(),
			"%s: %d levels, block size %d, %s\n",
			path, len(cfg.Levels), cfg.BlockSize, cfg.Policy)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
