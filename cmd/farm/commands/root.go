package commands

import (
	"fmt"

	"steam-trade-farm/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	envFile string
	cfg     *config.Config
)

// Execute runs the farm CLI. Without a subcommand it starts the trade cycle.
func Execute() error {
	root := &cobra.Command{
		Use:          "farm",
		Short:        "Keep two accounts trading one item back and forth",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Overload(envFile); err != nil {
					return fmt.Errorf("read %s: %w", envFile, err)
				}
			}
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFarm(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file read before the environment (default .env)")

	root.AddCommand(runCmd(), checkConfigCmd())
	return root.Execute()
}
