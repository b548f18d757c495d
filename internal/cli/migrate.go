package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goSocialAuth/internal/telemetry"
)

// NewMigrateCmd returns the command that applies the identity store schema.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the identity store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadServerConfig()
			if err != nil {
				return err
			}
			if cfg.Store == StoreMemory {
				return errors.New("the memory store has no schema; set GOSOCIALAUTH_STORE to sqlite or postgres")
			}

			logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
			rt := &runtime{logger: logger}
			defer func() { _ = rt.Close() }()

			if _, err := openStore(cmd.Context(), rt, cfg, true); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", cfg.Store)
			return nil
		},
	}
}
