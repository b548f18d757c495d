package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	goSocialAuth "github.com/MrEthical07/goSocialAuth"
	"github.com/MrEthical07/goSocialAuth/internal/telemetry"
)

// NewTokenCmd returns the command that signs an access token for an existing
// user. It is meant for local testing against a running deployment's stores.
func NewTokenCmd() *cobra.Command {
	var providerName string

	cmd := &cobra.Command{
		Use:   "token <username>",
		Short: "Sign an access token for an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srvCfg, err := LoadServerConfig()
			if err != nil {
				return err
			}
			cfg, err := goSocialAuth.LoadConfigFromEnv()
			if err != nil {
				return err
			}
			cfg.Metrics.Enabled = false
			cfg.Audit.Enabled = false

			logger := telemetry.SetupLogger(srvCfg.LogLevel, srvCfg.LogFormat, os.Stderr)
			rt, err := openRuntime(cmd.Context(), srvCfg, logger, io.Discard)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			engine, err := buildEngine(rt, cfg, nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			token, err := engine.IssueToken(cmd.Context(), args[0], providerName)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&providerName, "provider", "facebook", "provider recorded in the token")
	return cmd
}
