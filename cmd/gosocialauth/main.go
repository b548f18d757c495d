// gosocialauth runs the social sign-in service.
//
// Usage:
//
//	gosocialauth <command> [flags]
//
// Commands:
//
//	serve      Run the HTTP API
//	migrate    Apply the identity store schema
//	token      Sign an access token for an existing user
//	providers  List configured providers
//
// Configuration is read from GOSOCIALAUTH_* environment variables.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goSocialAuth/internal/cli"
)

// version is set with ldflags at build time.
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "gosocialauth",
		Short:         "Social sign-in over OAuth2 providers",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		cli.NewServeCmd(),
		cli.NewMigrateCmd(),
		cli.NewTokenCmd(),
		cli.NewProvidersCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
