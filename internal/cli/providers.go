package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	goSocialAuth "github.com/MrEthical07/goSocialAuth"
	"github.com/MrEthical07/goSocialAuth/provider"
)

// NewProvidersCmd returns the command that lists configured providers.
func NewProvidersCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List providers with credentials configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := goSocialAuth.LoadConfigFromEnv()
			if err != nil {
				return err
			}
			callbacks := provider.CallbackURIs{BaseURL: cfg.BaseURL}
			return printProviders(cmd, cfg.EnabledProviders(), callbacks, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

type providerRow struct {
	Name     string   `json:"name"`
	Callback string   `json:"callback"`
	Scopes   []string `json:"scopes"`
}

func printProviders(cmd *cobra.Command, enabled []provider.Config, callbacks provider.CallbackURIs, jsonOutput bool) error {
	rows := make([]providerRow, len(enabled))
	for i, p := range enabled {
		rows[i] = providerRow{Name: p.Name, Callback: callbacks.CallbackURI(p.Name), Scopes: p.Scopes}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "No providers configured.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCALLBACK")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\n", r.Name, r.Callback)
	}
	return w.Flush()
}
