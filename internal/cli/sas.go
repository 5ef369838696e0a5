package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/altostore/altostore/storage"
)

func newSASCmd() *cobra.Command {
	var (
		services      string
		resourceTypes string
		permissions   string
		expiresIn     time.Duration
		expiry        string
		start         string
		protocol      string
		ipRange       string
		resourceURL   string
	)

	cmd := &cobra.Command{
		Use:   "sas",
		Short: "Generate an account SAS token",
		Long: `Generate an account shared access signature. The token is printed as a
query string; pass --url to get a complete pre-signed URL instead, ready for
"alto fetch" or any plain HTTP client.

Scope letters follow the service's conventions, e.g.
  --services b --resource-types co --permissions rl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cred *storage.Credentials
			var err error
			if viper.GetBool("emulator") {
				cred = storage.NewEmulatorCredentials()
			} else if cred, err = storage.NewCredentials(viper.GetString("account"), viper.GetString("key")); err != nil {
				return fmt.Errorf("set --account and --key, or ALTO_ACCOUNT and ALTO_KEY: %w", err)
			}

			opts := storage.AccountSASOptions{
				Services:      services,
				ResourceTypes: resourceTypes,
				Permissions:   permissions,
				Protocol:      protocol,
				IPRange:       ipRange,
			}
			if expiry != "" {
				if opts.Expiry, err = time.Parse(time.RFC3339, expiry); err != nil {
					return fmt.Errorf("parse --expiry: %w", err)
				}
			} else {
				opts.Expiry = time.Now().UTC().Add(expiresIn)
			}
			if start != "" {
				if opts.Start, err = time.Parse(time.RFC3339, start); err != nil {
					return fmt.Errorf("parse --start: %w", err)
				}
			}

			if resourceURL != "" {
				signed, err := cred.SignURL(resourceURL, opts)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), signed)
				return nil
			}

			q, err := cred.AccountSAS(opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), q.Encode())
			return nil
		},
	}

	cmd.Flags().StringVar(&services, "services", "b", "Services the token covers (b=blob, q=queue, t=table, f=file)")
	cmd.Flags().StringVar(&resourceTypes, "resource-types", "co", "Resource types (s=service, c=container, o=object)")
	cmd.Flags().StringVar(&permissions, "permissions", "r", "Permissions (r, w, d, l, a, c, u, p)")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", time.Hour, "Token lifetime from now")
	cmd.Flags().StringVar(&expiry, "expiry", "", "Absolute expiry (RFC 3339), overrides --expires-in")
	cmd.Flags().StringVar(&start, "start", "", "Optional start time (RFC 3339)")
	cmd.Flags().StringVar(&protocol, "protocol", "", "Restrict to protocol: https or https,http")
	cmd.Flags().StringVar(&ipRange, "ip", "", "Restrict to IP or IP range")
	cmd.Flags().StringVar(&resourceURL, "url", "", "Resource URL to sign into a complete pre-signed URL")
	return cmd
}
