package cli

import (
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/altostore/altostore/transfer"
)

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <signed-url> [dest]",
		Short: "Download an object from a pre-signed URL",
		Long: `Download the object behind a SAS-signed URL. No account credentials are
needed; the token in the query string is the whole authorization. With no
destination the object is streamed to stdout.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			signedURL := args[0]

			var out io.Writer = cmd.OutOrStdout()
			var f *os.File
			if len(args) == 2 {
				var err error
				if f, err = os.Create(args[1]); err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			// The object size is unknown until headers arrive, so the
			// bar runs in spinner mode counting bytes.
			if f != nil && term.IsTerminal(int(os.Stderr.Fd())) {
				bar := progressbar.DefaultBytes(-1, "fetch")
				out = io.MultiWriter(out, bar)
				defer bar.Finish()
			}

			n, err := transfer.FetchSignedURL(GetContext(), logger, signedURL, out)
			if err != nil {
				return err
			}
			logger.Info().Int64("bytes", n).Msg("fetch complete")
			return nil
		},
	}
	return cmd
}
