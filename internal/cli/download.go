package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/altostore/altostore/transfer"
)

func newDownloadCmd() *cobra.Command {
	var skipVerify bool

	cmd := &cobra.Command{
		Use:   "download <container> <blob> [dest]",
		Short: "Download a blob with parallel ranged reads",
		Long: `Download a blob. Ranges are fetched by parallel workers and written at
their offsets as they arrive; the assembled file's MD5 is checked against the
digest the service reports. The destination defaults to the blob's base name
in the current directory.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, name := args[0], args[1]
			dest := filepath.Base(name)
			if len(args) == 3 {
				dest = args[2]
			}

			blobClient, err := buildBlobClient()
			if err != nil {
				return err
			}

			ctx := GetContext()
			props, err := blobClient.GetProperties(ctx, container, name)
			if err != nil {
				return err
			}

			concurrency, chunkSize := transferTuning()
			tracker := transfer.NewSpeedTracker(props.ContentLength)
			progress, progressDone := newTransferProgress(name, tracker)

			d := &transfer.Downloader{
				Blob:        blobClient,
				Concurrency: concurrency,
				ChunkSize:   chunkSize,
				SkipVerify:  skipVerify,
				Tracker:     tracker,
				Progress:    progress,
				Log:         logger,
			}
			res, err := d.DownloadFile(ctx, container, name, dest)
			progressDone()
			if err != nil {
				return err
			}

			logger.Info().
				Str("blob", container+"/"+name).
				Str("dest", dest).
				Int64("bytes", res.Bytes).
				Str("md5", res.MD5).
				Float64("bytes_per_sec", tracker.AverageSpeed()).
				Msg("download complete")
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d bytes\tmd5:%s\n", dest, res.Bytes, res.MD5)
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "Skip whole-file MD5 verification")
	return cmd
}
