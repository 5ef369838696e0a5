package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/altostore/altostore/transfer"
)

func newUploadCmd() *cobra.Command {
	var (
		contentType   string
		pageBlob      bool
		makeContainer bool
	)

	cmd := &cobra.Command{
		Use:   "upload <file> <container> [blob-name]",
		Short: "Upload a file as a block or page blob",
		Long: `Upload a file. Payloads above the single-shot threshold are staged as
blocks by parallel workers and committed in original order; smaller ones go
up in one request. The blob name defaults to the file's base name.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, container := args[0], args[1]
			name := filepath.Base(path)
			if len(args) == 3 {
				name = args[2]
			}

			blobClient, err := buildBlobClient()
			if err != nil {
				return err
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return err
			}

			ctx := GetContext()
			if makeContainer {
				if err := blobClient.CreateContainer(ctx, container); err != nil {
					return err
				}
			}

			concurrency, chunkSize := transferTuning()
			tracker := transfer.NewSpeedTracker(info.Size())
			progress, progressDone := newTransferProgress(name, tracker)

			u := &transfer.Uploader{
				Blob:        blobClient,
				Concurrency: concurrency,
				ChunkSize:   chunkSize,
				Tracker:     tracker,
				Progress:    progress,
				Log:         logger,
			}

			var res *transfer.Result
			if pageBlob {
				res, err = u.UploadPages(ctx, container, name, f, info.Size(), contentType)
			} else {
				res, err = u.Upload(ctx, container, name, f, info.Size(), contentType)
			}
			progressDone()
			if err != nil {
				return err
			}

			logger.Info().
				Str("blob", container+"/"+name).
				Int64("bytes", res.Bytes).
				Int("chunks", res.Chunks).
				Str("md5", res.MD5).
				Float64("bytes_per_sec", tracker.AverageSpeed()).
				Msg("upload complete")
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s\t%d bytes\tmd5:%s\n", container, name, res.Bytes, res.MD5)
			return nil
		},
	}

	cmd.Flags().StringVar(&contentType, "content-type", "", "Content-Type to store with the blob")
	cmd.Flags().BoolVar(&pageBlob, "page", false, "Upload as a page blob (size must be 512-byte aligned)")
	cmd.Flags().BoolVar(&makeContainer, "create-container", false, "Create the container if it does not exist")
	return cmd
}
