package cli

import (
	"os"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/altostore/altostore/transfer"
)

// newTransferProgress returns a per-chunk byte callback and a completion
// function for a segmented transfer. On a terminal it renders an mpb bar; in
// a pipe or CI it falls back to periodic log lines from the tracker.
func newTransferProgress(label string, tracker *transfer.SpeedTracker) (progress func(int64), done func()) {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return logProgress(label, tracker)
	}

	width := 64
	if w, _, err := term.GetSize(int(os.Stderr.Fd())); err == nil && w > 40 && w < 120 {
		width = w - 30
	}

	p := mpb.New(mpb.WithOutput(os.Stderr), mpb.WithWidth(width))
	bar := p.New(tracker.TotalSize(),
		mpb.BarStyle().Lbound("[").Filler("=").Tip(">").Padding(" ").Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(label+" "),
			decor.CountersKibiByte("% .1f / % .1f"),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncSpace),
			decor.Name(" "),
			decor.AverageSpeed(decor.SizeB1024(0), "% .1f"),
		),
	)

	return func(n int64) { bar.IncrInt64(n) }, func() {
		// Abort instead of hanging if a failed transfer left the bar short.
		if !bar.Completed() {
			bar.Abort(false)
		}
		p.Wait()
	}
}

// logProgress reports completion every few seconds through the logger, which
// keeps CI output readable where a redrawing bar would not be.
func logProgress(label string, tracker *transfer.SpeedTracker) (func(int64), func()) {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				logger.Info().
					Str("transfer", label).
					Float64("percent", tracker.CompletePercent(1)).
					Float64("bytes_per_sec", tracker.AverageSpeed()).
					Msg("progress")
			case <-stop:
				return
			}
		}
	}()
	return func(int64) {}, func() { close(stop) }
}
