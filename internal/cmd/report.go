package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/offlinefirst/behavioral-capture/pkg/behavior"
	"github.com/offlinefirst/behavioral-capture/pkg/capture"
	"github.com/offlinefirst/behavioral-capture/pkg/contextcache"
)

func printSummary(stdout io.Writer, stats behavior.Statistics) {
	fmt.Fprintf(stdout, "  Total events: %s\n", humanize.Comma(int64(stats.Total)))
	fmt.Fprintf(stdout, "  Pointer moves: %s\n", humanize.Comma(int64(stats.PointerMoves)))
	fmt.Fprintf(stdout, "  Clicks: %s\n", humanize.Comma(int64(stats.ButtonDowns)))
	fmt.Fprintf(stdout, "  Key presses: %s\n", humanize.Comma(int64(stats.KeyDowns)))
	fmt.Fprintf(stdout, "  Mean pointer speed: %s px/s\n", humanize.CommafWithDigits(stats.MeanSpeed, 2))
	if stats.HasLatest {
		fmt.Fprintf(stdout, "  Active app: %s (%s background processes)\n", stats.LatestActiveApp, humanize.Comma(int64(stats.LatestBackgroundApps)))
	}
	if span := stats.SpanMillis(); span > 0 {
		fmt.Fprintf(stdout, "  Span: %s\n", (time.Duration(span) * time.Millisecond).String())
	}
}

func printCaptureStatistics(stdout io.Writer, stats capture.Statistics, path, termination string) {
	fmt.Fprintf(stdout, "Capture statistics (termination: %s)\n", termination)
	printSummary(stdout, stats.Statistics)
	p := stats.Pipeline
	fmt.Fprintf(stdout, "  Pipeline: received %s, sampled out %s, stationary %s, filtered %s, paused %s\n",
		humanize.Comma(int64(p.Received)), humanize.Comma(int64(p.SampledOut)), humanize.Comma(int64(p.Stationary)),
		humanize.Comma(int64(p.Filtered)), humanize.Comma(int64(p.PausedDrops)))
	fmt.Fprintf(stdout, "  Retained: %s of %s (%s evicted)\n", humanize.Comma(int64(stats.Retained)),
		humanize.Comma(int64(stats.Capacity)), humanize.Comma(int64(stats.Evicted)))
	fmt.Fprintf(stdout, "  Persisted: %s rows in %s flushes (%s dropped) -> %s%s\n",
		humanize.Comma(int64(stats.Persist.Written)), humanize.Comma(int64(stats.Persist.Flushes)),
		humanize.Comma(int64(stats.Persist.Dropped)), path, fileSize(path))
}

func printLiveStatistics(stdout io.Writer, stats capture.Statistics, state string, snap contextcache.Snapshot) {
	refresh := "stale"
	if stats.ContextRefreshing {
		refresh = "refreshing"
	}
	fmt.Fprintf(stdout, "[live] state=%s recorded=%s persisted=%s pending=%s speed=%s px/s app=%s background=%s context=%s\n",
		state, humanize.Comma(int64(stats.Pipeline.Recorded)), humanize.Comma(int64(stats.Persist.Written)),
		humanize.Comma(int64(stats.Persist.Pending)), humanize.CommafWithDigits(stats.MeanSpeed, 2),
		snap.ActiveApp, humanize.Comma(int64(snap.BackgroundAppCount)), refresh)
}

func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return " (" + humanize.Bytes(uint64(info.Size())) + ")"
}
