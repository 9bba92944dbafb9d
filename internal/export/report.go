package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivlev/vidcanvas/internal/logging"
	"github.com/ivlev/vidcanvas/internal/system"
)

var reportStages = []string{StagePrepare, StageCapture, StageRecord, StageAssemble, StageTranscode, StageDeliver}

// Report renders the performance report printed with --stats.
func Report(res *Result, build string, host *system.HostStats) string {
	var b strings.Builder
	b.WriteString("--- [PERFORMANCE REPORT] ---\n")
	fmt.Fprintf(&b, "Build: %s\n", build)
	fmt.Fprintf(&b, "Output: %s (%s)\n", res.Path, system.FormatBytes(uint64(res.Bytes)))
	fmt.Fprintf(&b, "Total Time: %.2fs\n", res.Total.Seconds())
	for _, st := range reportStages {
		if d, ok := res.Stages[st]; ok {
			fmt.Fprintf(&b, "%-10s %.2fs\n", strings.ToUpper(st[:1])+st[1:]+":", d.Seconds())
		}
	}
	fmt.Fprintf(&b, "Frames: %d (%d duplicated)\n", res.Frames, res.Duplicated)
	fmt.Fprintf(&b, "Audio Tracks: %d\n", res.AudioTrack)
	if host != nil {
		fmt.Fprintf(&b, "Host: %s\n", host)
	}
	b.WriteString("----------------------------\n")
	return b.String()
}

// ShowStats prints the report and appends a one-line entry to
// benchmark.log next to the artifact.
func ShowStats(ctx context.Context, res *Result, build string) {
	var host *system.HostStats
	if hs, err := system.CollectHostStats(ctx, 200*time.Millisecond); err == nil {
		host = &hs
	} else {
		logging.Warn("host stats unavailable: %v", err)
	}
	fmt.Print(Report(res, build, host))

	entry := fmt.Sprintf("[%s] Build: %s | Output: %s | Frames: %d | Duplicated: %d | Total: %.2fs | Record: %.2fs | Transcode: %.2fs\n",
		time.Now().Format("2006-01-02 15:04:05"),
		build,
		filepath.Base(res.Path),
		res.Frames,
		res.Duplicated,
		res.Total.Seconds(),
		res.Stages[StageRecord].Seconds(),
		res.Stages[StageTranscode].Seconds(),
	)
	logPath := filepath.Join(filepath.Dir(res.Path), "benchmark.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logging.Warn("could not write %s: %v", logPath, err)
		return
	}
	defer f.Close()
	f.WriteString(entry)
}
