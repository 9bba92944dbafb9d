package system

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ivlev/vidcanvas/internal/logging"
)

// Extension groups used for latest-file discovery.
var (
	ImageExtensions   = []string{".jpg", ".jpeg", ".png", ".webp"}
	VideoExtensions   = []string{".mp4", ".mov", ".mkv", ".webm"}
	AudioExtensions   = []string{".mp3", ".wav", ".m4a", ".ogg", ".aac", ".flac"}
	PDFExtensions     = []string{".pdf"}
	ProjectExtensions = []string{".yaml", ".yml"}
)

// InitResourceLimits raises the open file limit. Export keeps ffmpeg pipes
// and decoded media open at the same time.
func InitResourceLimits() {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logging.Warn("could not read open file limit: %v", err)
		return
	}

	want := uint64(2048)
	if rLimit.Cur >= want {
		return
	}
	rLimit.Cur = want
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logging.Warn("could not raise open file limit: %v", err)
		return
	}
	logging.Debug("open file limit raised to %d", rLimit.Cur)
}

// FindLatest returns the most recently modified file in dir whose name ends
// with one of exts (case-insensitive). If path is a file, its directory is
// searched.
func FindLatest(path string, exts ...string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	dir := path
	if !fi.IsDir() {
		dir = filepath.Dir(path)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time
	for _, f := range files {
		if f.IsDir() || !hasExt(f.Name(), exts) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no %s files found in %s", strings.Join(exts, "/"), dir)
	}
	return latestFile, nil
}

func hasExt(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// MediaInfo is what ffprobe reports about a media file.
type MediaInfo struct {
	Width    int
	Height   int
	Duration time.Duration
}

// ProbeMedia reads the first video stream size (if any) and the container
// duration of path.
func ProbeMedia(ctx context.Context, ffprobe, path string) (MediaInfo, error) {
	cmd := exec.CommandContext(ctx, ffprobe,
		"-v", "error",
		"-show_entries", "stream=width,height:format=duration",
		"-of", "default=noprint_wrappers=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return MediaInfo{}, fmt.Errorf("ffprobe %s: %w", filepath.Base(path), err)
	}
	return parseProbe(out)
}

// parseProbe reads ffprobe's key=value output. The first positive width and
// height win; audio streams report N/A.
func parseProbe(out []byte) (MediaInfo, error) {
	var info MediaInfo
	sawDuration := false
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, val, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "width":
			if n, err := strconv.Atoi(val); err == nil && info.Width == 0 {
				info.Width = n
			}
		case "height":
			if n, err := strconv.Atoi(val); err == nil && info.Height == 0 {
				info.Height = n
			}
		case "duration":
			if sec, err := strconv.ParseFloat(val, 64); err == nil {
				info.Duration = time.Duration(sec * float64(time.Second))
				sawDuration = true
			}
		}
	}
	if !sawDuration {
		return info, fmt.Errorf("ffprobe: no duration in output")
	}
	return info, nil
}

// CheckBinary resolves name on PATH.
func CheckBinary(name string) (string, error) {
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found: %w", name, err)
	}
	return p, nil
}

var (
	encoderOnce sync.Once
	encoderList string
)

// GetBestH264Encoder picks a hardware H.264 encoder when ffmpeg offers one.
// Priority: VideoToolbox (macOS), NVENC, then libx264.
func GetBestH264Encoder(ffmpeg string) string {
	encoderOnce.Do(func() {
		out, err := exec.Command(ffmpeg, "-hide_banner", "-encoders").CombinedOutput()
		if err == nil {
			encoderList = string(out)
		}
	})
	return pickEncoder(encoderList)
}

func pickEncoder(list string) string {
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(list, name) {
			return name
		}
	}
	return "libx264"
}
