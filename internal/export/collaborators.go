package export

import (
	"context"
	"image"
	"time"

	"github.com/ivlev/vidcanvas/internal/config"
)

// AudioTrack is one audio element routed into the recording. The source
// plays from its beginning at Offset on the timeline for Length.
type AudioTrack struct {
	ElementID string
	Path      string
	Offset    time.Duration
	Length    time.Duration
}

// Recorder starts a recording of captured frames mixed with audio tracks.
type Recorder interface {
	Start(ctx context.Context, p config.RecordParams, tracks []AudioTrack) (Recording, error)
}

// Recording is a running recording. The intermediate container arrives as
// chunks; Stop returns all of them once the recorder has flushed.
type Recording interface {
	WriteFrame(img *image.RGBA) error
	Stop() ([][]byte, error)
	// Abort discards everything recorded so far.
	Abort()
}

// Transcoder converts a recording between containers. It works on named
// buffers in its own workspace.
type Transcoder interface {
	Load(ctx context.Context) error
	WriteFile(name string, data []byte) error
	Exec(ctx context.Context, args ...string) error
	ReadFile(name string) ([]byte, error)
	Close() error
}
