package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	cause := errors.New("ffmpeg exited with status 1")
	err := fmt.Errorf("export: %w", New(CodeTranscodeFailure, "transcode", cause))

	assert.True(t, errors.Is(err, ErrTranscodeFailure))
	assert.False(t, errors.Is(err, ErrCaptureFailure))
	assert.True(t, errors.Is(err, cause), "cause must stay reachable")
	assert.Equal(t, CodeTranscodeFailure, CodeOf(err))
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"bare", ErrExportInProgress, "EXPORT_IN_PROGRESS"},
		{"op", New(CodeCaptureFailure, "capture", nil), "capture: CAPTURE_FAILURE"},
		{
			"element",
			ForElement(CodeMissingRenderTarget, "rebuild", "el-1", errors.New("source video-0 not registered")),
			"rebuild: MISSING_RENDER_TARGET (element=el-1): source video-0 not registered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.Equal(t, Code(""), CodeOf(nil))
}
