package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualityFor(t *testing.T) {
	assert.Equal(t, quality{1920, 1080, "9000k", "15000k"}, qualityFor("1080p"))
	assert.Equal(t, 3840, qualityFor("4k").Width)
	assert.Equal(t, 1080, qualityFor("unknown").Height)
}

func TestResolveOutput(t *testing.T) {
	assert.Equal(t, "out.mp4", resolveOutput("out.mp4", "key"))
	assert.Equal(t, "rtmp://a.rtmp.youtube.com/live2/key", resolveOutput("", "key"))
	assert.Equal(t, "test.flv", resolveOutput("", ""))
}

func TestDetectEncoderSoftware(t *testing.T) {
	enc := detectEncoder(true, "/dev/dri/renderD128")
	assert.Equal(t, "libx264", enc.Codec)
	assert.Empty(t, enc.GlobalArgs)
}

func TestDetectEncoderMissingDevice(t *testing.T) {
	enc := detectEncoder(false, "/nonexistent/renderD999")
	if enc.Codec == "h264_videotoolbox" {
		t.Skip("darwin always uses videotoolbox")
	}
	assert.Equal(t, "libx264", enc.Codec)
}

func TestFFmpegArgsSoftware(t *testing.T) {
	args := ffmpegArgs(qualityFor("1080p"), encoder{Codec: "libx264"}, "rtmp://example/live", false)
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-video_size 1920x1080")
	assert.Contains(t, joined, "-framerate 30 -i pipe:0")
	assert.Contains(t, joined, "-f s16le -ar 44100 -ac 2 -i pipe:3")
	assert.Contains(t, joined, "-pix_fmt yuv420p")
	assert.Contains(t, joined, "-preset veryfast")
	assert.Contains(t, joined, "-f flv")
	assert.Equal(t, "rtmp://example/live", args[len(args)-1])
	assert.NotContains(t, joined, "-loglevel")
}

func TestFFmpegArgsVAAPI(t *testing.T) {
	enc := encoder{
		Codec:      "h264_vaapi",
		GlobalArgs: []string{"-vaapi_device", "/dev/dri/renderD128"},
		OutputArgs: []string{"-vf", "format=nv12,hwupload"},
	}
	args := ffmpegArgs(qualityFor("4k"), enc, "out.mp4", true)
	joined := strings.Join(args, " ")

	assert.Equal(t, []string{"-loglevel", "debug", "-vaapi_device", "/dev/dri/renderD128"}, args[:4])
	assert.Contains(t, joined, "-video_size 3840x2160")
	assert.Contains(t, joined, "-b:v 18000k")
	assert.NotContains(t, joined, "-pix_fmt")
	assert.NotContains(t, joined, "-preset")
	assert.NotContains(t, joined, "-f flv")
	assert.Contains(t, joined, "-vf format=nv12,hwupload")
}

func TestRunReturnsConfigErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theme:\n  land: blue\n"), 0o644))
	cli.Config = path
	t.Cleanup(func() { cli.Config = "" })

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "theme.land")
}
