package birthengine

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFadeVolume(t *testing.T) {
	vol, done := FadeVolume(time.Minute, false, 0)
	assert.Equal(t, 1.0, vol)
	assert.False(t, done)

	vol, _ = FadeVolume(fadeDuration/2, false, 0)
	assert.InDelta(t, 0.5, vol, 1e-9, "fades out at the end of a track")

	vol, _ = FadeVolume(-time.Second, false, 0)
	assert.Zero(t, vol)

	vol, done = FadeVolume(time.Minute, true, fadeDuration/4)
	assert.InDelta(t, 0.75, vol, 1e-9, "shutdown fade")
	assert.False(t, done)

	_, done = FadeVolume(time.Minute, true, fadeDuration)
	assert.True(t, done)
}

func TestScaleSamples(t *testing.T) {
	buf := make([]byte, 6)
	for i, s := range []int16{1000, -2000, 32767} {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	ScaleSamples(buf, 0.5)

	var got []int16
	for i := 0; i < len(buf); i += 2 {
		got = append(got, int16(binary.LittleEndian.Uint16(buf[i:])))
	}
	assert.Equal(t, []int16{500, -1000, 16383}, got)
}

func TestTrackInfo(t *testing.T) {
	song, artist, extra := TrackInfo("audio", filepath.Join("audio", "Sleep Song - The Band.mp3"))
	assert.Equal(t, "Sleep Song", song)
	assert.Equal(t, "The Band", artist)
	assert.Empty(t, extra)

	song, artist, extra = TrackInfo("audio", filepath.Join("audio", "Kevin MacLeod", "Ambience.mp3"))
	assert.Equal(t, "Ambience", song)
	assert.Empty(t, artist)
	assert.Equal(t, "Kevin MacLeod", extra)
}

func TestFindTracks(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	for _, name := range []string{"a.mp3", "b.MP3", "notes.txt", filepath.Join("sub", "c.mp3")} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	tracks, err := FindTracks(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.mp3"),
		filepath.Join(dir, "b.MP3"),
		filepath.Join(dir, "sub", "c.mp3"),
	}, tracks)

	_, err = FindTracks(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
