package birthengine

import (
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dhowden/tag"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/go-mp3"
	"github.com/rs/zerolog"
	"github.com/sudorandom/birth-stream/pkg/logging"
)

const (
	SampleRate   = 44100
	fadeDuration = 5 * time.Second
	retryDelay   = 5 * time.Second
)

type AudioMetadataCallback func(song, artist, extra string)

// AudioPlayer loops random MP3s from AudioDir as ambient background music.
// With a Writer set it streams raw s16le PCM (for ffmpeg) instead of
// playing through the local audio device.
type AudioPlayer struct {
	AudioDir   string
	Writer     io.Writer
	OnMetadata AudioMetadataCallback

	log          zerolog.Logger
	audioContext *audio.Context

	stopOnce sync.Once
	stopChan chan struct{}
	stopped  chan struct{}
}

func NewAudioPlayer(dir string, writer io.Writer, onMetadata AudioMetadataCallback) *AudioPlayer {
	return &AudioPlayer{
		AudioDir:   dir,
		Writer:     writer,
		OnMetadata: onMetadata,
		log:        logging.Component("audio"),
		stopChan:   make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Shutdown fades out the current track and waits for the player to exit.
func (p *AudioPlayer) Shutdown() {
	p.log.Info().Msg("audio player fading out")
	p.stopOnce.Do(func() { close(p.stopChan) })
	<-p.stopped
	p.log.Info().Msg("audio player stopped")
}

func (p *AudioPlayer) stopping() bool {
	select {
	case <-p.stopChan:
		return true
	default:
		return false
	}
}

// wait sleeps for d and reports false if the player is stopping.
func (p *AudioPlayer) wait(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-p.stopChan:
		return false
	}
}

func (p *AudioPlayer) Start() {
	go func() {
		defer close(p.stopped)
		for !p.stopping() {
			tracks, err := FindTracks(p.AudioDir)
			if err != nil || len(tracks) == 0 {
				p.log.Warn().Err(err).Str("dir", p.AudioDir).Msg("no playable mp3 files")
				if !p.wait(retryDelay) {
					return
				}
				continue
			}

			path := tracks[rand.Intn(len(tracks))]
			if err := p.playTrack(path); err != nil {
				p.log.Error().Err(err).Str("track", path).Msg("playback failed")
				if !p.wait(retryDelay) {
					return
				}
			}
		}
	}()
}

// FindTracks lists the mp3 files below dir.
func FindTracks(dir string) ([]string, error) {
	var tracks []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(d.Name()), ".mp3") {
			tracks = append(tracks, path)
		}
		return nil
	})
	return tracks, err
}

// TrackInfo derives display metadata from a file name like
// "Song - Artist.mp3". The parent directory, when not the root, is credited
// as extra.
func TrackInfo(root, path string) (song, artist, extra string) {
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	song = title
	if parts := strings.SplitN(title, " - ", 2); len(parts) == 2 {
		song, artist = parts[0], parts[1]
	}
	if parent := filepath.Dir(path); parent != filepath.Clean(root) && parent != "." {
		extra = filepath.Base(parent)
	}
	return song, artist, extra
}

// FadeVolume is the gain for a track with remaining playtime, optionally
// fading out for a shutdown that started stopElapsed ago. done reports that
// the shutdown fade has finished.
func FadeVolume(remaining time.Duration, stopping bool, stopElapsed time.Duration) (vol float64, done bool) {
	vol = 1
	if remaining <= fadeDuration {
		vol = float64(remaining) / float64(fadeDuration)
	}
	if stopping {
		stopVol := 1 - float64(stopElapsed)/float64(fadeDuration)
		if stopVol <= 0 {
			return 0, true
		}
		vol = min(vol, stopVol)
	}
	return max(vol, 0), false
}

// ScaleSamples applies gain to little-endian signed 16-bit samples in place.
func ScaleSamples(buf []byte, vol float64) {
	if vol >= 1 {
		return
	}
	for i := 0; i+1 < len(buf); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(buf[i:]))
		binary.LittleEndian.PutUint16(buf[i:], uint16(int16(float64(sample)*vol)))
	}
}

func (p *AudioPlayer) playTrack(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	song, artist, extra := TrackInfo(p.AudioDir, path)
	if m, err := tag.ReadFrom(f); err == nil && m.Title() != "" {
		song, artist = m.Title(), m.Artist()
	}
	if p.OnMetadata != nil {
		p.OnMetadata(song, artist, extra)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	d, err := mp3.NewDecoder(f)
	if err != nil {
		return err
	}
	duration := time.Duration(d.Length()) * time.Second / time.Duration(d.SampleRate()*4)

	if p.Writer != nil {
		return p.stream(d, path, duration)
	}
	return p.play(d, path, duration)
}

func (p *AudioPlayer) stream(d *mp3.Decoder, path string, duration time.Duration) error {
	p.log.Info().Str("track", path).Msg("streaming audio")
	buf := make([]byte, 8192)
	start := time.Now()
	var stoppingAt time.Time

	for {
		if p.stopping() && stoppingAt.IsZero() {
			stoppingAt = time.Now()
		}
		n, err := d.Read(buf)
		if n > 0 {
			vol, done := FadeVolume(duration-time.Since(start), !stoppingAt.IsZero(), time.Since(stoppingAt))
			if done {
				return nil
			}
			ScaleSamples(buf[:n], vol)
			if _, werr := p.Writer.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (p *AudioPlayer) play(d *mp3.Decoder, path string, duration time.Duration) error {
	if p.audioContext == nil {
		p.audioContext = audio.CurrentContext()
		if p.audioContext == nil {
			p.audioContext = audio.NewContext(SampleRate)
		}
	}
	player, err := p.audioContext.NewPlayer(d)
	if err != nil {
		return err
	}
	defer player.Close()
	player.Play()
	p.log.Info().Str("track", path).Msg("playing")

	start := time.Now()
	var stoppingAt time.Time
	for player.IsPlaying() {
		if p.stopping() && stoppingAt.IsZero() {
			stoppingAt = time.Now()
		}
		remaining := duration - time.Since(start)
		vol, done := FadeVolume(remaining, !stoppingAt.IsZero(), time.Since(stoppingAt))
		if done || remaining <= 0 {
			break
		}
		player.SetVolume(vol)
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}
