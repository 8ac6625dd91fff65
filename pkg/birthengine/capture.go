package birthengine

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// CaptureFileName names a captured frame.
func CaptureFileName(suffix string, at time.Time) string {
	return fmt.Sprintf("birth-%s-%s.png", at.Format("20060102-150405"), suffix)
}

func (e *Engine) captureFrame(img *ebiten.Image, suffix string, at time.Time) {
	if e.opts.FrameCaptureDir == "" {
		e.log.Warn().Msg("frame capture requested without a capture directory")
		return
	}
	// Pixels must be read on the game goroutine; encoding happens off it.
	rgba := image.NewRGBA(img.Bounds())
	img.ReadPixels(rgba.Pix)
	path := filepath.Join(e.opts.FrameCaptureDir, CaptureFileName(suffix, at))

	go func() {
		if err := WritePNG(path, rgba); err != nil {
			e.log.Error().Err(err).Str("path", path).Msg("frame capture failed")
			return
		}
		e.log.Info().Str("path", path).Msg("captured frame")
	}()
}

// WritePNG encodes img to path, creating the directory if needed.
func WritePNG(path string, img image.Image) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create capture directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create capture file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close capture file: %w", cerr)
		}
	}()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode capture: %w", err)
	}
	return nil
}
