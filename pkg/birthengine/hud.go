package birthengine

import (
	"fmt"
	"image/color"
	"math"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/sudorandom/birth-stream/pkg/geodata"
	"github.com/sudorandom/birth-stream/pkg/insights"
	"github.com/sudorandom/birth-stream/pkg/sim"
)

const (
	headerTitle = "MOTHER & CHILD CARE | VITAL STATISTICS"
	footerNote  = "Interactive TV dashboard optimized for large displays. Live estimates based on UN Population Division projections."
)

// hud holds per-frame layout values scaled to the surface height.
type hud struct {
	e      *Engine
	screen *ebiten.Image
	w, h   float64
	s      float64
	margin float64
	now    time.Time
}

func (e *Engine) drawHUD(screen *ebiten.Image, now time.Time) {
	if e.fontSource == nil || e.monoSource == nil {
		return
	}
	w, h := float64(screen.Bounds().Dx()), float64(screen.Bounds().Dy())
	s := h / 1080
	u := &hud{e: e, screen: screen, w: w, h: h, s: s, margin: 48 * s, now: now}

	snap := e.sim.Stats.Snapshot()
	y := u.drawHeader(snap)
	y = u.drawInsights(y + 24*s)
	y = u.drawSamples(y + 24*s)
	u.drawSelected(y + 24*s)

	u.drawClock(snap)
	u.drawTelemetry(e.sim.State.Log())
	u.drawGeoState(e.sim.Geo.State())
	u.drawLegend()
	u.drawNowPlaying()
}

func (u *hud) face(size float64) *text.GoTextFace {
	return &text.GoTextFace{Source: u.e.fontSource, Size: size * u.s}
}

func (u *hud) mono(size float64) *text.GoTextFace {
	return &text.GoTextFace{Source: u.e.monoSource, Size: size * u.s}
}

func (u *hud) text(str string, face *text.GoTextFace, x, y float64, c color.Color, alpha float32) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(c)
	op.ColorScale.ScaleAlpha(alpha)
	text.Draw(u.screen, str, face, op)
}

func (u *hud) textRight(str string, face *text.GoTextFace, right, y float64, c color.Color, alpha float32) {
	tw, _ := text.Measure(str, face, 0)
	u.text(str, face, right-tw, y, c, alpha)
}

// panel draws a translucent box with an accent bar and a small title.
func (u *hud) panel(x, y, w, h float64, title string, accent color.RGBA) {
	vector.DrawFilledRect(u.screen, float32(x), float32(y), float32(w), float32(h), ColorPanel, false)
	vector.StrokeRect(u.screen, float32(x), float32(y), float32(w), float32(h), 1, ColorPanelEdge, false)
	vector.DrawFilledRect(u.screen, float32(x), float32(y), float32(4*u.s), float32(28*u.s), accent, false)
	if title != "" {
		u.text(title, u.face(13), x+14*u.s, y+8*u.s, ColorMuted, 0.8)
	}
}

func (u *hud) drawHeader(snap sim.Snapshot) float64 {
	x, y := u.margin, u.margin
	u.text(headerTitle, u.face(16), x, y, u.e.opts.Theme.Flash, 0.9)
	y += 34 * u.s

	u.text("ESTIMATED BIRTHS TODAY", u.face(13), x, y, ColorMuted, 0.8)
	y += 22 * u.s
	u.text(sim.FormatTally(snap.Tally), u.mono(64), x, y, color.White, 1)
	y += 84 * u.s

	barW, barH := 460*u.s, 8*u.s
	u.text("DAY CYCLE", u.face(12), x, y, ColorMuted, 0.8)
	u.textRight(fmt.Sprintf("%d%%", snap.DayPercent), u.mono(12), x+barW, y, ColorMuted, 0.8)
	y += 20 * u.s
	vector.DrawFilledRect(u.screen, float32(x), float32(y), float32(barW), float32(barH), ColorPanelEdge, false)
	fill := barW * float64(snap.DayPercent) / 100
	vector.DrawFilledRect(u.screen, float32(x), float32(y), float32(fill), float32(barH), u.e.opts.Theme.Flash, false)
	return y + barH
}

func (u *hud) drawClock(snap sim.Snapshot) {
	boxW, boxH := 200*u.s, 78*u.s
	x, y := u.w-u.margin-boxW, u.margin
	u.panel(x, y, boxW, boxH, "LOCAL TIME", u.e.opts.Theme.Flash)
	u.textRight(snap.Clock, u.mono(30), x+boxW-14*u.s, y+32*u.s, color.White, 1)
}

// drawTelemetry lists the recent events, fading older entries.
func (u *hud) drawTelemetry(entries []sim.EventLogEntry) {
	boxW := 320 * u.s
	rowH := 46 * u.s
	boxH := 40*u.s + rowH*float64(sim.MaxLogEntries)
	x, y := u.w-u.margin-boxW, u.margin+100*u.s
	u.panel(x, y, boxW, boxH, "LIVE TELEMETRY", ColorHigh)

	ry := y + 40*u.s
	for i, entry := range entries {
		alpha := float32(1 - float64(i)*0.2)
		vector.DrawFilledCircle(u.screen, float32(x+20*u.s), float32(ry+12*u.s), float32(4*u.s), u.e.opts.Theme.Flash, true)
		u.text("BIRTH DETECTED", u.face(10), x+34*u.s, ry, u.e.opts.Theme.Flash, alpha)
		u.text(truncate(entry.Name, 24), u.face(15), x+34*u.s, ry+16*u.s, color.White, alpha)
		u.textRight(entry.Time, u.mono(12), x+boxW-14*u.s, ry+18*u.s, ColorMuted, alpha)
		ry += rowH
	}
}

func severityColor(s insights.Severity) color.RGBA {
	switch s {
	case insights.SeverityHigh:
		return ColorHigh
	case insights.SeverityMedium:
		return color.RGBA{251, 146, 60, 255}
	}
	return ColorModerate
}

func (u *hud) drawInsights(y float64) float64 {
	if u.e.sim.Insights == nil {
		return y
	}
	x, boxW := u.margin, 460*u.s
	list, loading := u.e.sim.Insights.Result()
	body := u.face(13)
	lineH := 18 * u.s

	type block struct {
		title string
		lines []string
		color color.RGBA
	}
	var blocks []block
	for _, in := range list {
		blocks = append(blocks, block{in.Title, wrapText(in.Content, body, boxW-44*u.s), severityColor(in.Severity)})
	}
	boxH := 44 * u.s
	switch {
	case loading, len(blocks) == 0:
		boxH += lineH
	default:
		for _, b := range blocks {
			boxH += 24*u.s + float64(len(b.lines))*lineH + 8*u.s
		}
	}

	u.panel(x, y, boxW, boxH, "AI DEMOGRAPHIC INSIGHTS", ColorModerate)
	ty := y + 40*u.s
	switch {
	case loading:
		u.text("Analyzing demographic trends...", body, x+14*u.s, ty, ColorMuted, pulse(u.now))
	case len(blocks) == 0:
		u.text("No insights available.", body, x+14*u.s, ty, ColorMuted, 0.7)
	default:
		for _, b := range blocks {
			vector.DrawFilledCircle(u.screen, float32(x+20*u.s), float32(ty+8*u.s), float32(4*u.s), b.color, true)
			u.text(b.title, u.face(14), x+32*u.s, ty, color.White, 0.95)
			ty += 24 * u.s
			for _, line := range b.lines {
				u.text(line, body, x+32*u.s, ty, ColorMuted, 0.85)
				ty += lineH
			}
			ty += 8 * u.s
		}
	}
	return y + boxH
}

func (u *hud) drawSamples(y float64) float64 {
	x, boxW := u.margin, 460*u.s
	rowH := 20 * u.s
	boxH := 64*u.s + rowH*float64(len(insights.SampleCountries))
	u.panel(x, y, boxW, boxH, "SAMPLE COUNTRIES", ColorModerate)

	cols := []float64{x + 14*u.s, x + 170*u.s, x + 300*u.s, x + boxW - 14*u.s}
	head := u.face(11)
	hy := y + 38*u.s
	u.text("COUNTRY", head, cols[0], hy, ColorMuted, 0.7)
	u.text("RATE/1K", head, cols[1], hy, ColorMuted, 0.7)
	u.text("BIRTHS/YR", head, cols[2], hy, ColorMuted, 0.7)
	u.textRight("REGION", head, cols[3], hy, ColorMuted, 0.7)

	row := u.face(13)
	num := u.mono(12)
	ry := hy + 22*u.s
	for _, c := range insights.SampleCountries {
		dot := ColorModerate
		if c.HighActivity() {
			dot = ColorHigh
		}
		vector.DrawFilledCircle(u.screen, float32(cols[0]+4*u.s), float32(ry+8*u.s), float32(3*u.s), dot, true)
		u.text(c.Name, row, cols[0]+14*u.s, ry, color.White, 0.9)
		u.text(fmt.Sprintf("%.1f", c.BirthRate), num, cols[1], ry+1*u.s, color.White, 0.8)
		u.text(sim.FormatTally(c.TotalBirths), num, cols[2], ry+1*u.s, color.White, 0.8)
		u.textRight(c.Region, row, cols[3], ry, ColorMuted, 0.8)
		ry += rowH
	}
	return y + boxH
}

func (u *hud) drawSelected(y float64) {
	c, ok := u.e.Selected()
	if !ok || y > u.h-200*u.s {
		return
	}
	x, boxW, boxH := u.margin, 460*u.s, 96*u.s
	u.panel(x, y, boxW, boxH, "SELECTED COUNTRY", u.e.opts.Theme.Flash)
	u.text(c.Name, u.face(20), x+14*u.s, y+34*u.s, color.White, 1)
	u.textRight(c.ID, u.mono(14), x+boxW-14*u.s, y+38*u.s, ColorMuted, 0.8)

	detail := "No sample data for this region."
	if sample, ok := insights.SampleByISO(c.ID); ok {
		detail = fmt.Sprintf("%.1f births per 1,000  |  %s births/yr  |  %s",
			sample.BirthRate, sim.FormatTally(sample.TotalBirths), sample.Region)
	}
	u.text(detail, u.face(13), x+14*u.s, y+66*u.s, ColorMuted, 0.85)
}

// drawGeoState marks the globe area while the dataset is missing.
func (u *hud) drawGeoState(state geodata.State) {
	var label string
	var c color.Color
	switch state {
	case geodata.StateReady:
		return
	case geodata.StateFailed:
		label, c = "GEO DATA UNAVAILABLE", ColorHigh
	default:
		label, c = "LOADING GEO DATA...", ColorMuted
	}
	proj := NewOrthographic(int(u.w), int(u.h), 0, 0)
	vector.StrokeCircle(u.screen, float32(proj.CX), float32(proj.CY), float32(proj.Radius), 1, ColorPanelEdge, true)
	face := u.mono(18)
	tw, _ := text.Measure(label, face, 0)
	alpha := float32(0.9)
	if state != geodata.StateFailed {
		alpha = pulse(u.now)
	}
	u.text(label, face, proj.CX-tw/2, proj.CY, c, alpha)
}

func (u *hud) drawLegend() {
	x, y := u.margin, u.h-u.margin-16*u.s
	items := []struct {
		label string
		color color.RGBA
	}{
		{"HIGH ACTIVITY", ColorHigh},
		{"MODERATE ACTIVITY", ColorModerate},
	}
	face := u.face(12)
	for _, it := range items {
		r := 6 * u.s
		if it.color == ColorHigh {
			r *= 0.8 + 0.2*float64(pulse(u.now))
		}
		vector.DrawFilledCircle(u.screen, float32(x+6*u.s), float32(y+7*u.s), float32(r), it.color, true)
		u.text(it.label, face, x+18*u.s, y, ColorMuted, 0.9)
		tw, _ := text.Measure(it.label, face, 0)
		x += tw + 42*u.s
	}
	for i, line := range wrapText(footerNote, u.face(10), 340*u.s) {
		u.text(line, u.face(10), x, y-6*u.s+float64(i)*14*u.s, ColorMuted, 0.6)
	}
}

func (u *hud) drawNowPlaying() {
	song, artist, extra, changedAt := u.e.nowPlaying()
	if song == "" {
		return
	}
	boxW, boxH := 360*u.s, 86*u.s
	x, y := u.w-u.margin-boxW, u.h-u.margin-boxH
	u.panel(x, y, boxW, boxH, "NOW PLAYING", ColorModerate)

	// New tracks fade in over two seconds.
	alpha := float32(math.Min(1, u.now.Sub(changedAt).Seconds()/2))
	u.text(truncate(song, 36), u.face(16), x+14*u.s, y+34*u.s, color.White, alpha)
	var parts []string
	for _, p := range []string{artist, extra} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	sub := strings.Join(parts, "  |  ")
	u.text(truncate(sub, 44), u.face(12), x+14*u.s, y+58*u.s, ColorMuted, alpha*0.8)
}

// pulse oscillates between 0.4 and 1 once per second.
func pulse(now time.Time) float32 {
	phase := float64(now.UnixMilli()%1000) / 1000
	return float32(0.7 + 0.3*math.Sin(phase*2*math.Pi))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// wrapText breaks s into lines no wider than maxW.
func wrapText(s string, face text.Face, maxW float64) []string {
	var lines []string
	var cur string
	for _, word := range strings.Fields(s) {
		next := word
		if cur != "" {
			next = cur + " " + word
		}
		if w, _ := text.Measure(next, face, 0); w > maxW && cur != "" {
			lines = append(lines, cur)
			cur = word
			continue
		}
		cur = next
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}
