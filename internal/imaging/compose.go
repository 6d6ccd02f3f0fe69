// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package imaging composes headline and subtext overlays onto generated
// images and recompresses them with libvips.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"math"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	// referenceWidth is the image width preset sizes are expressed at.
	referenceWidth = 1024

	// maxImagePixels caps decoded images to keep memory bounded.
	maxImagePixels = 40_000_000

	// maxTextWidthRatio is the widest a line may be before it is shrunk.
	maxTextWidthRatio = 0.9
)

// ErrUnsupportedImage is returned for data that is not PNG, JPEG or WebP.
var ErrUnsupportedImage = errors.New("imaging: unsupported image format")

// Overlay is the text to draw and the preset that styles it.
type Overlay struct {
	Headline string
	Subtext  string
	Preset   Preset
}

// Decode decodes PNG, JPEG or WebP data after checking its dimensions.
func Decode(data []byte) (image.Image, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return nil, "", fmt.Errorf("imaging: image too large: %dx%d", cfg.Width, cfg.Height)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("imaging: decode %s: %w", format, err)
	}
	return img, format, nil
}

// Compose draws the overlay onto src and returns the result as PNG. The
// output has the same dimensions as the input.
func Compose(src []byte, o Overlay) ([]byte, error) {
	img, _, err := Decode(src)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, b.Min, draw.Src)

	if err := drawBackground(canvas, o.Preset.Background); err != nil {
		return nil, err
	}
	if err := drawText(canvas, o.Headline, o.Preset.Headline); err != nil {
		return nil, fmt.Errorf("imaging: headline: %w", err)
	}
	if err := drawText(canvas, o.Subtext, o.Preset.Subtext); err != nil {
		return nil, fmt.Errorf("imaging: subtext: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("imaging: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ToPNG returns data as PNG, re-encoding JPEG and WebP input.
func ToPNG(data []byte) ([]byte, error) {
	img, format, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if format == "png" {
		return data, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("imaging: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// bandRect returns the area covered by the background band.
func bandRect(bounds image.Rectangle, bg Background) image.Rectangle {
	ratio := bg.HeightRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	h := int(math.Round(float64(bounds.Dy()) * ratio))
	if bg.Anchor == "top" {
		return image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Min.Y+h)
	}
	return image.Rect(bounds.Min.X, bounds.Max.Y-h, bounds.Max.X, bounds.Max.Y)
}

func drawBackground(dst *image.RGBA, bg Background) error {
	switch bg.Type {
	case "", "none":
		return nil
	case "solid":
		c, err := parseColor(bg.Color)
		if err != nil {
			return fmt.Errorf("imaging: background: %w", err)
		}
		draw.Draw(dst, bandRect(dst.Bounds(), bg), image.NewUniform(c), image.Point{}, draw.Over)
		return nil
	case "gradient":
		stops := make([]color.NRGBA, 0, len(bg.Colors))
		for _, s := range bg.Colors {
			c, err := parseColor(s)
			if err != nil {
				return fmt.Errorf("imaging: background: %w", err)
			}
			stops = append(stops, c)
		}
		drawGradient(dst, bandRect(dst.Bounds(), bg), stops, bg.Direction)
		return nil
	}
	return fmt.Errorf("imaging: unknown background type %q", bg.Type)
}

// drawGradient fills r line by line. The first stop sits at the edge the
// direction points away from ("to top" starts at the bottom).
func drawGradient(dst *image.RGBA, r image.Rectangle, stops []color.NRGBA, direction string) {
	horizontal := direction == "to right" || direction == "to left"
	reverse := direction == "to top" || direction == "to left"

	n := r.Dy()
	if horizontal {
		n = r.Dx()
	}
	if n <= 0 || len(stops) == 0 {
		return
	}

	for i := 0; i < n; i++ {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		if reverse {
			t = 1 - t
		}
		c := image.NewUniform(gradientAt(stops, t))

		line := image.Rect(r.Min.X, r.Min.Y+i, r.Max.X, r.Min.Y+i+1)
		if horizontal {
			line = image.Rect(r.Min.X+i, r.Min.Y, r.Min.X+i+1, r.Max.Y)
		}
		draw.Draw(dst, line, c, image.Point{}, draw.Over)
	}
}

// gradientAt interpolates evenly spaced stops at t in [0, 1].
func gradientAt(stops []color.NRGBA, t float64) color.NRGBA {
	if len(stops) == 1 {
		return stops[0]
	}
	pos := t * float64(len(stops)-1)
	i := int(pos)
	if i >= len(stops)-1 {
		return stops[len(stops)-1]
	}
	f := pos - float64(i)
	a, b := stops[i], stops[i+1]
	lerp := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*f))
	}
	return color.NRGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: lerp(a.A, b.A)}
}

func drawText(dst *image.RGBA, text string, ts TextStyle) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	fill, err := parseColor(ts.Color)
	if err != nil {
		return err
	}

	width := dst.Bounds().Dx()
	size := ts.Size * float64(width) / referenceWidth
	face, err := newFace(ts.Font, size)
	if err != nil {
		return err
	}

	// Shrink long lines until they fit.
	maxWidth := fixed.I(int(float64(width) * maxTextWidthRatio))
	for font.MeasureString(face, text) > maxWidth && size > 8 {
		face.Close()
		size *= 0.9
		if face, err = newFace(ts.Font, size); err != nil {
			return err
		}
	}
	defer face.Close()

	advance := font.MeasureString(face, text)
	x := fixed.I(int(math.Round(float64(width) * ts.XRatio)))
	switch ts.Align {
	case "center", "":
		x -= advance / 2
	case "right":
		x -= advance
	}
	y := fixed.I(int(math.Round(float64(dst.Bounds().Dy()) * ts.YRatio)))

	d := &font.Drawer{Dst: dst, Face: face}
	if ts.Shadow {
		off := fixed.I(max(1, int(math.Round(size/24))))
		d.Src = image.NewUniform(color.NRGBA{A: 128})
		d.Dot = fixed.Point26_6{X: x + off, Y: y + off}
		d.DrawString(text)
	}
	d.Src = image.NewUniform(fill)
	d.Dot = fixed.Point26_6{X: x, Y: y}
	d.DrawString(text)
	return nil
}

var (
	fontsOnce sync.Once
	fonts     map[string]*opentype.Font
	fontsErr  error
)

func loadFonts() {
	fonts = make(map[string]*opentype.Font)
	for name, ttf := range map[string][]byte{
		"regular": goregular.TTF,
		"medium":  gomedium.TTF,
		"bold":    gobold.TTF,
		"italic":  goitalic.TTF,
	} {
		f, err := opentype.Parse(ttf)
		if err != nil {
			fontsErr = fmt.Errorf("imaging: parse %s font: %w", name, err)
			return
		}
		fonts[name] = f
	}
}

// newFace returns a face for one of the bundled Go fonts. Unknown names
// fall back to regular; "extrabold" maps to bold.
func newFace(name string, size float64) (font.Face, error) {
	fontsOnce.Do(loadFonts)
	if fontsErr != nil {
		return nil, fontsErr
	}
	if name == "extrabold" {
		name = "bold"
	}
	f, ok := fonts[name]
	if !ok {
		f = fonts["regular"]
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("imaging: font face: %w", err)
	}
	return face, nil
}

// parseColor accepts #rgb, #rrggbb, #rrggbbaa, rgb(r,g,b) and
// rgba(r,g,b,a) with a in [0, 1].
func parseColor(s string) (color.NRGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "white":
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}, nil
	case "black":
		return color.NRGBA{A: 255}, nil
	}

	if hex, ok := strings.CutPrefix(s, "#"); ok {
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) == 6 {
			hex += "ff"
		}
		if len(hex) != 8 {
			return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
		}
		return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
	}

	var args string
	var ok bool
	if args, ok = strings.CutPrefix(s, "rgba("); !ok {
		args, ok = strings.CutPrefix(s, "rgb(")
	}
	if !ok || !strings.HasSuffix(args, ")") {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	parts := strings.Split(strings.TrimSuffix(args, ")"), ",")
	if len(parts) != 3 && len(parts) != 4 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}

	var rgb [3]uint8
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || n < 0 || n > 255 {
			return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
		}
		rgb[i] = uint8(n)
	}
	alpha := 1.0
	if len(parts) == 4 {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || a < 0 || a > 1 {
			return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
		}
		alpha = a
	}
	return color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: uint8(math.Round(alpha * 255))}, nil
}
