// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package imaging

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetsYAML []byte

// FallbackPreset is used when no rule matches.
const FallbackPreset = "boldMinimal"

// Background is the band drawn under the text.
type Background struct {
	Type        string   `yaml:"type"` // "solid", "gradient" or "none"
	Color       string   `yaml:"color"`
	Colors      []string `yaml:"colors"`
	Direction   string   `yaml:"direction"` // "to top", "to bottom", "to left", "to right"
	Anchor      string   `yaml:"anchor"`    // "bottom" (default) or "top"
	HeightRatio float64  `yaml:"height_ratio"`
}

// TextStyle positions and styles one line of overlay text.
type TextStyle struct {
	Font   string  `yaml:"font"` // "regular", "medium", "bold", "italic"
	Size   float64 `yaml:"size"`
	Color  string  `yaml:"color"`
	Align  string  `yaml:"align"` // "left", "center", "right"
	XRatio float64 `yaml:"x_ratio"`
	YRatio float64 `yaml:"y_ratio"`
	Shadow bool    `yaml:"shadow"`
}

// Preset is one named overlay style.
type Preset struct {
	Name       string     `yaml:"-"`
	Background Background `yaml:"background"`
	Headline   TextStyle  `yaml:"headline"`
	Subtext    TextStyle  `yaml:"subtext"`
}

// Catalog holds the presets and the mapping from settings-form tones to
// template tones.
type Catalog struct {
	Presets     map[string]Preset `yaml:"presets"`
	ToneAliases map[string]string `yaml:"tone_aliases"`
}

// ParseCatalog decodes and validates a preset catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("imaging: parse presets: %w", err)
	}
	if len(c.Presets) == 0 {
		return nil, fmt.Errorf("imaging: no presets defined")
	}
	for name, p := range c.Presets {
		p.Name = name
		switch p.Background.Type {
		case "", "none", "solid", "gradient":
		default:
			return nil, fmt.Errorf("imaging: preset %s: unknown background type %q", name, p.Background.Type)
		}
		if p.Background.Type == "gradient" && len(p.Background.Colors) < 2 {
			return nil, fmt.Errorf("imaging: preset %s: gradient needs at least two colors", name)
		}
		for _, ts := range []TextStyle{p.Headline, p.Subtext} {
			if _, err := parseColor(ts.Color); err != nil {
				return nil, fmt.Errorf("imaging: preset %s: %w", name, err)
			}
			if ts.Size <= 0 {
				return nil, fmt.Errorf("imaging: preset %s: text size must be positive", name)
			}
		}
		c.Presets[name] = p
	}
	return &c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// DefaultCatalog returns the embedded preset catalog.
func DefaultCatalog() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = ParseCatalog(presetsYAML)
	})
	return defaultCatalog, defaultErr
}

// Lookup returns the named preset.
func (c *Catalog) Lookup(name string) (Preset, bool) {
	p, ok := c.Presets[name]
	return p, ok
}

// Names returns the preset names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Presets))
	for n := range c.Presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SelectPreset picks a preset name from the brand tone and business type.
// Form tones such as "Professional" are first mapped onto template tones
// through tone_aliases. Both inputs are case-insensitive.
func (c *Catalog) SelectPreset(tone, businessType string) string {
	tone = strings.ToLower(strings.TrimSpace(tone))
	if alias, ok := c.ToneAliases[tone]; ok {
		tone = alias
	}
	business := strings.ToLower(strings.TrimSpace(businessType))
	business = strings.ReplaceAll(business, " ", "_")

	switch {
	case tone == "luxury" || business == "beauty":
		return "softPastel"
	case business == "tech" || tone == "modern":
		return "boldMinimal"
	case business == "fashion" || tone == "creative":
		return "gradientFocus"
	case tone == "serious" || business == "real_estate":
		return "corporateSlide"
	}
	return FallbackPreset
}
