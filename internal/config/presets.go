package config

import (
	"sort"
	"strings"

	"github.com/san-kum/ribbon/internal/lineart"
)

type Preset struct {
	Extraction lineart.ExtractionParams
	Render     lineart.RenderParams
}

var Presets = map[string]map[string]*Preset{
	"still": {
		"clean": {
			Extraction: lineart.ExtractionParams{Threshold1: 100, Threshold2: 200, EpsilonFactor: 0.01},
			Render:     lineart.RenderParams{JitterAmount: 0.5, JitterSpeed: 12},
		},
		"sketch": {
			Extraction: lineart.ExtractionParams{Threshold1: 60, Threshold2: 160, EpsilonFactor: 0.005},
			Render:     lineart.RenderParams{JitterAmount: 3, JitterSpeed: 24},
		},
		"bold": {
			Extraction: lineart.ExtractionParams{Threshold1: 140, Threshold2: 250, EpsilonFactor: 0.04},
			Render:     lineart.RenderParams{JitterAmount: 6, JitterSpeed: 10},
		},
	},
	"video": {
		"calm": {
			Extraction: lineart.ExtractionParams{Threshold1: 100, Threshold2: 200, EpsilonFactor: 0.02},
			Render:     lineart.RenderParams{JitterAmount: 1, JitterSpeed: 8},
		},
		"frantic": {
			Extraction: lineart.ExtractionParams{Threshold1: 80, Threshold2: 180, EpsilonFactor: 0.015},
			Render:     lineart.RenderParams{JitterAmount: 12, JitterSpeed: 60},
		},
		"fine": {
			Extraction: lineart.ExtractionParams{Threshold1: 40, Threshold2: 120, EpsilonFactor: 0.001},
			Render:     lineart.RenderParams{JitterAmount: 2, JitterSpeed: 30},
		},
	},
}

func GetPreset(group, preset string) *Preset {
	groupPresets, ok := Presets[group]
	if !ok {
		return nil
	}
	p, ok := groupPresets[preset]
	if !ok {
		return nil
	}
	return p
}

func ListPresets(group string) []string {
	groupPresets, ok := Presets[group]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(groupPresets))
	for name := range groupPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ListGroups() []string {
	groups := make([]string, 0, len(Presets))
	for g := range Presets {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// LookupPreset resolves "group/name".
func LookupPreset(ref string) *Preset {
	group, name, ok := strings.Cut(ref, "/")
	if !ok {
		return nil
	}
	return GetPreset(group, name)
}

func (c *Config) ApplyPreset(p *Preset) {
	if p == nil {
		return
	}
	c.Extraction = p.Extraction
	c.Render = p.Render
}
