package config

import (
	"sort"

	"github.com/san-kum/mdrun/internal/units"
)

var Presets = map[string]*Settings{
	"implicit": DefaultSettings(),
	"explicit": func() *Settings {
		s := DefaultSettings()
		s.Solvent = SolventExplicit
		s.ReportInterval = 20 * units.Picosecond
		return s
	}(),
	"smoke": func() *Settings {
		s := DefaultSettings()
		s.ReportInterval = 0.01 * units.Picosecond
		s.SimulationLength = 0.05 * units.Picosecond
		s.Selection = "all"
		s.Minimize = false
		seed := int64(1)
		s.Seed = &seed
		return s
	}(),
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Settings {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return p.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
