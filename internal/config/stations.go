package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Station is one curated radio stream. The list is loaded once at startup
// and read-only afterwards; name uniqueness is assumed, not enforced.
type Station struct {
	Name      string `toml:"name"`
	StreamURL string `toml:"stream_url"`
}

type stationsFile struct {
	Stations []Station `toml:"stations"`
}

// LoadStations reads the station list from a TOML file:
//
//	[[stations]]
//	name = "SomaFM Groove Salad"
//	stream_url = "https://ice1.somafm.com/groovesalad-128-mp3"
func LoadStations(path string) ([]Station, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stations file %s: %w", path, err)
	}

	var file stationsFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse stations file %s: %w", path, err)
	}

	for i, st := range file.Stations {
		if st.Name == "" || st.StreamURL == "" {
			return nil, fmt.Errorf("station entry %d in %s is missing name or stream_url", i+1, path)
		}
	}

	return file.Stations, nil
}
