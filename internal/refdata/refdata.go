// Package refdata provides the static city and province lists used by the
// filter and report form dropdowns.
package refdata

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed philippines.yaml
var philippinesYAML []byte

// Province is a first-level administrative area.
type Province struct {
	Key    string `yaml:"key"`
	Name   string `yaml:"name"`
	Region string `yaml:"region"`
}

// City is a city or municipality. Province holds the province key.
type City struct {
	Name     string `yaml:"name"`
	Province string `yaml:"province"`
	City     bool   `yaml:"city"`
}

// Dataset is the full reference dataset.
type Dataset struct {
	Provinces []Province `yaml:"provinces"`
	Cities    []City     `yaml:"cities"`

	byKey map[string]Province
}

// Parse decodes and checks a dataset. Every city must reference a known
// province.
func Parse(data []byte) (*Dataset, error) {
	var d Dataset
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decoding reference data: %w", err)
	}

	d.byKey = make(map[string]Province, len(d.Provinces))
	for _, p := range d.Provinces {
		if _, dup := d.byKey[p.Key]; dup {
			return nil, fmt.Errorf("duplicate province key %q", p.Key)
		}
		d.byKey[p.Key] = p
	}
	for _, c := range d.Cities {
		if _, ok := d.byKey[c.Province]; !ok {
			return nil, fmt.Errorf("city %q references unknown province %q", c.Name, c.Province)
		}
	}

	sort.SliceStable(d.Provinces, func(i, j int) bool { return d.Provinces[i].Name < d.Provinces[j].Name })
	sort.SliceStable(d.Cities, func(i, j int) bool { return d.Cities[i].Name < d.Cities[j].Name })
	return &d, nil
}

// ProvinceName returns the display name for a province key.
func (d *Dataset) ProvinceName(key string) (string, bool) {
	p, ok := d.byKey[key]
	return p.Name, ok
}

// CitiesIn returns the cities of the province with the given display name.
func (d *Dataset) CitiesIn(provinceName string) []City {
	var out []City
	for _, c := range d.Cities {
		if p := d.byKey[c.Province]; p.Name == provinceName {
			out = append(out, c)
		}
	}
	return out
}

// HasCity reports whether name is a known city.
func (d *Dataset) HasCity(name string) bool {
	for _, c := range d.Cities {
		if c.Name == name {
			return true
		}
	}
	return false
}

// HasProvince reports whether name is a known province display name.
func (d *Dataset) HasProvince(name string) bool {
	for _, p := range d.Provinces {
		if p.Name == name {
			return true
		}
	}
	return false
}

var load = sync.OnceValues(func() (*Dataset, error) {
	return Parse(philippinesYAML)
})

// Default returns the embedded dataset. It panics if the embedded file is
// invalid, which the package tests rule out.
func Default() *Dataset {
	d, err := load()
	if err != nil {
		panic(err)
	}
	return d
}

// Cities returns the embedded cities sorted by name.
func Cities() []City {
	return Default().Cities
}

// Provinces returns the embedded provinces sorted by name.
func Provinces() []Province {
	return Default().Provinces
}
