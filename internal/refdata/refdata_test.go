package refdata

import (
	"sort"
	"testing"
)

func TestDefaultDataset(t *testing.T) {
	d, err := Parse(philippinesYAML)
	if err != nil {
		t.Fatalf("Parse embedded dataset: %v", err)
	}
	if len(d.Provinces) == 0 || len(d.Cities) == 0 {
		t.Fatal("expected non-empty dataset")
	}
	if !sort.SliceIsSorted(d.Cities, func(i, j int) bool { return d.Cities[i].Name < d.Cities[j].Name }) {
		t.Error("expected cities sorted by name")
	}
	if !d.HasProvince("Metro Manila") || !d.HasCity("Makati") {
		t.Error("expected Metro Manila and Makati to be present")
	}
	if name, ok := d.ProvinceName("CEB"); !ok || name != "Cebu" {
		t.Errorf("ProvinceName(CEB) = %q, %v", name, ok)
	}
}

func TestCitiesIn(t *testing.T) {
	cities := Default().CitiesIn("Cebu")
	names := map[string]bool{}
	for _, c := range cities {
		names[c.Name] = true
	}
	for _, want := range []string{"Cebu City", "Lapu-Lapu", "Mandaue"} {
		if !names[want] {
			t.Errorf("expected %s in Cebu, got %v", want, cities)
		}
	}
	if names["Makati"] {
		t.Error("Makati is not in Cebu")
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"unknown province": "provinces:\n  - {key: A, name: Alpha}\ncities:\n  - {name: X, province: B}\n",
		"duplicate key":    "provinces:\n  - {key: A, name: Alpha}\n  - {key: A, name: Again}\n",
		"not yaml":         "provinces: [",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
