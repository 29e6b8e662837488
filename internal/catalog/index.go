package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/domain"
)

//go:embed data/phones.json
var defaultDataset []byte

// Index is the loaded catalog plus lowercase lookup sets used by intent parsing.
type Index struct {
	entries  []Entry
	brands   []string // dataset order of first appearance
	brandSet map[string]struct{}
	modelSet map[string]struct{}
	nameSet  map[string]struct{}
}

// Default loads the dataset embedded in the binary.
func Default() (*Index, error) {
	return LoadJSON(defaultDataset)
}

// LoadFile loads a JSON dataset from disk.
func LoadFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.DataLoadError(fmt.Sprintf("read catalog %s", path), err)
	}
	return LoadJSON(data)
}

// LoadJSON decodes a JSON array of records and builds the index.
func LoadJSON(data []byte) (*Index, error) {
	var raw []RawEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, domain.DataLoadError("decode catalog", err)
	}
	return Load(raw)
}

// Load validates raw records and builds the index. Any malformed record
// aborts the whole load; the catalog is never served partially.
func Load(raw []RawEntry) (*Index, error) {
	idx := &Index{
		entries:  make([]Entry, 0, len(raw)),
		brandSet: make(map[string]struct{}),
		modelSet: make(map[string]struct{}),
		nameSet:  make(map[string]struct{}),
	}

	for i, r := range raw {
		entry, err := convert(r)
		if err != nil {
			return nil, domain.DataLoadError(fmt.Sprintf("catalog record %d", i), err)
		}

		key := entry.Key()
		if _, dup := idx.nameSet[key]; dup {
			return nil, domain.DataLoadError(fmt.Sprintf("catalog record %d", i),
				fmt.Errorf("duplicate phone %q", entry.Name()))
		}

		brand := strings.ToLower(entry.Brand)
		if _, ok := idx.brandSet[brand]; !ok {
			idx.brandSet[brand] = struct{}{}
			idx.brands = append(idx.brands, brand)
		}
		idx.modelSet[strings.ToLower(entry.Model)] = struct{}{}
		idx.nameSet[key] = struct{}{}
		idx.entries = append(idx.entries, entry)
	}

	return idx, nil
}

func convert(r RawEntry) (Entry, error) {
	brand := strings.TrimSpace(r.Brand)
	model := strings.TrimSpace(r.Model)
	if brand == "" {
		return Entry{}, fmt.Errorf("brand is required")
	}
	if model == "" {
		return Entry{}, fmt.Errorf("model is required")
	}

	e := Entry{Brand: brand, Model: model, OneHandUse: r.OneHandUse}

	ints := []struct {
		field string
		src   *Number
		dst   *int
	}{
		{"price", r.Price, &e.Price},
		{"camera", r.Camera, &e.Camera},
		{"battery", r.Battery, &e.Battery},
		{"fastCharging", r.FastCharging, &e.FastCharging},
	}
	for _, f := range ints {
		v, err := f.src.Int()
		if err != nil {
			return Entry{}, fmt.Errorf("%s %s: %w", e.Name(), f.field, err)
		}
		*f.dst = v
	}

	display, err := r.Display.Float()
	if err != nil {
		return Entry{}, fmt.Errorf("%s display: %w", e.Name(), err)
	}
	e.Display = display

	return e, nil
}

// All returns the entries in dataset order. The slice is a copy.
func (x *Index) All() []Entry {
	out := make([]Entry, len(x.entries))
	copy(out, x.entries)
	return out
}

// Len returns the number of phones in the catalog.
func (x *Index) Len() int {
	return len(x.entries)
}

// Brands returns lowercase brand names in dataset order.
func (x *Index) Brands() []string {
	return append([]string(nil), x.brands...)
}

// HasBrand reports whether the lowercase brand exists.
func (x *Index) HasBrand(brand string) bool {
	_, ok := x.brandSet[strings.ToLower(brand)]
	return ok
}

// HasModel reports whether the lowercase model exists.
func (x *Index) HasModel(model string) bool {
	_, ok := x.modelSet[strings.ToLower(model)]
	return ok
}

// HasName reports whether "brand model" exists.
func (x *Index) HasName(name string) bool {
	_, ok := x.nameSet[strings.ToLower(name)]
	return ok
}

// Models returns the lowercase model names in dataset order.
func (x *Index) Models() []string {
	out := make([]string, 0, len(x.entries))
	for _, e := range x.entries {
		out = append(out, strings.ToLower(e.Model))
	}
	return out
}

// Names returns the display names ("Brand Model") in dataset order.
func (x *Index) Names() []string {
	out := make([]string, 0, len(x.entries))
	for _, e := range x.entries {
		out = append(out, e.Name())
	}
	return out
}
