package meditation

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultBackground is used when a request names no background or an
// unknown one.
const DefaultBackground = "flowing_focus"

// Background is an ambient track the client plays under the voice.
type Background struct {
	Key   string `json:"key" yaml:"key" toml:"key"`
	Title string `json:"title" yaml:"title" toml:"title"`
	File  string `json:"file" yaml:"file" toml:"file"`
}

// Catalog maps background keys to tracks.
type Catalog struct {
	defaultKey string
	items      map[string]Background
}

type catalogFile struct {
	Default     string       `yaml:"default" toml:"default"`
	Backgrounds []Background `yaml:"backgrounds" toml:"backgrounds"`
}

// BuiltinCatalog returns the four bundled tracks.
func BuiltinCatalog() *Catalog {
	c, _ := newCatalog(DefaultBackground, []Background{
		{Key: "ocean", Title: "Ocean", File: "static/audios/ocean.mp3"},
		{Key: "rain", Title: "Rain", File: "static/audios/rain.mp3"},
		{Key: "flowing_focus", Title: "Flowing Focus", File: "static/audios/Flowing_Focus.mp3"},
		{Key: "mellow_focus", Title: "Mellow Focus", File: "static/audios/Mellow_Focus.mp3"},
	})
	return c
}

// LoadCatalog reads a YAML or TOML catalogue, chosen by file extension. An
// empty path yields the built-in catalogue.
func LoadCatalog(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return BuiltinCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading background catalogue: %w", err)
	}

	var file catalogFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	case ".toml":
		_, err = toml.Decode(string(data), &file)
	default:
		return nil, fmt.Errorf("unsupported background catalogue format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parsing background catalogue %s: %w", path, err)
	}

	if file.Default == "" {
		file.Default = DefaultBackground
	}
	return newCatalog(file.Default, file.Backgrounds)
}

func newCatalog(defaultKey string, backgrounds []Background) (*Catalog, error) {
	if len(backgrounds) == 0 {
		return nil, fmt.Errorf("background catalogue is empty")
	}

	items := make(map[string]Background, len(backgrounds))
	for _, bg := range backgrounds {
		if bg.Key == "" {
			return nil, fmt.Errorf("background without key")
		}
		if bg.Title == "" {
			bg.Title = bg.Key
		}
		items[bg.Key] = bg
	}
	if _, ok := items[defaultKey]; !ok {
		return nil, fmt.Errorf("default background %q is not in the catalogue", defaultKey)
	}

	return &Catalog{defaultKey: defaultKey, items: items}, nil
}

// Resolve returns the named background, or the default one.
func (c *Catalog) Resolve(key string) Background {
	if bg, ok := c.items[strings.TrimSpace(key)]; ok {
		return bg
	}
	return c.items[c.defaultKey]
}

// Default returns the default background key.
func (c *Catalog) Default() string {
	return c.defaultKey
}

// List returns every background ordered by key.
func (c *Catalog) List() []Background {
	out := make([]Background, 0, len(c.items))
	for _, bg := range c.items {
		out = append(out, bg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
