package digiself

import (
	"bytes"
	_ "embed"
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

//go:embed personas.yaml
var defaultPersonasYAML []byte

// Persona is the assistant behavior selected by the user's mode.
type Persona struct {
	Name         string `yaml:"name" json:"name"`
	Description  string `yaml:"description" json:"description"`
	Instructions string `yaml:"instructions" json:"instructions"`
}

// Personas is the set of known modes. Mode names are matched case-insensitively.
type Personas struct {
	Default  string    `yaml:"default"`
	Personas []Persona `yaml:"personas"`
}

// DefaultPersonas returns the built-in persona set.
func DefaultPersonas() *Personas {
	p, err := ParsePersonas(bytes.NewReader(defaultPersonasYAML))
	if err != nil {
		panic("broken embedded personas: " + err.Error())
	}
	return p
}

// LoadPersonas reads a persona set from a YAML file.
func LoadPersonas(path string) (*Personas, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open personas file", goerr.V("path", path))
	}
	defer f.Close()

	p, err := ParsePersonas(f)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load personas", goerr.V("path", path))
	}
	return p, nil
}

// ParsePersonas decodes and validates a persona set.
func ParsePersonas(r io.Reader) (*Personas, error) {
	var p Personas
	if err := yaml.NewDecoder(r).Decode(&p); err != nil {
		return nil, goerr.Wrap(err, "failed to decode personas yaml")
	}

	if len(p.Personas) == 0 {
		return nil, goerr.Wrap(ErrInvalidParameter, "no persona defined")
	}
	seen := map[string]bool{}
	for _, persona := range p.Personas {
		key := strings.ToLower(persona.Name)
		if key == "" {
			return nil, goerr.Wrap(ErrInvalidParameter, "persona name is empty")
		}
		if seen[key] {
			return nil, goerr.Wrap(ErrInvalidParameter, "duplicated persona", goerr.V("name", persona.Name))
		}
		seen[key] = true
	}
	if p.Default == "" {
		p.Default = p.Personas[0].Name
	}
	if !seen[strings.ToLower(p.Default)] {
		return nil, goerr.Wrap(ErrInvalidParameter, "default persona is not defined", goerr.V("default", p.Default))
	}

	return &p, nil
}

// Names returns persona names in file order.
func (x *Personas) Names() []string {
	names := make([]string, len(x.Personas))
	for i, p := range x.Personas {
		names[i] = p.Name
	}
	return names
}

// Lookup finds a persona by mode name.
func (x *Personas) Lookup(mode string) (Persona, bool) {
	for _, p := range x.Personas {
		if strings.EqualFold(p.Name, strings.TrimSpace(mode)) {
			return p, true
		}
	}
	return Persona{}, false
}

// Resolve returns the persona for mode, or the default persona when mode is
// empty or unknown. Mode is free text set by SET_MODE, so it is never rejected.
func (x *Personas) Resolve(mode string) Persona {
	if p, ok := x.Lookup(mode); ok {
		return p
	}
	p, _ := x.Lookup(x.Default)
	return p
}
