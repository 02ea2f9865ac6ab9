// Package manifest describes a store, its modifiers and a sequence of calls
// in YAML, and turns that description into live modifiers.
//
//	engine: expr
//	state:
//	  users: []
//	  profile: {}
//	modifiers:
//	  - name: loadUsers
//	    delay: 200ms
//	    result: [{id: a}, {id: b}]
//	    reducers:
//	      - selector: users
//	        replace: result
//	calls:
//	  - modifier: loadUsers
package manifest

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goliatone/go-store/internal/hydrate"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("manifest: invalid")

// Manifest is a decoded manifest document.
type Manifest struct {
	Engine    string         `yaml:"engine"`
	State     map[string]any `yaml:"state"`
	Modifiers []Modifier     `yaml:"modifiers"`
	Calls     []Call         `yaml:"calls"`
}

// Modifier describes one modifier. The action waits Delay, then fails with
// Error when set, otherwise resolves to Compute evaluated against the call
// arguments, or to the literal Result.
type Modifier struct {
	Name     string        `yaml:"name"`
	Engine   string        `yaml:"engine"`
	Delay    time.Duration `yaml:"delay"`
	Result   any           `yaml:"result"`
	Compute  string        `yaml:"compute"`
	Error    string        `yaml:"error"`
	Reducers []Reducer     `yaml:"reducers"`
}

// Reducer binds a selector to one patch expression. Selector is an
// expression; Path is a list of keys and indexes where "$N" stands for
// argument N. Exactly one of them is set, and exactly one of Merge, Replace,
// Each or Keep.
type Reducer struct {
	Selector string `yaml:"selector"`
	Path     []any  `yaml:"path"`
	Merge    string `yaml:"merge"`
	Replace  string `yaml:"replace"`
	Each     string `yaml:"each"`
	Keep     bool   `yaml:"keep"`
}

// Call is one execution of a modifier, started After the run begins.
type Call struct {
	Modifier string        `yaml:"modifier"`
	Args     []any         `yaml:"args"`
	After    time.Duration `yaml:"after"`
}

var decoder = hydrate.NewDecoder[Manifest](
	hydrate.WithTagName[Manifest]("yaml"),
	hydrate.WithDisallowUnknownFields[Manifest](),
	hydrate.WithPostHook[Manifest](func(_ hydrate.Context, m *Manifest) error {
		return m.Validate()
	}),
)

// Load reads and validates a manifest.
func Load(r io.Reader) (*Manifest, error) {
	var raw map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalid)
		}
		return nil, fmt.Errorf("manifest: parse yaml: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalid)
	}
	m, err := decoder.Decode(hydrate.Context{Path: "manifest"}, raw)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the structure of m. Expressions are only checked by Build.
func (m *Manifest) Validate() error {
	var problems []string
	if !knownEngine(m.Engine) {
		problems = append(problems, fmt.Sprintf("unknown engine %q", m.Engine))
	}

	names := make(map[string]struct{}, len(m.Modifiers))
	for i, mod := range m.Modifiers {
		label := fmt.Sprintf("modifiers[%d]", i)
		if mod.Name == "" {
			problems = append(problems, label+": name is required")
		} else if _, dup := names[mod.Name]; dup {
			problems = append(problems, fmt.Sprintf("%s: duplicate name %q", label, mod.Name))
		}
		names[mod.Name] = struct{}{}
		if !knownEngine(mod.Engine) {
			problems = append(problems, fmt.Sprintf("%s: unknown engine %q", label, mod.Engine))
		}
		if mod.Delay < 0 {
			problems = append(problems, label+": delay must not be negative")
		}
		if mod.Compute != "" && mod.Result != nil {
			problems = append(problems, label+": result and compute are exclusive")
		}
		for j, red := range mod.Reducers {
			if msg := red.problem(); msg != "" {
				problems = append(problems, fmt.Sprintf("%s.reducers[%d]: %s", label, j, msg))
			}
		}
	}

	for i, call := range m.Calls {
		label := fmt.Sprintf("calls[%d]", i)
		if _, ok := names[call.Modifier]; !ok {
			problems = append(problems, fmt.Sprintf("%s: unknown modifier %q", label, call.Modifier))
		}
		if call.After < 0 {
			problems = append(problems, label+": after must not be negative")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func (r Reducer) problem() string {
	switch {
	case r.Selector == "" && len(r.Path) == 0:
		return "selector or path is required"
	case r.Selector != "" && len(r.Path) > 0:
		return "selector and path are exclusive"
	}
	modes := 0
	for _, set := range []bool{r.Merge != "", r.Replace != "", r.Each != "", r.Keep} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		return "exactly one of merge, replace, each or keep is required"
	}
	return ""
}
