// Package schema defines the Go struct types for the weft app bundle YAML
// and provides strict parsing.
package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// App is the top-level document describing a low-code application: its
// screens, the components on each screen, and the action chains attached
// to component events.
type App struct {
	APIVersion string   `yaml:"apiVersion" json:"apiVersion" jsonschema:"required,enum=app/v1"`
	Meta       Meta     `yaml:"meta"       json:"meta"       jsonschema:"required"`
	Screens    []Screen `yaml:"screens,omitempty" json:"screens,omitempty"`
}

// Meta contains app metadata and design-time variables. Vars are merged
// into the ambient context of every chain triggered from the app.
type Meta struct {
	Name        string            `yaml:"name"                  json:"name" jsonschema:"required"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Vars        map[string]string `yaml:"vars,omitempty"        json:"vars,omitempty"`
}

// Screen is one routable page of the app.
type Screen struct {
	ID         string      `yaml:"id"                   json:"id" jsonschema:"required"`
	Route      string      `yaml:"route,omitempty"      json:"route,omitempty"`
	Title      string      `yaml:"title,omitempty"      json:"title,omitempty"`
	Components []Component `yaml:"components,omitempty" json:"components,omitempty"`
}

// Component is a UI element carrying zero or more event triggers.
// Notes are designer-authored markdown surfaced by tooling.
type Component struct {
	ID       string    `yaml:"id"                 json:"id" jsonschema:"required"`
	Type     string    `yaml:"type,omitempty"     json:"type,omitempty"`
	Notes    string    `yaml:"notes,omitempty"    json:"notes,omitempty"`
	Triggers []Trigger `yaml:"triggers,omitempty" json:"triggers,omitempty"`
}

// Trigger binds an ordered action chain to a component event.
type Trigger struct {
	Event   string   `yaml:"event"             json:"event" jsonschema:"required"`
	Actions []Action `yaml:"actions,omitempty" json:"actions,omitempty"`
}

// Action is one declarative action descriptor: a kind identifier plus a
// free-form parameter map whose shape depends on the kind. Params may
// carry the reserved keys "confirm", "confirmText" and "condition".
// Authored actions are never mutated; binding enrichment works on a copy.
type Action struct {
	Kind   string         `yaml:"kind"             json:"kind" jsonschema:"required"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// Clone returns a deep copy of the action with its parameter map
// duplicated one level down. Nested maps inside individual parameter
// values are copied by the enrichment walk, which never writes through
// to the original.
func (a Action) Clone() Action {
	out := Action{Kind: a.Kind}
	if a.Params != nil {
		out.Params = make(map[string]any, len(a.Params))
		for k, v := range a.Params {
			out.Params[k] = v
		}
	}
	return out
}

// Screen returns the screen with the given ID, or nil.
func (a *App) Screen(id string) *Screen {
	for i := range a.Screens {
		if a.Screens[i].ID == id {
			return &a.Screens[i]
		}
	}
	return nil
}

// Component returns the component with the given ID, or nil.
func (s *Screen) Component(id string) *Component {
	for i := range s.Components {
		if s.Components[i].ID == id {
			return &s.Components[i]
		}
	}
	return nil
}

// Trigger returns the trigger for the given event name, or nil.
func (c *Component) Trigger(event string) *Trigger {
	for i := range c.Triggers {
		if c.Triggers[i].Event == event {
			return &c.Triggers[i]
		}
	}
	return nil
}

// Chain resolves screen/component/event to the attached action list.
func (a *App) Chain(screenID, componentID, event string) ([]Action, error) {
	s := a.Screen(screenID)
	if s == nil {
		return nil, fmt.Errorf("screen %q not found", screenID)
	}
	c := s.Component(componentID)
	if c == nil {
		return nil, fmt.Errorf("component %q not found on screen %q", componentID, screenID)
	}
	t := c.Trigger(event)
	if t == nil {
		return nil, fmt.Errorf("component %q has no %q trigger", componentID, event)
	}
	return t.Actions, nil
}

// LoadFile reads and parses an app bundle from a YAML file.
func LoadFile(path string) (*App, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open app bundle: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses an app bundle from an io.Reader with strict unknown-field
// rejection. Action params stay free-form; everything above them is
// checked against the struct fields.
func Load(r io.Reader) (*App, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var app App
	if err := dec.Decode(&app); err != nil {
		return nil, fmt.Errorf("decode app bundle: %w", err)
	}
	return &app, nil
}
