package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError represents a single validation finding with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location (e.g., "screens[0].components[1]")
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// ValidateFile performs the full 3-phase validation pipeline on an app bundle file.
// Phase 1: Structural (strict YAML decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (custom Go rules)
func ValidateFile(path string) (*App, []*ValidationError) {
	app, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	return app, Validate(app)
}

// Validate runs the semantic and domain phases on an already-parsed bundle.
func Validate(app *App) []*ValidationError {
	var all []*ValidationError
	all = append(all, validateSemantic(app)...)
	all = append(all, ValidateDomain(app)...)
	return all
}

// validateSemantic validates the bundle against the reflected JSON Schema.
func validateSemantic(app *App) []*ValidationError {
	data, err := json.Marshal(app)
	if err != nil {
		return semanticFailure("marshal for schema validation: %v", err)
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return semanticFailure("generate schema: %v", err)
	}

	var schemaDoc interface{}
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return semanticFailure("unmarshal schema: %v", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("app-v1.json", schemaDoc); err != nil {
		return semanticFailure("add schema resource: %v", err)
	}

	sch, err := c.Compile("app-v1.json")
	if err != nil {
		return semanticFailure("compile schema: %v", err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return semanticFailure("unmarshal document: %v", err)
	}

	if err := sch.Validate(doc); err != nil {
		var errs []*ValidationError
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenValidationErrors(ve) {
				errs = append(errs, &ValidationError{
					Phase:    "semantic",
					Path:     strings.Join(cause.InstanceLocation, "/"),
					Message:  fmt.Sprintf("%v", cause.ErrorKind),
					Severity: "error",
				})
			}
		} else {
			errs = append(errs, &ValidationError{
				Phase:    "semantic",
				Message:  err.Error(),
				Severity: "error",
			})
		}
		return errs
	}
	return nil
}

func semanticFailure(format string, args ...any) []*ValidationError {
	return []*ValidationError{{
		Phase:    "semantic",
		Message:  fmt.Sprintf(format, args...),
		Severity: "error",
	}}
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// requiredParams lists the parameters an action kind needs to have any
// effect at runtime. Their absence is a warning, never an error: the
// handlers treat missing parameters as a silent no-op.
var requiredParams = map[Kind][]string{
	KindDeleteRow:           {"tableId", "rowId", "revId"},
	KindExecuteQuery:        {"datasourceId", "queryId"},
	KindTriggerAutomation:   {"automationId", "fields"},
	KindNavigateTo:          {"url"},
	KindValidateForm:        {"componentId"},
	KindRefreshDataProvider: {"componentId"},
	KindClearForm:           {"componentId"},
	KindChangeFormStep:      {"componentId"},
	KindUpdateState:         {"type", "key"},
}

// bindingRef matches a {{ ... }} binding expression inside a string param.
var bindingRef = regexp.MustCompile(`\{\{[^}]*\}\}`)

// ValidateDomain performs Phase 3 domain-level validation.
func ValidateDomain(app *App) []*ValidationError {
	var errs []*ValidationError

	if app.APIVersion != "app/v1" {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "apiVersion",
			Message:  fmt.Sprintf("unrecognized apiVersion %q, expected %q", app.APIVersion, "app/v1"),
			Severity: "error",
		})
	}

	screenIDs := make(map[string]bool)
	for si := range app.Screens {
		screen := &app.Screens[si]
		sPath := fmt.Sprintf("screens[%d]", si)

		if screenIDs[screen.ID] {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     sPath + ".id",
				Message:  fmt.Sprintf("duplicate screen id %q", screen.ID),
				Severity: "error",
			})
		}
		screenIDs[screen.ID] = true

		componentIDs := make(map[string]bool)
		for ci := range screen.Components {
			comp := &screen.Components[ci]
			cPath := fmt.Sprintf("%s.components[%d]", sPath, ci)

			if componentIDs[comp.ID] {
				errs = append(errs, &ValidationError{
					Phase:    "domain",
					Path:     cPath + ".id",
					Message:  fmt.Sprintf("duplicate component id %q on screen %q", comp.ID, screen.ID),
					Severity: "error",
				})
			}
			componentIDs[comp.ID] = true

			events := make(map[string]bool)
			for ti := range comp.Triggers {
				trig := &comp.Triggers[ti]
				tPath := fmt.Sprintf("%s.triggers[%d]", cPath, ti)

				if events[trig.Event] {
					errs = append(errs, &ValidationError{
						Phase:    "domain",
						Path:     tPath + ".event",
						Message:  fmt.Sprintf("component %q declares event %q twice; one chain per event", comp.ID, trig.Event),
						Severity: "error",
					})
				}
				events[trig.Event] = true

				for ai := range trig.Actions {
					errs = append(errs, validateAction(&trig.Actions[ai], fmt.Sprintf("%s.actions[%d]", tPath, ai))...)
				}
			}
		}
	}

	return errs
}

// validateAction checks one action descriptor. Runtime tolerates almost
// anything (unknown kinds skip, missing params no-op), so most findings
// here are warnings that tell the author what will silently not happen.
func validateAction(act *Action, path string) []*ValidationError {
	var errs []*ValidationError

	kind, builtin := Normalize(act.Kind)
	if !builtin {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     path + ".kind",
			Message:  fmt.Sprintf("unknown action kind %q — skipped at runtime unless a custom handler is registered", act.Kind),
			Severity: "warning",
		})
	}

	for _, name := range requiredParams[kind] {
		if _, ok := act.Params[name]; !ok {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     path + ".params." + name,
				Message:  fmt.Sprintf("%s without %q is a no-op at runtime", kind, name),
				Severity: "warning",
			})
		}
	}

	if _, hasText := act.Params["confirmText"]; hasText {
		if c, ok := act.Params["confirm"]; !ok || c == false {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     path + ".params.confirmText",
				Message:  "confirmText has no effect without confirm: true",
				Severity: "warning",
			})
		}
	}

	if us, ok := act.Params["type"].(string); ok && kind == KindUpdateState {
		if us != "set" && us != "delete" {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     path + ".params.type",
				Message:  fmt.Sprintf("update-state type must be \"set\" or \"delete\", got %q", us),
				Severity: "warning",
			})
		}
	}

	if cond, ok := act.Params["condition"].(string); ok && cond != "" {
		if _, err := expr.Compile(cond); err != nil {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     path + ".params.condition",
				Message:  fmt.Sprintf("condition does not compile: %v", err),
				Severity: "warning",
			})
		}
	}

	errs = append(errs, checkBindings(act.Params, path+".params")...)
	return errs
}

// checkBindings walks string parameters looking for malformed binding
// expressions: an opening {{ with no closing }} on the same value.
func checkBindings(v any, path string) []*ValidationError {
	var errs []*ValidationError
	switch t := v.(type) {
	case string:
		stripped := bindingRef.ReplaceAllString(t, "")
		if strings.Contains(stripped, "{{") || strings.Contains(stripped, "}}") {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     path,
				Message:  fmt.Sprintf("unbalanced binding braces in %q", t),
				Severity: "warning",
			})
		}
	case map[string]any:
		for k, val := range t {
			errs = append(errs, checkBindings(val, path+"."+k)...)
		}
	case []any:
		for i, val := range t {
			errs = append(errs, checkBindings(val, fmt.Sprintf("%s[%d]", path, i))...)
		}
	}
	return errs
}
