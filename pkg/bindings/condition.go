package bindings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

func jsonEncoder(buf *bytes.Buffer) *json.Encoder {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return enc
}

// EvalCondition evaluates an action's condition guard against the
// context snapshot. Empty conditions are true. Expressions use
// expr-lang (status == "open", len(actions) > 0); values containing
// {{ }} fall back to template rendering with string truthiness, for
// bundles authored with binding syntax.
func EvalCondition(cond string, env map[string]any) (bool, error) {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return true, nil
	}

	if strings.Contains(cond, "{{") {
		val, err := resolveString(cond, env)
		if err != nil {
			return false, err
		}
		s := strings.TrimSpace(fmt.Sprintf("%v", val))
		return s != "" && s != "false" && s != "0" && s != "<no value>", nil
	}

	program, err := expr.Compile(cond, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("compile condition %q: %w", cond, err)
	}
	output, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("eval condition %q: %w", cond, err)
	}
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not return bool (got %T)", cond, output)
	}
	return result, nil
}
