package schema

import "strings"

// Kind identifies an action handler. Canonical identifiers are the
// kebab-case wire names; Normalize also accepts the display names used
// by older builder exports ("Save Row").
type Kind string

const (
	KindSaveRow             Kind = "save-row"
	KindDuplicateRow        Kind = "duplicate-row"
	KindDeleteRow           Kind = "delete-row"
	KindNavigateTo          Kind = "navigate-to"
	KindExecuteQuery        Kind = "execute-query"
	KindTriggerAutomation   Kind = "trigger-automation"
	KindValidateForm        Kind = "validate-form"
	KindRefreshDataProvider Kind = "refresh-data-provider"
	KindLogOut              Kind = "log-out"
	KindClearForm           Kind = "clear-form"
	KindChangeFormStep      Kind = "change-form-step"
	KindCloseScreenModal    Kind = "close-screen-modal"
	KindUpdateState         Kind = "update-state"
)

// BuiltinKinds lists the built-in kinds in display order.
var BuiltinKinds = []Kind{
	KindSaveRow,
	KindDuplicateRow,
	KindDeleteRow,
	KindNavigateTo,
	KindExecuteQuery,
	KindTriggerAutomation,
	KindValidateForm,
	KindRefreshDataProvider,
	KindLogOut,
	KindClearForm,
	KindChangeFormStep,
	KindCloseScreenModal,
	KindUpdateState,
}

// displayNames maps the builder's display spellings to canonical kinds.
var displayNames = map[string]Kind{
	"Save Row":              KindSaveRow,
	"Duplicate Row":         KindDuplicateRow,
	"Delete Row":            KindDeleteRow,
	"Navigate To":           KindNavigateTo,
	"Execute Query":         KindExecuteQuery,
	"Trigger Automation":    KindTriggerAutomation,
	"Validate Form":         KindValidateForm,
	"Refresh Data Provider": KindRefreshDataProvider,
	"Log Out":               KindLogOut,
	"Clear Form":            KindClearForm,
	"Change Form Step":      KindChangeFormStep,
	"Close Screen Modal":    KindCloseScreenModal,
	"Update State":          KindUpdateState,
}

// delegateKinds are the component-targeted kinds whose handlers route
// through the delegate registry instead of a platform capability.
var delegateKinds = map[Kind]bool{
	KindValidateForm:        true,
	KindRefreshDataProvider: true,
	KindClearForm:           true,
	KindChangeFormStep:      true,
}

// IsDelegate reports whether kind executes through a component
// delegate.
func IsDelegate(kind Kind) bool {
	return delegateKinds[kind]
}

var builtinSet = func() map[Kind]bool {
	m := make(map[Kind]bool, len(BuiltinKinds))
	for _, k := range BuiltinKinds {
		m[k] = true
	}
	return m
}()

// Normalize folds a raw kind string to its canonical Kind. The second
// return reports whether the kind is a built-in; unknown kinds pass
// through unchanged so custom registrations still resolve.
func Normalize(raw string) (Kind, bool) {
	if k, ok := displayNames[raw]; ok {
		return k, true
	}
	k := Kind(strings.TrimSpace(raw))
	return k, builtinSet[k]
}

// confirmDefaults holds the fallback confirmation texts. Only these
// four kinds have one; every other confirmable kind shows no text
// unless confirmText is set.
var confirmDefaults = map[Kind]string{
	KindDeleteRow:         "Are you sure you want to delete this row?",
	KindSaveRow:           "Are you sure you want to save this row?",
	KindExecuteQuery:      "Are you sure you want to run this query?",
	KindTriggerAutomation: "Are you sure you want to trigger this automation?",
}

// ConfirmText resolves the text a confirmation surface should display
// for an action: the explicit confirmText parameter, else the
// kind-specific default, else empty.
func ConfirmText(kind Kind, params map[string]any) string {
	if t, ok := params["confirmText"].(string); ok && t != "" {
		return t
	}
	return confirmDefaults[kind]
}

// WantsConfirm reports whether the (enriched) parameters request a
// confirmation gate. Enrichment may leave the flag as a bool or as a
// bound string.
func WantsConfirm(params map[string]any) bool {
	switch v := params["confirm"].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}
