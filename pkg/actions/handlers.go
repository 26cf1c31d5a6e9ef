package actions

import (
	"context"
	"strings"

	"github.com/weftworks/weft/pkg/providers"
	"github.com/weftworks/weft/pkg/schema"
)

// Capabilities bundles the injected collaborators the built-in
// handlers act through. Nil members make the corresponding kinds
// silent no-ops, which keeps dry-run and partial test setups cheap.
type Capabilities struct {
	Persistence providers.Persistence
	Router      providers.Router
	Auth        providers.Auth
	State       providers.StateStore
	Messenger   providers.Messenger
	Env         providers.Environment
	Delegates   *Delegates
}

// Builtins returns a registry holding the thirteen built-in handlers
// wired to caps.
func Builtins(caps Capabilities) *Registry {
	r := NewRegistry()
	r.Register(schema.KindSaveRow, caps.saveRow)
	r.Register(schema.KindDuplicateRow, caps.duplicateRow)
	r.Register(schema.KindDeleteRow, caps.deleteRow)
	r.Register(schema.KindNavigateTo, caps.navigateTo)
	r.Register(schema.KindExecuteQuery, caps.executeQuery)
	r.Register(schema.KindTriggerAutomation, caps.triggerAutomation)
	r.Register(schema.KindValidateForm, caps.delegateHandler(schema.KindValidateForm))
	r.Register(schema.KindRefreshDataProvider, caps.delegateHandler(schema.KindRefreshDataProvider))
	r.Register(schema.KindLogOut, caps.logOut)
	r.Register(schema.KindClearForm, caps.delegateHandler(schema.KindClearForm))
	r.Register(schema.KindChangeFormStep, caps.delegateHandler(schema.KindChangeFormStep))
	r.Register(schema.KindCloseScreenModal, caps.closeScreenModal)
	r.Register(schema.KindUpdateState, caps.updateState)
	return r
}

func (c Capabilities) navigateTo(ctx context.Context, act schema.Action, env map[string]any) (Outcome, error) {
	var p NavigateParams
	if err := decodeParams(act.Params, &p); err != nil {
		return Outcome{}, err
	}
	if p.URL == "" || c.Router == nil {
		return Continue(nil), nil
	}
	c.Router.Navigate(p.URL, p.Peek)
	return Continue(nil), nil
}

func (c Capabilities) executeQuery(ctx context.Context, act schema.Action, env map[string]any) (Outcome, error) {
	var p QueryParams
	if err := decodeParams(act.Params, &p); err != nil {
		return Outcome{}, err
	}
	if p.DatasourceID == "" || p.QueryID == "" || c.Persistence == nil {
		return Continue(nil), nil
	}
	result, err := c.Persistence.ExecuteQuery(ctx, p.DatasourceID, p.QueryID, p.QueryParams)
	if err != nil {
		return Outcome{}, err
	}
	return Continue(map[string]any{"result": result}), nil
}

func (c Capabilities) triggerAutomation(ctx context.Context, act schema.Action, env map[string]any) (Outcome, error) {
	var p AutomationParams
	if err := decodeParams(act.Params, &p); err != nil {
		return Outcome{}, err
	}
	if p.AutomationID == "" || p.Fields == nil || c.Persistence == nil {
		return Continue(nil), nil
	}
	if err := c.Persistence.TriggerAutomation(ctx, p.AutomationID, p.Fields); err != nil {
		return Outcome{}, err
	}
	return Continue(nil), nil
}

// delegateHandler builds the handler for a component-targeted kind.
// The delegate receives the full enriched param map; a missing
// componentId or an unregistered delegate is a silent no-op whose nil
// result still lands in the result log (the handler ran and returned
// nothing).
func (c Capabilities) delegateHandler(kind schema.Kind) Handler {
	return func(ctx context.Context, act schema.Action, env map[string]any) (Outcome, error) {
		var p ComponentParams
		if err := decodeParams(act.Params, &p); err != nil {
			return Outcome{}, err
		}
		if p.ComponentID == "" || c.Delegates == nil {
			return Continue(nil), nil
		}
		fn, ok := c.Delegates.Get(p.ComponentID, kind)
		if !ok {
			return Continue(nil), nil
		}
		result, err := fn(ctx, act.Params)
		if err != nil {
			return Outcome{}, err
		}
		return Continue(result), nil
	}
}

func (c Capabilities) logOut(ctx context.Context, act schema.Action, env map[string]any) (Outcome, error) {
	var p LogOutParams
	if err := decodeParams(act.Params, &p); err != nil {
		return Outcome{}, err
	}
	if c.Auth != nil {
		if err := c.Auth.LogOut(ctx); err != nil {
			return Outcome{}, err
		}
	}
	if c.Router == nil {
		return Continue(nil), nil
	}

	// External destinations leave the app outright; everything else is
	// an internal path that gets a reload once the navigation lands.
	if strings.HasPrefix(p.RedirectURL, "http://") || strings.HasPrefix(p.RedirectURL, "https://") {
		c.Router.NavigatePage(p.RedirectURL)
		return Continue(nil), nil
	}
	dest := p.RedirectURL
	if dest == "" {
		dest = "/"
	}
	c.Router.NavigatePage(c.Router.FullURL(dest))
	c.Router.Reload()
	return Continue(nil), nil
}

func (c Capabilities) closeScreenModal(ctx context.Context, act schema.Action, env map[string]any) (Outcome, error) {
	if c.Messenger != nil {
		c.Messenger.PostMessage(providers.HostMessage{Type: "close-screen-modal"})
	}
	return Continue(nil), nil
}

func (c Capabilities) updateState(ctx context.Context, act schema.Action, env map[string]any) (Outcome, error) {
	var p UpdateStateParams
	if err := decodeParams(act.Params, &p); err != nil {
		return Outcome{}, err
	}
	if p.Key == "" || c.State == nil {
		return Continue(nil), nil
	}

	switch p.Type {
	case "set":
		if err := c.State.SetValue(ctx, p.Key, p.Value, p.Persist); err != nil {
			return Outcome{}, err
		}
	case "delete":
		if err := c.State.DeleteValue(ctx, p.Key); err != nil {
			return Outcome{}, err
		}
	default:
		return Continue(nil), nil
	}

	// In embedded mode the parent frame keeps its own copy of the
	// state; mirror the update across the frame boundary.
	if c.Env != nil && c.Env.Embedded() && c.Messenger != nil {
		c.Messenger.PostMessage(providers.HostMessage{
			Type: "update-state",
			Detail: map[string]any{
				"type":    p.Type,
				"key":     p.Key,
				"value":   p.Value,
				"persist": p.Persist,
			},
		})
	}
	return Continue(nil), nil
}
