// Package diagram renders a screen's triggers and their action chains.
// Supports Mermaid flowchart and ASCII formats.
package diagram

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/weftworks/weft/pkg/schema"
)

// Format represents the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// Generate produces a diagram string for one screen of the app.
func Generate(app *schema.App, screenID string, format Format) (string, error) {
	if app == nil {
		return "", fmt.Errorf("nil app")
	}
	scr := app.Screen(screenID)
	if scr == nil {
		return "", fmt.Errorf("screen %q not found", screenID)
	}
	chains := collectChains(scr)
	switch format {
	case FormatMermaid:
		return generateMermaid(scr, chains), nil
	case FormatASCII:
		return generateASCII(scr, chains), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

// --- Mermaid flowchart ---

func generateMermaid(scr *schema.Screen, chains []chainView) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	for _, ch := range chains {
		startID := safeID(ch.component + "_" + ch.event)
		b.WriteString(fmt.Sprintf("    %s([%s · %s])\n",
			startID, escMermaid(ch.component), escMermaid(ch.event)))

		prev := startID
		for i, a := range ch.actions {
			id := fmt.Sprintf("%s_%d", startID, i)
			b.WriteString("    " + nodeDefinition(id, a) + "\n")

			if a.confirm {
				// Gate is a decision node; dismissal stops the chain.
				b.WriteString(fmt.Sprintf("    %s --> %s\n", prev, id))
				stopID := id + "_dismissed"
				b.WriteString(fmt.Sprintf("    %s([⊘ dismissed])\n", stopID))
				b.WriteString(fmt.Sprintf("    %s -->|\"dismiss\"| %s\n", id, stopID))
				b.WriteString(fmt.Sprintf("    style %s %s\n", stopID, styleDismissed))
				prev = id
				continue
			}
			b.WriteString(fmt.Sprintf("    %s --> %s\n", prev, id))
			prev = id
		}

		endID := startID + "_done"
		b.WriteString(fmt.Sprintf("    %s([✓ completed])\n", endID))
		edge := fmt.Sprintf("    %s --> %s\n", prev, endID)
		if n := len(ch.actions); n > 0 && ch.actions[n-1].confirm {
			edge = fmt.Sprintf("    %s -->|\"approve\"| %s\n", prev, endID)
		}
		b.WriteString(edge)
		b.WriteString(fmt.Sprintf("    style %s %s\n", endID, styleCompleted))

		// Approve edges between a gate and its successor.
		for i, a := range ch.actions {
			if !a.confirm || i == len(ch.actions)-1 {
				continue
			}
			b.WriteString(fmt.Sprintf("    %s_%d -->|\"approve\"| %s_%d\n",
				startID, i, startID, i+1))
		}
	}

	// Delegate-backed actions get a distinct fill.
	for _, ch := range chains {
		startID := safeID(ch.component + "_" + ch.event)
		for i, a := range ch.actions {
			if a.delegate {
				b.WriteString(fmt.Sprintf("    style %s_%d fill:#1a3a4a,stroke:#0af\n",
					startID, i))
			}
		}
	}

	return b.String()
}

const (
	styleCompleted = "fill:#0d6,stroke:#0a5,color:#fff"
	styleDismissed = "fill:#e60,stroke:#c40,color:#fff"
)

func nodeDefinition(id string, a actionView) string {
	label := escMermaid(string(a.kind))
	targetSuffix := ""
	if a.target != "" {
		targetSuffix = "<br/>→ " + escMermaid(a.target)
	}
	condSuffix := ""
	if a.condition != "" {
		condSuffix = "<br/>when: " + escMermaid(truncate(a.condition, 30))
	}

	if a.confirm {
		text := a.confirmText
		if text == "" {
			text = "confirm?"
		}
		return fmt.Sprintf(`%s{"? %s<br/>%s"}`, id, escMermaid(truncate(text, 40)), label)
	}
	if a.delegate {
		return fmt.Sprintf(`%s[/"📎 %s%s"/]`, id, label, targetSuffix)
	}
	return fmt.Sprintf(`%s["%s %s%s%s"]`, id, kindIcon(a.kind), label, targetSuffix, condSuffix)
}

// --- ASCII ---

func generateASCII(scr *schema.Screen, chains []chainView) string {
	var b strings.Builder

	name := scr.Title
	if name == "" {
		name = scr.ID
	}
	if len(chains) == 0 {
		b.WriteString(name + " (no triggers)\n")
		return b.String()
	}

	// Compute uniform box width so every box and connector aligns.
	const indent = 8
	boxWidth := computeUniformBoxWidth(chains, name)
	connCol := indent + 1 + boxWidth/2 // +1 accounts for the └/┌ border character
	pad := strings.Repeat(" ", indent)
	connPad := strings.Repeat(" ", connCol)

	// Header — same width as body boxes, name centered.
	headerText := centerPad(name, boxWidth)
	mid := boxWidth / 2
	b.WriteString(pad + "╔" + strings.Repeat("═", boxWidth) + "╗\n")
	b.WriteString(pad + "║" + headerText + "║\n")
	b.WriteString(pad + "╚" + strings.Repeat("═", mid) + "╧" + strings.Repeat("═", boxWidth-mid-1) + "╝\n")

	for _, ch := range chains {
		label := " " + ch.component + " · " + ch.event
		b.WriteString("\n" + pad + label + "\n")
		b.WriteString(connPad + "│\n")

		for _, a := range ch.actions {
			writeASCIIAction(&b, a, indent, boxWidth)
			b.WriteString(connPad + "│\n")
		}

		b.WriteString(strings.Repeat(" ", connCol-2) + "✓ completed\n")
	}

	return b.String()
}

// computeUniformBoxWidth returns the widest interior width needed
// across all actions and the header name.
func computeUniformBoxWidth(chains []chainView, name string) int {
	minWidth := 22
	w := minWidth

	// Header name with padding
	nameWidth := runewidth.StringWidth(name) + 4 // "  name  "
	if nameWidth > w {
		w = nameWidth
	}

	for _, ch := range chains {
		lw := runewidth.StringWidth(" " + ch.component + " · " + ch.event)
		if lw > w {
			w = lw
		}
		for _, a := range ch.actions {
			if aw := actionContentWidth(a); aw > w {
				w = aw
			}
		}
	}
	return w
}

// actionContentWidth returns the interior width a single action box
// needs.
func actionContentWidth(a actionView) int {
	content := fmt.Sprintf(" %s %s ", kindIcon(a.kind), a.kind)
	w := runewidth.StringWidth(content)
	if a.target != "" {
		tLine := " → " + a.target
		if tw := runewidth.StringWidth(tLine); tw > w {
			w = tw
		}
	}
	if a.confirm {
		cLine := " ? " + truncate(a.confirmText, 36)
		if cw := runewidth.StringWidth(cLine); cw > w {
			w = cw
		}
	}
	return w
}

// centerPad centers s within width using spaces, based on display width.
func centerPad(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	total := width - sw
	left := total / 2
	right := total - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

func writeASCIIAction(b *strings.Builder, a actionView, indent, boxWidth int) {
	content := fmt.Sprintf(" %s %s ", kindIcon(a.kind), a.kind)
	contentWidth := runewidth.StringWidth(content)

	pad := strings.Repeat(" ", indent)
	mid := boxWidth / 2

	// Gated actions carry a ◇ at the top border center and the
	// confirmation text inside; dismissal exits to the right.
	topMark := "─"
	if a.confirm {
		topMark = "◇"
	}
	b.WriteString(pad + "┌" + strings.Repeat("─", mid) + topMark + strings.Repeat("─", boxWidth-mid-1) + "┐\n")
	b.WriteString(pad + "│" + content + strings.Repeat(" ", boxWidth-contentWidth) + "│\n")
	if a.confirm {
		cLine := " ? " + truncate(a.confirmText, 36)
		cWidth := runewidth.StringWidth(cLine)
		b.WriteString(pad + "│" + cLine + strings.Repeat(" ", boxWidth-cWidth) + "│──⊘ dismiss\n")
	}
	if a.target != "" {
		tLine := " → " + a.target
		tWidth := runewidth.StringWidth(tLine)
		b.WriteString(pad + "│" + tLine + strings.Repeat(" ", boxWidth-tWidth) + "│\n")
	}
	b.WriteString(pad + "└" + strings.Repeat("─", mid) + "┬" + strings.Repeat("─", boxWidth-mid-1) + "┘\n")
}

func kindIcon(kind schema.Kind) string {
	switch kind {
	case schema.KindSaveRow, schema.KindDuplicateRow:
		return "💾"
	case schema.KindDeleteRow:
		return "🗑"
	case schema.KindNavigateTo:
		return "🧭"
	case schema.KindExecuteQuery:
		return "🔍"
	case schema.KindTriggerAutomation:
		return "⚙"
	case schema.KindLogOut:
		return "🚪"
	case schema.KindUpdateState:
		return "🧩"
	default:
		if schema.IsDelegate(kind) {
			return "📎"
		}
		return "◯"
	}
}

// --- chain extraction ---

type chainView struct {
	component string
	event     string
	actions   []actionView
}

type actionView struct {
	kind        schema.Kind
	confirm     bool
	confirmText string
	condition   string
	target      string
	delegate    bool
}

func collectChains(scr *schema.Screen) []chainView {
	var result []chainView
	for _, comp := range scr.Components {
		for _, tr := range comp.Triggers {
			ch := chainView{component: comp.ID, event: tr.Event}
			for _, act := range tr.Actions {
				kind, _ := schema.Normalize(act.Kind)
				av := actionView{kind: kind, delegate: schema.IsDelegate(kind)}
				if schema.WantsConfirm(act.Params) {
					av.confirm = true
					av.confirmText = schema.ConfirmText(kind, act.Params)
				}
				if cond, ok := act.Params["condition"].(string); ok {
					av.condition = cond
				}
				if av.delegate {
					if t, ok := act.Params["componentId"].(string); ok {
						av.target = t
					}
				}
				ch.actions = append(ch.actions, av)
			}
			result = append(result, ch)
		}
	}
	return result
}

// --- string helpers ---

func safeID(id string) string {
	r := strings.NewReplacer("-", "_", " ", "_", ".", "_", "/", "_")
	return r.Replace(id)
}

func escMermaid(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	s = strings.ReplaceAll(s, `'`, "#apos;")
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
