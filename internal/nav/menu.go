package nav

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"zolo/internal/block"
	"zolo/internal/display"
)

// BackLabel is the option appended to menus that allow going back.
const BackLabel = "zBack"

// Option is one selectable menu entry. Value carries whatever the option
// source bound to the label (a key-jump target, a link, a record).
type Option struct {
	Label string
	Value any
}

// Menu is a built, renderable menu.
type Menu struct {
	Title     string
	Options   []Option
	AllowBack bool
}

// OptionSource is a callable option provider; it is realised eagerly at
// build time.
type OptionSource func() (any, error)

// BuildMenu normalises an option source into a Menu. Accepted sources:
// a list (labels double as values), an ordered block or map (key -> value),
// or an OptionSource callable.
func BuildMenu(source any, title string, allowBack bool) (*Menu, error) {
	m := &Menu{Title: title, AllowBack: allowBack}
	if err := m.addOptions(source); err != nil {
		return nil, err
	}
	if allowBack {
		m.Options = append(m.Options, Option{Label: BackLabel, Value: BackLabel})
	}
	return m, nil
}

func (m *Menu) addOptions(source any) error {
	switch src := source.(type) {
	case nil:
		return nil
	case OptionSource:
		realised, err := src()
		if err != nil {
			return fmt.Errorf("menu option source: %w", err)
		}
		return m.addOptions(realised)
	case []Option:
		m.Options = append(m.Options, src...)
	case []string:
		for _, s := range src {
			m.Options = append(m.Options, Option{Label: s, Value: s})
		}
	case []any:
		for _, it := range src {
			label := fmt.Sprintf("%v", it)
			m.Options = append(m.Options, Option{Label: label, Value: it})
		}
	case *block.Block:
		for _, k := range src.Keys() {
			v, _ := src.Get(k)
			m.Options = append(m.Options, Option{Label: k, Value: v})
		}
	case map[string]any:
		for _, k := range sortedMapKeys(src) {
			m.Options = append(m.Options, Option{Label: k, Value: src[k]})
		}
	default:
		return fmt.Errorf("unsupported menu option source: %T", source)
	}
	return nil
}

// View converts the menu to the display collaborator's shape.
func (m *Menu) View() display.MenuView {
	labels := make([]string, len(m.Options))
	for i, o := range m.Options {
		labels[i] = o.Label
	}
	return display.MenuView{Title: m.Title, Options: labels, AllowBack: m.AllowBack}
}

// Interact renders the menu and reads selections until a valid one
// arrives. Supports single index selection, comma-separated multi-select,
// and "/term" filtering (re-renders the options whose label contains term,
// case-insensitively; selection then indexes the filtered view).
func (m *Menu) Interact(d display.Display) ([]Option, error) {
	view := m.Options
	for {
		current := &Menu{Title: m.Title, Options: view, AllowBack: m.AllowBack}
		d.Menu(current.View())

		line, err := d.ReadLine("Select: ")
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			term := strings.ToLower(strings.TrimPrefix(line, "/"))
			filtered := make([]Option, 0, len(view))
			for _, o := range m.Options {
				if strings.Contains(strings.ToLower(o.Label), term) {
					filtered = append(filtered, o)
				}
			}
			if len(filtered) == 0 {
				d.Error(fmt.Sprintf("no options match %q", term))
				view = m.Options
				continue
			}
			view = filtered
			continue
		}

		picked, err := parseSelection(line, len(view))
		if err != nil {
			d.Error(err.Error())
			continue
		}
		out := make([]Option, len(picked))
		for i, idx := range picked {
			out[i] = view[idx]
		}
		return out, nil
	}
}

// Select resolves one already-known selection (bridge-delivered) against
// the option labels, falling back to a 1-based index.
func (m *Menu) Select(selected string) (Option, bool) {
	for _, o := range m.Options {
		if o.Label == selected {
			return o, true
		}
	}
	if idx, err := strconv.Atoi(selected); err == nil && idx >= 1 && idx <= len(m.Options) {
		return m.Options[idx-1], true
	}
	return Option{}, false
}

// parseSelection parses "3" or "1,4,2" into zero-based indices.
func parseSelection(line string, n int) ([]int, error) {
	parts := strings.Split(line, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		idx, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("not a selection: %q", part)
		}
		if idx < 1 || idx > n {
			return nil, fmt.Errorf("selection out of range: %d", idx)
		}
		out = append(out, idx-1)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty selection")
	}
	return out, nil
}

func sortedMapKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	// Maps have no author order; sorting keeps rendering deterministic.
	sort.Strings(out)
	return out
}
