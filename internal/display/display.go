// Package display defines the display collaborator the core renders
// through. User-visible output - including error and access-denied
// messages - always goes through this interface so it appears identically
// in Terminal and Bifrost modes.
package display

// MenuView is what the menu subsystem hands to a renderer.
type MenuView struct {
	Title     string
	Options   []string
	AllowBack bool
}

// Display is the collaborator contract. The bundled terminal renderer and
// the bridge's JSON renderer both implement it.
type Display interface {
	// Text prints a plain text line.
	Text(s string)

	// Header prints a heading at the given indent level (1..6).
	Header(level int, s string)

	// Markdown renders a markdown fragment.
	Markdown(s string)

	// List renders items, ordered or unordered.
	List(items []string, ordered bool)

	// Table renders a header row plus data rows.
	Table(headers []string, rows [][]string)

	// URL renders a link.
	URL(label, href string)

	// Image renders (or references) an image.
	Image(src, alt string)

	// Menu renders a menu view. Selection happens via ReadLine.
	Menu(v MenuView)

	// ReadLine prompts and reads one line of input.
	ReadLine(prompt string) (string, error)

	// Confirm asks a yes/no question.
	Confirm(prompt string) (bool, error)

	// AccessDenied reports an RBAC denial to the user.
	AccessDenied(msg string)

	// Error reports a user-visible error.
	Error(msg string)
}
