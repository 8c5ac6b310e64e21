package cli

import (
	"os"

	"github.com/charmbracelet/huh"
)

// newAccessibleForm wraps huh.NewForm, switching to huh's plain-text
// accessible mode when ACCESSIBLE is set, so the interactive
// doctor/init prompts work with screen readers.
func newAccessibleForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...)
	if os.Getenv("ACCESSIBLE") != "" {
		form = form.WithAccessible(true)
	}
	return form
}
