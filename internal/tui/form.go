package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lukaszraczylo/localserve/internal/config"
	"github.com/lukaszraczylo/localserve/internal/hosts"
	"github.com/lukaszraczylo/localserve/internal/sites"
)

// FormField represents a form field index.
type FormField int

const (
	FieldType FormField = iota
	FieldName
	FieldHostname
	FieldCount
)

// Form handles the create-site form. The type field is a selector over the
// template catalog; name and hostname are text inputs.
type Form struct {
	fields []textinput.Model
	focus  FormField
	width  int
	height int

	types      []string
	typeCursor int
}

// NewForm creates a form offering the given template types.
func NewForm(types []string) *Form {
	fields := make([]textinput.Model, FieldCount)

	fields[FieldType] = textinput.New()

	fields[FieldName] = textinput.New()
	fields[FieldName].Placeholder = "blog"
	fields[FieldName].CharLimit = 128

	fields[FieldHostname] = textinput.New()
	fields[FieldHostname].Placeholder = "blog.local"
	fields[FieldHostname].CharLimit = 253

	f := &Form{fields: fields}
	f.SetTypes(types)
	return f
}

// SetTypes sets the selectable template types.
func (f *Form) SetTypes(types []string) {
	f.types = types
	if f.typeCursor >= len(f.types) {
		f.typeCursor = 0
	}
}

// Init resets the form.
func (f *Form) Init() {
	for i := range f.fields {
		f.fields[i].Reset()
		f.fields[i].Blur()
	}
	f.typeCursor = 0
	f.focus = FieldName
	f.fields[FieldName].Focus()
}

// SetSize sets the form dimensions.
func (f *Form) SetSize(width, height int) {
	f.width = width
	f.height = height

	inputWidth := min(50, width-10)
	for i := range f.fields {
		f.fields[i].Width = inputWidth
	}
}

// Update handles input events.
func (f *Form) Update(msg tea.Msg) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "tab", "down":
			f.nextField()
			return nil
		case "shift+tab", "up":
			f.prevField()
			return nil
		}

		if f.focus == FieldType {
			switch msg.String() {
			case "left", "h":
				if f.typeCursor > 0 {
					f.typeCursor--
				}
			case "right", "l":
				if f.typeCursor < len(f.types)-1 {
					f.typeCursor++
				}
			}
			return nil
		}
	}

	if f.focus == FieldType {
		return nil
	}
	var cmd tea.Cmd
	f.fields[f.focus], cmd = f.fields[f.focus].Update(msg)
	return cmd
}

func (f *Form) nextField() {
	f.moveFocus(1)
}

func (f *Form) prevField() {
	f.moveFocus(-1)
}

func (f *Form) moveFocus(delta int) {
	if f.focus != FieldType {
		f.fields[f.focus].Blur()
	}
	f.focus = (f.focus + FormField(delta) + FieldCount) % FieldCount
	if f.focus != FieldType {
		f.fields[f.focus].Focus()
	}
}

// Values returns the selected type, name and hostname.
func (f *Form) Values() (typ, name, hostname string) {
	if f.typeCursor < len(f.types) {
		typ = f.types[f.typeCursor]
	}
	return typ,
		strings.TrimSpace(f.fields[FieldName].Value()),
		strings.ToLower(strings.TrimSpace(f.fields[FieldHostname].Value()))
}

// Validate returns a user-facing message for the first invalid value, or "".
func (f *Form) Validate() string {
	typ, name, hostname := f.Values()

	switch {
	case typ == "":
		return "No site templates available"
	case name == "":
		return "Name is required"
	case hostname == "":
		return "Hostname is required"
	}

	if err := sites.ValidateName(name); err != nil {
		return err.Error()
	}
	if !hosts.ValidHostname(hostname) {
		return fmt.Sprintf("Invalid hostname %q", hostname)
	}
	if config.IsBlockedDomain(hostname) {
		return fmt.Sprintf("Hostname %q is protected", hostname)
	}
	return ""
}

// View renders the form.
func (f *Form) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Create Site"))
	sb.WriteString("\n\n")

	sb.WriteString(inputLabelStyle.Render("Type:"))
	sb.WriteString("\n")
	sb.WriteString(f.renderTypeSelector())
	sb.WriteString("\n\n")

	f.writeField(&sb, "Name:", FieldName)
	f.writeField(&sb, "Hostname:", FieldHostname)

	sb.WriteString("\n")
	sb.WriteString(WrapHelpText("Tab/↓ next • Shift+Tab/↑ prev • ←→ select type • Enter create • Esc cancel", f.width-8))

	return dialogStyle.Render(sb.String())
}

func (f *Form) writeField(sb *strings.Builder, label string, field FormField) {
	sb.WriteString(inputLabelStyle.Render(label))
	sb.WriteString("\n")
	style := inputStyle
	if f.focus == field {
		style = inputFocusStyle
	}
	sb.WriteString(style.Render(f.fields[field].View()))
	sb.WriteString("\n\n")
}

func (f *Form) renderTypeSelector() string {
	current := "(none)"
	if f.typeCursor < len(f.types) {
		current = f.types[f.typeCursor]
	}

	focused := f.focus == FieldType
	content := "   " + current + "   "
	if focused {
		left, right := "◀", "▶"
		if f.typeCursor == 0 {
			left = " "
		}
		if f.typeCursor >= len(f.types)-1 {
			right = " "
		}
		content = left + "  " + current + "  " + right
	}
	if len(f.types) > 1 {
		content += fmt.Sprintf("  (%d/%d)", f.typeCursor+1, len(f.types))
	}

	if focused {
		return inputFocusStyle.Render(content)
	}
	return inputStyle.Render(content)
}
