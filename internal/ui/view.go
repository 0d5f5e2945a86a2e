// Package ui renders the todo list in the terminal: an interactive
// bubbletea view driven by a todolist controller, and a static panel for
// one-shot commands.
package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/tada/internal/model"
)

// Controller is the presentation contract: the current list, a change
// signal and the three mutations.
type Controller interface {
	Todos() model.List
	Updates() <-chan struct{}
	Add(text string) (model.Item, bool)
	Remove(id int64)
	Update(item model.Item)
}

type focus int

const (
	focusInput focus = iota
	focusList
)

type todosChangedMsg struct{}

// listItem adapts model.Item to list.Item.
type listItem struct{ model.Item }

func (i listItem) FilterValue() string { return i.Text }

// itemDelegate draws each entry on a single line.
type itemDelegate struct{ theme Theme }

func (d itemDelegate) Height() int                         { return 1 }
func (d itemDelegate) Spacing() int                        { return 0 }
func (d itemDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}
	text := it.Text
	if it.Done {
		text = d.theme.DoneText.Render(text)
	}
	prefix := "  "
	if index == m.Index() {
		prefix = d.theme.Selected.Render(">") + " "
	}
	fmt.Fprint(w, prefix+d.theme.Box(it.Done)+" "+text)
}

var (
	toggleKey = key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("space", "toggle"))
	removeKey = key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "remove"))
	editKey   = key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit"))
	focusKey  = key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch focus"))
)

// View is the bubbletea model of the interactive screen.
type View struct {
	ctrl  Controller
	theme Theme

	list  list.Model
	input textinput.Model
	focus focus

	editing bool
	editID  int64
	errMsg  string

	width, height int
}

// NewView builds the screen over ctrl.
func NewView(ctrl Controller, theme Theme) *View {
	l := list.New(nil, itemDelegate{theme: theme}, 80, 20)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(true)
	l.Styles.HelpStyle = theme.Muted
	l.Styles.PaginationStyle = theme.Muted
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{toggleKey, removeKey, editKey, focusKey}
	}
	l.AdditionalFullHelpKeys = l.AdditionalShortHelpKeys

	in := textinput.New()
	in.Prompt = "> "
	in.Placeholder = "What needs to be done?"
	in.CharLimit = 200
	in.Focus()

	v := &View{
		ctrl:   ctrl,
		theme:  theme,
		list:   l,
		input:  in,
		width:  80,
		height: 24,
	}
	v.refresh()
	return v
}

// Run shows the view until the user quits or ctx is cancelled.
func Run(ctx context.Context, ctrl Controller, theme Theme) error {
	p := tea.NewProgram(NewView(ctrl, theme), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Init implements tea.Model.
func (v *View) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForUpdate(v.ctrl.Updates()))
}

func waitForUpdate(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return todosChangedMsg{}
	}
}

// Update implements tea.Model.
func (v *View) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width, v.height = msg.Width, msg.Height
		v.resize()
		return v, nil
	case todosChangedMsg:
		v.refresh()
		return v, waitForUpdate(v.ctrl.Updates())
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return v, tea.Quit
		}
		if v.focus == focusInput {
			return v.updateInput(msg)
		}
		return v.updateList(msg)
	}

	var cmd tea.Cmd
	if v.focus == focusInput {
		v.input, cmd = v.input.Update(msg)
	} else {
		v.list, cmd = v.list.Update(msg)
	}
	return v, cmd
}

func (v *View) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		text := strings.TrimSpace(v.input.Value())
		if text == "" {
			v.errMsg = "Title cannot be empty"
			return v, nil
		}
		if v.editing {
			if it, ok := v.ctrl.Todos().Find(v.editID); ok {
				it.Text = text
				v.ctrl.Update(it)
			}
			v.stopEditing()
		} else {
			v.ctrl.Add(text)
		}
		v.errMsg = ""
		v.input.SetValue("")
		v.refresh()
		return v, nil
	case "esc":
		if v.editing {
			v.stopEditing()
			v.input.SetValue("")
			return v, nil
		}
		return v, v.setFocus(focusList)
	case "tab":
		if v.editing {
			return v, nil
		}
		return v, v.setFocus(focusList)
	}
	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "q" || msg.String() == "esc":
		return v, tea.Quit
	case key.Matches(msg, focusKey), msg.String() == "a":
		return v, v.setFocus(focusInput)
	case key.Matches(msg, toggleKey):
		if it, ok := v.selected(); ok {
			v.ctrl.Update(it.Toggled())
			v.refresh()
		}
		return v, nil
	case key.Matches(msg, removeKey):
		if it, ok := v.selected(); ok {
			v.ctrl.Remove(it.ID)
			v.refresh()
		}
		return v, nil
	case key.Matches(msg, editKey):
		if it, ok := v.selected(); ok {
			v.editing = true
			v.editID = it.ID
			v.input.SetValue(it.Text)
			v.input.CursorEnd()
			return v, v.setFocus(focusInput)
		}
		return v, nil
	}
	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return v, cmd
}

func (v *View) setFocus(f focus) tea.Cmd {
	v.focus = f
	if f == focusInput {
		return v.input.Focus()
	}
	v.input.Blur()
	return nil
}

func (v *View) stopEditing() {
	v.editing = false
	v.editID = 0
}

func (v *View) selected() (model.Item, bool) {
	li, ok := v.list.SelectedItem().(listItem)
	if !ok {
		return model.Item{}, false
	}
	return li.Item, true
}

// refresh copies the controller's list into the list widget.
func (v *View) refresh() {
	todos := v.ctrl.Todos()
	items := make([]list.Item, len(todos))
	for i, it := range todos {
		items[i] = listItem{it}
	}
	v.list.SetItems(items)
	if idx := v.list.Index(); idx >= len(items) && len(items) > 0 {
		v.list.Select(len(items) - 1)
	}
}

func (v *View) resize() {
	// header, input box (3 lines), error line and panel border
	listHeight := v.height - 9
	if listHeight < 3 {
		listHeight = 3
	}
	v.list.SetSize(v.width-4, listHeight)
	v.input.Width = v.width - 10
}

// View implements tea.Model.
func (v *View) View() string {
	todos := v.ctrl.Todos()
	d, _ := todos.Stats()

	var b strings.Builder
	b.WriteString(Header(v.theme, todos))
	b.WriteString("  ")
	b.WriteString(v.theme.Muted.Render(ProgressBar(d, len(todos), 20)))
	b.WriteString("\n")

	title := "Add new item"
	if v.editing {
		title = "Edit item"
	}
	if v.focus != focusInput {
		title = v.theme.Muted.Render(title + " (tab)")
	}
	if v.errMsg != "" {
		title += " " + v.theme.Error.Render(v.errMsg)
	}
	b.WriteString(v.theme.Panel(title + "\n" + v.input.View()))
	b.WriteString("\n")

	if len(todos) == 0 {
		b.WriteString(v.theme.Muted.Render("  no items yet") + "\n")
	}
	b.WriteString(v.list.View())
	return v.theme.Panel(b.String())
}
