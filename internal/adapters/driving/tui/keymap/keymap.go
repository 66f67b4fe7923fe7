// Package keymap holds the key bindings shared by the TUI views.
package keymap

import "github.com/charmbracelet/bubbles/key"

// KeyMap lists every binding. Views match on the binding, never on raw keys,
// so the help footer always reflects what a key does.
type KeyMap struct {
	Quit   key.Binding
	Help   key.Binding
	Back   key.Binding
	Submit key.Binding
	Up     key.Binding
	Down   key.Binding
	Select key.Binding

	// Search results.
	NewSearch key.Binding
	Narrow    key.Binding

	// Chat.
	Sources key.Binding
	NewChat key.Binding

	// Documents.
	Details key.Binding
	Delete  key.Binding
}

func bind(help, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(help, desc))
}

func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit:      bind("q", "quit", "q", "ctrl+c"),
		Help:      bind("?", "help", "?"),
		Back:      bind("esc", "back", "esc"),
		Submit:    bind("enter", "send", "enter"),
		Up:        bind("↑/k", "up", "up", "k"),
		Down:      bind("↓/j", "down", "down", "j"),
		Select:    bind("enter", "open", "enter"),
		NewSearch: bind("n", "new search", "n"),
		Narrow:    bind("f", "this document", "f"),
		Sources:   bind("tab", "sources", "tab"),
		NewChat:   bind("ctrl+n", "new chat", "ctrl+n"),
		Details:   bind("i", "details", "i"),
		Delete:    bind("d", "delete", "d"),
	}
}

// ShortHelp is the footer shown when a view sets no hints of its own.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Help}
}

func (k *KeyMap) ResultsHelp() []key.Binding {
	return []key.Binding{k.NewSearch, k.Up, k.Select, k.Narrow, k.Back}
}

func (k *KeyMap) ChatHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Sources, k.NewChat, k.Back}
}

func (k *KeyMap) DocumentsHelp() []key.Binding {
	return []key.Binding{k.Select, k.Details, k.Delete, k.Back}
}

// FullHelp groups bindings by view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select},
		{k.Submit, k.Sources, k.NewChat, k.NewSearch, k.Narrow},
		{k.Details, k.Delete, k.Back},
		{k.Help, k.Quit},
	}
}

// Matches reports whether keyStr is one of binding's keys.
func Matches(keyStr string, binding key.Binding) bool {
	for _, k := range binding.Keys() {
		if k == keyStr {
			return true
		}
	}
	return false
}
