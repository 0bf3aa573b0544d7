package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Top      key.Binding
	Bottom   key.Binding
	Expand   key.Binding
	More     key.Binding
	NextPage key.Binding
	Poll     key.Binding
	ShowAll  key.Binding
	Filter   key.Binding
	Debug    key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Top:      key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Bottom:   key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
		Expand:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "comments")),
		More:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "more replies")),
		NextPage: key.NewBinding(key.WithKeys("n", " "), key.WithHelp("n", "more")),
		Poll:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "poll")),
		ShowAll:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "all live")),
		Filter:   key.NewBinding(key.WithKeys("1", "2", "3", "4"), key.WithHelp("1-4", "filter")),
		Debug:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "debug")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// hints lists the bindings shown in the status bar.
func (k keyMap) hints() []key.Binding {
	return []key.Binding{k.Down, k.Expand, k.More, k.NextPage, k.Poll, k.ShowAll, k.Filter, k.Debug, k.Quit}
}
