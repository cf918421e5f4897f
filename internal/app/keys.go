package app

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up          key.Binding
	Down        key.Binding
	PrevPage    key.Binding
	NextPage    key.Binding
	PerPage     key.Binding
	NextEntity  key.Binding
	PrevEntity  key.Binding
	Sort        key.Binding
	Reverse     key.Binding
	Filter      key.Binding
	FilterField key.Binding
	Open        key.Binding
	Back        key.Binding
	Refresh     key.Binding
	Help        key.Binding
	Quit        key.Binding
}

var keys = keyMap{
	Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	PrevPage:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev page")),
	NextPage:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next page")),
	PerPage:     key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "rows per page")),
	NextEntity:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next table")),
	PrevEntity:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev table")),
	Sort:        key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort column")),
	Reverse:     key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "reverse sort")),
	Filter:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
	FilterField: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter column")),
	Open:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
	Back:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Refresh:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Sort, k.Filter, k.NextPage, k.NextEntity, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PrevPage, k.NextPage, k.PerPage},
		{k.Sort, k.Reverse, k.Filter, k.FilterField},
		{k.NextEntity, k.PrevEntity, k.Open, k.Back},
		{k.Refresh, k.Help, k.Quit},
	}
}
