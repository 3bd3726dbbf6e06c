package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	Upvote     key.Binding
	Downvote   key.Binding
	ToggleLock key.Binding
	FetchMore  key.Binding
	Reset      key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Upvote: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "upvote"),
		),
		Downvote: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "downvote"),
		),
		ToggleLock: key.NewBinding(
			key.WithKeys(" ", "space", "l"),
			key.WithHelp("space/l", "lock"),
		),
		FetchMore: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new jokes"),
		),
		Reset: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reset votes"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Upvote, k.Downvote, k.ToggleLock, k.FetchMore, k.Reset, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Upvote, k.Downvote, k.ToggleLock},
		{k.FetchMore, k.Reset},
		{k.Help, k.Quit},
	}
}
