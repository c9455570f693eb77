// Package tui is the interactive terminal checklist for one owner's habits.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/microhabits/internal/engine"
	"github.com/julianstephens/microhabits/internal/models"
	"github.com/julianstephens/microhabits/internal/reconciler"
)

type SessionState int

const (
	StateList SessionState = iota
	StateAddHabit
	StateConfirmDelete
)

type HabitFormModel struct {
	Name  string
	Emoji string
}

// Item is a habit row in the checklist.
type Item struct {
	Habit models.Habit
}

func (i Item) Title() string {
	box := "[ ]"
	if i.Habit.Completed {
		box = "[x]"
	}
	if i.Habit.Emoji != "" {
		return fmt.Sprintf("%s %s %s", box, i.Habit.Emoji, i.Habit.Name)
	}
	return fmt.Sprintf("%s %s", box, i.Habit.Name)
}

func (i Item) Description() string {
	days := "days"
	if i.Habit.Streak == 1 {
		days = "day"
	}
	if i.Habit.Completed {
		return fmt.Sprintf("🔥 %d %s · done today", i.Habit.Streak, days)
	}
	return fmt.Sprintf("🔥 %d %s", i.Habit.Streak, days)
}

func (i Item) FilterValue() string { return i.Habit.Name }

type Model struct {
	engine  *engine.Engine
	owner   string
	results <-chan reconciler.Result

	state         SessionState
	keys          KeyMap
	help          help.Model
	list          list.Model
	form          *huh.Form
	habitForm     *HabitFormModel
	canCreate     bool
	habitToDelete *models.Habit
	status        string
	err           error
	quitting      bool
	width         int
	height        int
}

// NewModel builds the checklist for owner. Reconciliation results received on
// results reload the list; results may be nil.
func NewModel(e *engine.Engine, owner string, results <-chan reconciler.Result) Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.KeyMap.Quit.SetEnabled(false)

	return Model{
		engine:    e,
		owner:     owner,
		results:   results,
		state:     StateList,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		list:      l,
		canCreate: true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadHabits(), waitForResult(m.results))
}

// Habits returns the habits currently shown.
func (m Model) Habits() []models.Habit {
	items := m.list.Items()
	habits := make([]models.Habit, 0, len(items))
	for _, it := range items {
		if i, ok := it.(Item); ok {
			habits = append(habits, i.Habit)
		}
	}
	return habits
}

func (m Model) State() SessionState { return m.state }

func (m Model) Status() string { return m.status }

func (m *Model) selected() (models.Habit, bool) {
	i, ok := m.list.SelectedItem().(Item)
	if !ok {
		return models.Habit{}, false
	}
	return i.Habit, true
}

func (m *Model) setHabits(habits []models.Habit) tea.Cmd {
	items := make([]list.Item, len(habits))
	for i, h := range habits {
		items[i] = Item{Habit: h}
	}
	return m.list.SetItems(items)
}

func (m *Model) replaceHabit(h models.Habit) {
	for idx, it := range m.list.Items() {
		if i, ok := it.(Item); ok && i.Habit.ID == h.ID {
			m.list.SetItem(idx, Item{Habit: h})
			return
		}
	}
}

func newHabitForm(fm *HabitFormModel) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Habit Name").
				Value(&fm.Name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("habit name cannot be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("Emoji (optional)").
				Value(&fm.Emoji),
		),
	).WithTheme(huh.ThemeDracula())
}

type habitsLoadedMsg struct {
	habits    []models.Habit
	canCreate bool
	err       error
}

type habitToggledMsg struct {
	habit models.Habit
	err   error
}

type habitAddedMsg struct {
	habit models.Habit
	err   error
}

type habitDeletedMsg struct {
	name string
	err  error
}

// ReconciledMsg carries one reconciliation pass into the program.
type ReconciledMsg reconciler.Result

func (m Model) loadHabits() tea.Cmd {
	e, owner := m.engine, m.owner
	return func() tea.Msg {
		ctx := context.Background()
		habits, err := e.ListHabits(ctx, owner)
		if err != nil {
			return habitsLoadedMsg{err: err}
		}
		canCreate, err := e.CanCreateHabit(ctx, owner)
		return habitsLoadedMsg{habits: habits, canCreate: canCreate, err: err}
	}
}

func (m Model) toggleHabit(id string) tea.Cmd {
	e, owner := m.engine, m.owner
	return func() tea.Msg {
		h, err := e.ToggleHabit(context.Background(), owner, id)
		return habitToggledMsg{habit: h, err: err}
	}
}

func (m Model) addHabit(name, emoji string) tea.Cmd {
	e, owner := m.engine, m.owner
	return func() tea.Msg {
		h, err := e.AddHabit(context.Background(), owner, name, emoji)
		return habitAddedMsg{habit: h, err: err}
	}
}

func (m Model) deleteHabit(h models.Habit) tea.Cmd {
	e, owner := m.engine, m.owner
	return func() tea.Msg {
		err := e.DeleteHabit(context.Background(), owner, h.ID)
		return habitDeletedMsg{name: h.Name, err: err}
	}
}

func waitForResult(results <-chan reconciler.Result) tea.Cmd {
	if results == nil {
		return nil
	}
	return func() tea.Msg {
		r, ok := <-results
		if !ok {
			return nil
		}
		return ReconciledMsg(r)
	}
}
