package tui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/microhabits/internal/constants"
	apperrors "github.com/julianstephens/microhabits/internal/errors"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v-4)
		return m, nil

	case habitsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.canCreate = msg.canCreate
		return m, m.setHabits(msg.habits)

	case habitToggledMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, m.loadHabits()
		}
		m.err = nil
		m.replaceHabit(msg.habit)
		if msg.habit.Completed {
			m.status = fmt.Sprintf("Marked %s", msg.habit.Name)
		} else {
			m.status = fmt.Sprintf("Unmarked %s", msg.habit.Name)
		}
		return m, nil

	case habitAddedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, m.loadHabits()
		}
		m.err = nil
		m.status = fmt.Sprintf("Added %s", msg.habit.Name)
		return m, m.loadHabits()

	case habitDeletedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.status = fmt.Sprintf("Deleted %s", msg.name)
		}
		return m, m.loadHabits()

	case ReconciledMsg:
		cmds := []tea.Cmd{waitForResult(m.results)}
		if msg.Err != nil {
			m.err = msg.Err
		} else if len(msg.Reset) > 0 {
			m.status = fmt.Sprintf("New day: %d habit(s) ready to check off", len(msg.Reset))
			cmds = append(cmds, m.loadHabits())
		}
		return m, tea.Batch(cmds...)
	}

	switch m.state {
	case StateAddHabit:
		return m.updateAddHabit(msg)
	case StateConfirmDelete:
		return m.updateConfirmDelete(msg)
	}
	return m.updateList(msg)
}

func (m Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Toggle):
			if h, ok := m.selected(); ok {
				return m, m.toggleHabit(h.ID)
			}
			return m, nil
		case key.Matches(msg, m.keys.Add):
			if !m.canCreate {
				m.status = ""
				m.err = fmt.Errorf("%w: the free plan keeps up to %d habits, subscribe to add more",
					apperrors.ErrCapExceeded, constants.FreeTierHabitLimit)
				return m, nil
			}
			m.habitForm = &HabitFormModel{}
			m.form = newHabitForm(m.habitForm)
			m.state = StateAddHabit
			return m, m.form.Init()
		case key.Matches(msg, m.keys.Delete):
			if h, ok := m.selected(); ok {
				m.habitToDelete = &h
				m.state = StateConfirmDelete
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateAddHabit(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.Type == tea.KeyEsc {
		m.state = StateList
		m.form = nil
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.state = StateList
		m.form = nil
		return m, tea.Batch(cmd, m.addHabit(m.habitForm.Name, m.habitForm.Emoji))
	case huh.StateAborted:
		m.state = StateList
		m.form = nil
	}
	return m, cmd
}

func (m Model) updateConfirmDelete(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "y", "Y":
		h := m.habitToDelete
		m.habitToDelete = nil
		m.state = StateList
		if h == nil {
			return m, nil
		}
		return m, m.deleteHabit(*h)
	case "n", "N", "esc", "q":
		m.habitToDelete = nil
		m.state = StateList
	}
	return m, nil
}

// errorText renders the last error without the sentinel prefix for known cases.
func errorText(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return "That habit no longer exists."
	case errors.Is(err, apperrors.ErrConflict):
		return "The habit changed elsewhere, list reloaded."
	}
	return err.Error()
}
