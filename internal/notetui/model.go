// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package notetui is a minimal bubbletea shell over [internal/app.App]: a
// scrollable note list, a read/edit pane, and a status line reporting sync
// state. It is deliberately small — grounded on the teacher's
// internal/tui page-router shape (one active page, global ctrl+c,
// lipgloss styling) but scaled to this module's much smaller surface
// (notes only, no vault record types).
package notetui

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/corevault-io/core/internal/app"
	"github.com/corevault-io/core/internal/item"
	syncctl "github.com/corevault-io/core/internal/sync"
	"github.com/corevault-io/core/models"
)

var (
	appStyle   = lipgloss.NewStyle().Padding(1, 2)
	titleStyle = lipgloss.NewStyle().Bold(true)
	helpStyle  = lipgloss.NewStyle().Faint(true)
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	selStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
)

type focus int

const (
	focusList focus = iota
	focusEditor
)

// Model is the root bubbletea model for the notes shell.
type Model struct {
	app *app.App
	ctx context.Context

	notes []item.Item
	idx   int
	focus focus

	editTitle string
	editBody  string
	editField int // 0 = title, 1 = body

	syncing bool
	spinner spinner.Model
	status  string
	lastErr error
}

// New returns a Model bound to a (launched) app.App.
func New(ctx context.Context, a *app.App) Model {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	m := Model{app: a, ctx: ctx, spinner: s}
	m.reload()
	return m
}

func (m *Model) reload() {
	m.notes = m.app.Items().Collection().OfType(models.ContentTypeNote)
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

type syncDoneMsg struct{ err error }

func (m Model) runSync() tea.Cmd {
	return func() tea.Msg {
		err := m.app.Sync().Sync(m.ctx, syncctl.ModeDefault, syncctl.QueueDefault)
		return syncDoneMsg{err: err}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case syncDoneMsg:
		m.syncing = false
		m.reload()
		if msg.err != nil {
			m.status = ""
			m.lastErr = msg.err
		} else {
			m.lastErr = nil
			m.status = "synced at " + time.Now().Format("15:04:05")
		}
		return m, nil

	case spinner.TickMsg:
		if !m.syncing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.focus {
		case focusList:
			return m.updateList(msg)
		case focusEditor:
			return m.updateEditor(msg)
		}
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.idx > 0 {
			m.idx--
		}
	case "down", "j":
		if m.idx < len(m.notes)-1 {
			m.idx++
		}
	case "n":
		m.focus = focusEditor
		m.editTitle, m.editBody, m.editField = "", "", 0
		m.idx = -1
	case "enter", "e":
		if note, ok := m.current(); ok {
			content, err := item.DecodeContent[models.NoteContent](note)
			if err != nil {
				m.lastErr = err
				return m, nil
			}
			m.editTitle, m.editBody = content.Title, content.Text
			m.editField = 0
			m.focus = focusEditor
		}
	case "y":
		if note, ok := m.current(); ok {
			content, err := item.DecodeContent[models.NoteContent](note)
			if err == nil {
				_ = clipboard.WriteAll(content.Text)
				m.status = "copied note text to clipboard"
			}
		}
	case "s":
		m.syncing = true
		m.status = ""
		return m, tea.Batch(m.spinner.Tick, m.runSync())
	}
	return m, nil
}

func (m Model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.focus = focusList
		return m, nil
	case "tab":
		m.editField = (m.editField + 1) % 2
		return m, nil
	case "ctrl+s":
		m.save()
		m.focus = focusList
		m.reload()
		return m, nil
	case "backspace":
		m.editCurrentField(func(s string) string {
			if len(s) == 0 {
				return s
			}
			return s[:len(s)-1]
		})
		return m, nil
	case "enter":
		if m.editField == 1 {
			m.editCurrentField(func(s string) string { return s + "\n" })
		}
		return m, nil
	}
	if msg.Type == tea.KeyRunes {
		m.editCurrentField(func(s string) string { return s + string(msg.Runes) })
	}
	return m, nil
}

func (m *Model) editCurrentField(fn func(string) string) {
	if m.editField == 0 {
		m.editTitle = fn(m.editTitle)
	} else {
		m.editBody = fn(m.editBody)
	}
}

func (m *Model) current() (item.Item, bool) {
	if m.idx < 0 || m.idx >= len(m.notes) {
		return item.Item{}, false
	}
	return m.notes[m.idx], true
}

// save applies the staged edit either to the selected note (via a
// [item.Mutator]) or, when no note is selected, creates a brand-new one.
func (m *Model) save() {
	now := time.Now()
	refs := []models.Reference{}

	if note, ok := m.current(); ok {
		mut, err := item.NewMutator(note)
		if err != nil {
			m.lastErr = err
			return
		}
		mut.SetField("title", m.editTitle)
		mut.SetField("text", m.editBody)
		payload := mut.Apply(item.MutationTypeUserInteraction, now)
		m.app.ApplyLocalEdit(payload)
		return
	}

	payload := item.NewItemPayload(m.app.NewUUID(), models.ContentTypeNote, map[string]any{
		"title": m.editTitle, "text": m.editBody, "references": refs,
	}, now)
	m.app.ApplyLocalEdit(payload)
}

// View implements tea.Model.
func (m Model) View() string {
	if m.focus == focusEditor {
		return appStyle.Render(m.editorView())
	}
	return appStyle.Render(m.listView())
}

func (m Model) listView() string {
	header := "corevault notes"
	if m.syncing {
		header += "  " + m.spinner.View()
	}
	out := titleStyle.Render(header) + "\n\n"
	if len(m.notes) == 0 {
		out += "No notes yet. Press n to create one.\n"
	}
	for i, it := range m.notes {
		content, err := item.DecodeContent[models.NoteContent](it)
		title := it.UUID()
		if err == nil {
			title = content.Title
		}
		if it.Payload.ErrorDecrypting {
			title += " [error decrypting]"
		} else if it.Payload.WaitingForKey {
			title += " [waiting for key]"
		}
		line := title
		if i == m.idx {
			line = selStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		out += line + "\n"
	}
	out += "\n" + helpStyle.Render("j/k move · enter edit · n new · y copy · s sync · q quit")
	if m.status != "" {
		out += "\n" + m.status
	}
	if m.lastErr != nil {
		out += "\n" + errStyle.Render(m.lastErr.Error())
	}
	return out
}

func (m Model) editorView() string {
	titleField, bodyField := m.editTitle, m.editBody
	if m.editField == 0 {
		titleField += "█"
	} else {
		bodyField += "█"
	}
	out := titleStyle.Render("edit note") + "\n\n"
	out += "Title: " + titleField + "\n\n"
	out += bodyField + "\n\n"
	out += helpStyle.Render("tab switch field · ctrl+s save · esc cancel")
	return out
}

// Run starts the bubbletea program and blocks until the user quits.
func Run(ctx context.Context, a *app.App) error {
	_, err := tea.NewProgram(New(ctx, a)).Run()
	return err
}
