// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	phaseStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// tuiReviewWidth is the word-wrap width for the rendered AI review.
// bubbletea's initial View() render happens before a tea.WindowSizeMsg
// arrives, so a fixed width is used rather than plumbing terminal size
// through the model.
const tuiReviewWidth = 100

// phaseMsg and lineMsg are sent to the running program from the flow
// goroutine; resultMsg ends the program.
type phaseMsg string
type lineMsg string
type resultMsg flowResult

type tuiModel struct {
	spinner spinner.Model
	phase   string
	lines   []string
	result  *flowResult
}

func newTUIModel() tuiModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return tuiModel{spinner: s, phase: "starting"}
}

func (m tuiModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case phaseMsg:
		m.phase = string(msg)
		return m, nil
	case lineMsg:
		m.lines = append(m.lines, string(msg))
		return m, nil
	case resultMsg:
		res := flowResult(msg)
		m.result = &res
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	default:
		return m, nil
	}
}

func (m tuiModel) View() string {
	var b strings.Builder
	if m.result == nil {
		fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), phaseStyle.Render(m.phase))
	} else if m.result.Accepted {
		fmt.Fprintf(&b, "%s task %s complete\n", doneStyle.Render("done"), m.result.TaskID)
	} else {
		fmt.Fprintf(&b, "%s %s\n", failStyle.Render("failed"), m.result.FailReason)
	}
	for _, line := range m.lines {
		b.WriteString("  " + line + "\n")
	}
	if m.result != nil && m.result.AIReview != "" {
		b.WriteString("\n")
		b.WriteString(renderMarkdown(m.result.AIReview, tuiReviewWidth))
		b.WriteString("\n")
	}
	return b.String()
}

// tuiReporter forwards Phase/Line/Result calls into a running
// tea.Program via Send, so the flow goroutine never touches the model
// directly.
type tuiReporter struct {
	program *tea.Program
}

func (r tuiReporter) Phase(name string) {
	r.program.Send(phaseMsg(name))
}

func (r tuiReporter) Line(format string, args ...any) {
	r.program.Send(lineMsg(fmt.Sprintf(format, args...)))
}

func (r tuiReporter) Result(res flowResult) {
	r.program.Send(resultMsg(res))
}
