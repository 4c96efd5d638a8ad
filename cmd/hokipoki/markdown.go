// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	markdownParserInstance goldmark.Markdown
	markdownParserOnce     sync.Once
)

func getMarkdownParser() goldmark.Markdown {
	markdownParserOnce.Do(func() {
		markdownParserInstance = goldmark.New()
	})
	return markdownParserInstance
}

// renderMarkdown parses the AI's AI_OUTPUT.md review and renders it as
// styled terminal output for the interactive TUI, word-wrapped to
// width. Fenced code blocks get Chroma syntax highlighting; the
// plainReporter's [HOKIPOKI_AI_REVIEW] block carries the text
// unrendered, since that path feeds an upstream AI CLI parser rather
// than a human terminal.
func renderMarkdown(input string, width int) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	source := []byte(input)
	reader := text.NewReader(source)
	document := getMarkdownParser().Parser().Parse(reader)

	// Force ANSI256: output always goes to the bubbletea TUI, so
	// terminal auto-detection (which would see a pipe, not the real
	// terminal) must not suppress color.
	lipRenderer := lipgloss.NewRenderer(io.Discard, termenv.WithProfile(termenv.ANSI256))
	lipRenderer.SetColorProfile(termenv.ANSI256)

	renderer := &markdownRenderer{source: source, width: width, lipRenderer: lipRenderer}
	ast.Walk(document, renderer.walk)
	return strings.TrimRight(renderer.output.String(), "\n")
}

// markdownRenderer walks a goldmark AST and produces styled terminal
// text directly, rather than going through goldmark's streaming
// renderer interface, since paragraph text needs to accumulate and
// word-wrap as a unit before being written out.
type markdownRenderer struct {
	source []byte
	width  int

	output strings.Builder
	inline strings.Builder

	prefixStack     []prefixLevel
	linePrefix      string
	linePrefixWidth int
	pendingBullet   string

	boldCount   int
	italicCount int

	listStack []listState

	lipRenderer      *lipgloss.Renderer
	trailingNewlines int
}

type prefixLevel struct {
	text  string
	width int
}

type listState struct {
	ordered bool
	counter int
	tight   bool
}

func (r *markdownRenderer) newStyle() lipgloss.Style {
	return r.lipRenderer.NewStyle()
}

func (r *markdownRenderer) currentWidth() int {
	width := r.width - r.linePrefixWidth
	if width < 10 {
		width = 10
	}
	return width
}

func (r *markdownRenderer) pushPrefix(prefixText string, visibleWidth int) {
	r.prefixStack = append(r.prefixStack, prefixLevel{text: prefixText, width: visibleWidth})
	r.linePrefix += prefixText
	r.linePrefixWidth += visibleWidth
}

func (r *markdownRenderer) popPrefix() {
	if len(r.prefixStack) == 0 {
		return
	}
	top := r.prefixStack[len(r.prefixStack)-1]
	r.prefixStack = r.prefixStack[:len(r.prefixStack)-1]
	r.linePrefix = r.linePrefix[:len(r.linePrefix)-len(top.text)]
	r.linePrefixWidth -= top.width
}

func (r *markdownRenderer) inTightList() bool {
	if len(r.listStack) == 0 {
		return false
	}
	return r.listStack[len(r.listStack)-1].tight
}

func (r *markdownRenderer) writeOutput(s string) {
	if s == "" {
		return
	}
	r.output.WriteString(s)

	newTrailing := 0
	entirelyNewlines := true
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\n' {
			newTrailing++
		} else {
			entirelyNewlines = false
			break
		}
	}
	if entirelyNewlines {
		r.trailingNewlines += newTrailing
	} else {
		r.trailingNewlines = newTrailing
	}
}

func (r *markdownRenderer) ensureNewline() {
	if r.trailingNewlines < 1 {
		r.writeOutput("\n")
	}
}

func (r *markdownRenderer) ensureBlankLine() {
	for r.trailingNewlines < 2 {
		r.writeOutput("\n")
	}
}

func (r *markdownRenderer) consumeLinePrefix() string {
	if r.pendingBullet != "" {
		bullet := r.pendingBullet
		r.pendingBullet = ""
		return bullet
	}
	return r.linePrefix
}

func (r *markdownRenderer) applyPrefixes(content string) string {
	lines := strings.Split(content, "\n")
	var result strings.Builder
	for i, line := range lines {
		if i == 0 {
			result.WriteString(r.consumeLinePrefix())
		} else {
			result.WriteString(r.linePrefix)
		}
		result.WriteString(line)
		if i < len(lines)-1 {
			result.WriteString("\n")
		}
	}
	return result.String()
}

func (r *markdownRenderer) flushInline() string {
	content := r.inline.String()
	r.inline.Reset()
	if content == "" {
		return ""
	}
	content = ansi.Wrap(content, r.currentWidth(), " ,.;-+|")
	return r.applyPrefixes(content)
}

func (r *markdownRenderer) styledText(content string) string {
	style := r.newStyle()
	if r.boldCount > 0 {
		style = style.Bold(true)
	}
	if r.italicCount > 0 {
		style = style.Italic(true)
	}
	return style.Render(content)
}

func (r *markdownRenderer) renderInlineContent(node ast.Node) string {
	saved := r.inline.String()
	savedBold, savedItalic := r.boldCount, r.italicCount

	r.inline.Reset()
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		ast.Walk(child, r.walk)
	}
	result := r.inline.String()

	r.inline.Reset()
	r.inline.WriteString(saved)
	r.boldCount, r.italicCount = savedBold, savedItalic
	return result
}

// highlightCode uses Chroma to syntax-highlight a fenced code block.
// Falls back to faint plain text for an empty language or when
// highlighting fails; a language name Chroma does not recognize is not
// an error, since Chroma then picks a lexer of its own.
func (r *markdownRenderer) highlightCode(code, language string) string {
	if language == "" {
		return r.newStyle().Faint(true).Render(code)
	}
	var buf strings.Builder
	if err := quick.Highlight(&buf, code, language, "terminal256", "monokai"); err != nil {
		return r.newStyle().Faint(true).Render(code)
	}
	return buf.String()
}

func (r *markdownRenderer) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {
	case ast.KindParagraph, ast.KindTextBlock:
		if entering {
			r.inline.Reset()
		} else if flushed := r.flushInline(); flushed != "" {
			r.writeOutput(flushed)
			r.ensureNewline()
			if !r.inTightList() {
				r.ensureBlankLine()
			}
		}

	case ast.KindHeading:
		if entering {
			r.inline.Reset()
		} else {
			r.leaveHeading(node.(*ast.Heading))
		}

	case ast.KindFencedCodeBlock:
		if entering {
			r.renderFencedCodeBlock(node.(*ast.FencedCodeBlock))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindCodeBlock:
		if entering {
			r.renderCodeBlock(node.(*ast.CodeBlock))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindBlockquote:
		if entering {
			r.pushPrefix("│ ", 2)
		} else {
			r.popPrefix()
			r.ensureBlankLine()
		}

	case ast.KindList:
		if entering {
			r.enterList(node.(*ast.List))
		} else {
			r.leaveList()
		}

	case ast.KindListItem:
		if entering {
			r.enterListItem()
		} else {
			r.leaveListItem()
		}

	case ast.KindThematicBreak:
		if entering {
			r.renderThematicBreak()
		}

	case ast.KindText:
		if entering {
			r.handleText(node.(*ast.Text))
		}

	case ast.KindEmphasis:
		r.handleEmphasis(node.(*ast.Emphasis), entering)

	case ast.KindCodeSpan:
		if entering {
			r.renderCodeSpan(node)
			return ast.WalkSkipChildren, nil
		}

	case ast.KindLink:
		if entering {
			r.renderLink(node.(*ast.Link))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindAutoLink:
		if entering {
			r.renderAutoLink(node.(*ast.AutoLink))
		}
	}

	return ast.WalkContinue, nil
}

func (r *markdownRenderer) leaveHeading(heading *ast.Heading) {
	content := ansi.Strip(r.inline.String())
	r.inline.Reset()
	if content == "" {
		return
	}

	style := r.newStyle().Bold(true)
	if heading.Level <= 2 {
		style = style.Foreground(lipgloss.Color("14"))
	}

	wrapped := ansi.Wrap(style.Render(content), r.currentWidth(), " ,.;-+|")
	r.ensureBlankLine()
	r.writeOutput(r.applyPrefixes(wrapped))
	r.ensureNewline()
	r.ensureBlankLine()
}

func (r *markdownRenderer) renderFencedCodeBlock(node *ast.FencedCodeBlock) {
	language := string(node.Language(r.source))
	var code strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(r.source))
	}

	highlighted := r.highlightCode(code.String(), language)
	r.ensureBlankLine()
	for _, line := range strings.Split(strings.TrimRight(highlighted, "\n"), "\n") {
		r.writeOutput(r.consumeLinePrefix() + line)
		r.ensureNewline()
	}
	r.ensureBlankLine()
}

func (r *markdownRenderer) renderCodeBlock(node *ast.CodeBlock) {
	var code strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(r.source))
	}

	faint := r.newStyle().Faint(true)
	r.ensureBlankLine()
	for _, line := range strings.Split(strings.TrimRight(code.String(), "\n"), "\n") {
		r.writeOutput(r.consumeLinePrefix() + faint.Render(line))
		r.ensureNewline()
	}
	r.ensureBlankLine()
}

func (r *markdownRenderer) enterList(list *ast.List) {
	start := 0
	if list.IsOrdered() {
		start = list.Start
	}
	r.listStack = append(r.listStack, listState{ordered: list.IsOrdered(), counter: start, tight: list.IsTight})
}

func (r *markdownRenderer) leaveList() {
	if len(r.listStack) > 0 {
		r.listStack = r.listStack[:len(r.listStack)-1]
	}
	if !r.inTightList() {
		r.ensureBlankLine()
	}
}

func (r *markdownRenderer) enterListItem() {
	if len(r.listStack) == 0 {
		return
	}
	top := &r.listStack[len(r.listStack)-1]

	var bullet string
	if top.ordered {
		bullet = fmt.Sprintf("%d. ", top.counter)
		top.counter++
	} else {
		bullet = "- "
	}

	width := len(bullet)
	r.pendingBullet = r.linePrefix + bullet
	r.pushPrefix(strings.Repeat(" ", width), width)
}

func (r *markdownRenderer) leaveListItem() {
	r.popPrefix()
	if !r.inTightList() {
		r.ensureBlankLine()
	} else {
		r.ensureNewline()
	}
}

func (r *markdownRenderer) renderThematicBreak() {
	rule := strings.Repeat("─", r.currentWidth())
	style := r.newStyle().Faint(true)
	r.ensureBlankLine()
	r.writeOutput(r.applyPrefixes(style.Render(rule)))
	r.ensureNewline()
	r.ensureBlankLine()
}

func (r *markdownRenderer) handleText(node *ast.Text) {
	segment := node.Segment
	r.inline.WriteString(r.styledText(string(segment.Value(r.source))))
	if node.SoftLineBreak() {
		r.inline.WriteString(" ")
	}
	if node.HardLineBreak() {
		r.inline.WriteString("\n")
	}
}

func (r *markdownRenderer) handleEmphasis(node *ast.Emphasis, entering bool) {
	if node.Level >= 2 {
		if entering {
			r.boldCount++
		} else {
			r.boldCount--
		}
	} else if entering {
		r.italicCount++
	} else {
		r.italicCount--
	}
}

func (r *markdownRenderer) renderCodeSpan(node ast.Node) {
	var code strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		if textNode, ok := child.(*ast.Text); ok {
			code.Write(textNode.Segment.Value(r.source))
		}
	}
	r.inline.WriteString(r.newStyle().Faint(true).Render(code.String()))
}

func (r *markdownRenderer) renderLink(node *ast.Link) {
	display := r.renderInlineContent(node)
	url := string(node.Destination)
	r.inline.WriteString(display)
	if url != "" {
		r.inline.WriteString(" " + r.newStyle().Faint(true).Render("("+url+")"))
	}
}

func (r *markdownRenderer) renderAutoLink(node *ast.AutoLink) {
	r.inline.WriteString(r.newStyle().Faint(true).Render(string(node.URL(r.source))))
}
