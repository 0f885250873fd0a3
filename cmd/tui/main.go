package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	biofasta "github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sebschmi/fasta-cleaner/internal/fasta"
)

// Colors for modern design
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	secondaryColor = lipgloss.Color("#10B981") // Green
	accentColor    = lipgloss.Color("#F59E0B") // Amber
	surfaceColor   = lipgloss.Color("#1F2937") // Dark gray
	textColor      = lipgloss.Color("#F3F4F6") // Light gray
	mutedColor     = lipgloss.Color("#9CA3AF") // Muted gray
	borderColor    = lipgloss.Color("#374151") // Border gray
)

// Styles
var (
	containerStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor)

	titleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true).
			Align(lipgloss.Center)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(textColor).
			Background(surfaceColor).
			Padding(0, 1)

	sequenceStyle = lipgloss.NewStyle().
			Foreground(textColor).
			Background(lipgloss.Color("#111827")).
			Padding(1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor)

	labelStyle = lipgloss.NewStyle().Foreground(mutedColor)
	gcStyle    = lipgloss.NewStyle().Foreground(secondaryColor).Bold(true)
	atStyle    = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	otherStyle = lipgloss.NewStyle().Foreground(mutedColor)
)

type listItem struct {
	record fasta.FastaRecord
	bases  fasta.BaseCounts
}

func (i listItem) FilterValue() string {
	return i.record.Header
}

func (i listItem) Title() string {
	// The accession token keeps the selector compact; the full header is
	// shown in the right panel.
	if f := strings.Fields(i.record.Header); len(f) > 0 {
		return f[0]
	}
	return "(unnamed)"
}

func (i listItem) Description() string {
	return fmt.Sprintf("%d bp    GC: %s", i.record.Len(), gcStyle.Render(fmt.Sprintf("%.1f%%", i.bases.GC()*100)))
}

type mode int

const (
	modeOverview mode = iota
	modeSequence
	modeComposition
)

func (m mode) String() string {
	switch m {
	case modeOverview:
		return "📋 Overview"
	case modeSequence:
		return "🧬 Sequence"
	case modeComposition:
		return "📊 Composition"
	default:
		return "Unknown"
	}
}

type model struct {
	list          list.Model
	records       []fasta.FastaRecord
	currentMode   mode
	showHelp      bool
	width         int
	height        int
	totalRecords  int
	selectedIndex int
}

func newModel(records []fasta.FastaRecord) model {
	items := make([]list.Item, len(records))
	for i, record := range records {
		items[i] = listItem{record: record, bases: fasta.Composition(record.Sequence)}
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "FASTA Records"
	l.SetShowStatusBar(false)
	l.SetShowPagination(true)
	l.SetFilteringEnabled(true)

	return model{
		list:         l,
		records:      records,
		currentMode:  modeOverview,
		totalRecords: len(records),
	}
}

// cycleMode advances to the next view mode, wrapping around.
func (m model) cycleMode() model {
	m.currentMode = (m.currentMode + 1) % 3
	return m
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Left panel takes 1/3 of the width
		listWidth := msg.Width / 3
		listHeight := msg.Height - 4 // Account for borders and status

		m.list.SetWidth(listWidth)
		m.list.SetHeight(listHeight)

		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "h", "?":
			m.showHelp = !m.showHelp
			return m, nil

		case "tab":
			return m.cycleMode(), nil

		case "1":
			m.currentMode = modeOverview
			return m, nil

		case "2":
			m.currentMode = modeSequence
			return m, nil

		case "3":
			m.currentMode = modeComposition
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	m.selectedIndex = m.list.Index()
	return m, cmd
}

func (m model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelpModal()
	}

	leftPanel := m.renderLeftPanel()
	rightPanel := m.renderRightPanel()
	statusBar := m.renderStatusBar()

	main := lipgloss.JoinHorizontal(
		lipgloss.Top,
		leftPanel,
		rightPanel,
	)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		main,
		statusBar,
	)
}

func (m model) renderLeftPanel() string {
	listWidth := m.width / 3

	return containerStyle.
		Width(listWidth - 2).
		Height(m.height - 4).
		Render(m.list.View())
}

func (m model) renderRightPanel() string {
	rightWidth := (m.width * 2) / 3

	if len(m.records) == 0 {
		return containerStyle.
			Width(rightWidth - 2).
			Height(m.height - 4).
			Render("No records available")
	}

	selectedItem := m.list.SelectedItem()
	if selectedItem == nil {
		return containerStyle.
			Width(rightWidth - 2).
			Height(m.height - 4).
			Render("No item selected")
	}

	item := selectedItem.(listItem)
	record := item.record

	header := titleStyle.Render(record.Header)
	meta := labelStyle.Render("Length: ") + gcStyle.Render(fmt.Sprintf("%d bp", record.Len())) +
		labelStyle.Render("    GC: ") + gcStyle.Render(fmt.Sprintf("%.1f%%", item.bases.GC()*100))

	var content string
	switch m.currentMode {
	case modeOverview:
		content = m.renderOverview(item)
	case modeSequence:
		content = m.renderSequence(record)
	case modeComposition:
		content = m.renderComposition(item.bases)
	}

	panelContent := lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		meta,
		"",
		content,
	)

	return containerStyle.
		Width(rightWidth - 2).
		Height(m.height - 4).
		Render(panelContent)
}

// buildRightLines wraps the record's sequence to the right panel width.
func (m model) buildRightLines(rec fasta.FastaRecord) []string {
	width := m.width*2/3 - 8
	if width < 10 {
		width = 10
	}
	seq := rec.Sequence
	var lines []string
	for len(seq) > width {
		lines = append(lines, seq[:width])
		seq = seq[width:]
	}
	if len(seq) > 0 {
		lines = append(lines, seq)
	}
	return lines
}

func (m model) renderOverview(item listItem) string {
	preview := item.record.Sequence
	const previewLen = 120
	if len(preview) > previewLen {
		preview = preview[:previewLen] + "…"
	}
	lines := []string{
		labelStyle.Render("Header: ") + item.record.Header,
		labelStyle.Render("Bases:  ") + fmt.Sprintf("A %d   C %d   G %d   T %d   other %d",
			item.bases.A, item.bases.C, item.bases.G, item.bases.T, item.bases.Other),
		"",
		labelStyle.Render("Preview:"),
		sequenceStyle.Width(m.width*2/3 - 6).Render(preview),
	}
	return strings.Join(lines, "\n")
}

func (m model) renderSequence(record fasta.FastaRecord) string {
	if record.Sequence == "" {
		return otherStyle.Render("No sequence available")
	}
	title := atStyle.Render("Sequence:")
	body := sequenceStyle.
		Width(m.width*2/3 - 6).
		Render(strings.Join(m.buildRightLines(record), "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, title, "", body)
}

func (m model) renderComposition(bases fasta.BaseCounts) string {
	total := bases.A + bases.C + bases.G + bases.T + bases.Other
	if total == 0 {
		return otherStyle.Render("No sequence available")
	}
	row := func(label string, n int, style lipgloss.Style) string {
		pct := float64(n) / float64(total) * 100
		barLen := int(pct / 2)
		return fmt.Sprintf("%s %7d  %5.1f%%  %s", labelStyle.Render(label), n, pct, style.Render(strings.Repeat("█", barLen)))
	}
	lines := []string{
		atStyle.Render("Base composition:"),
		"",
		row("A", bases.A, atStyle),
		row("C", bases.C, gcStyle),
		row("G", bases.G, gcStyle),
		row("T", bases.T, atStyle),
		row("other", bases.Other, otherStyle),
	}
	return strings.Join(lines, "\n")
}

func (m model) renderStatusBar() string {
	leftInfo := fmt.Sprintf("📊 %d/%d records", m.selectedIndex+1, m.totalRecords)
	centerInfo := fmt.Sprintf("Mode: %s", m.currentMode.String())
	rightInfo := "Press 'h' for help • 'q' to quit"

	totalUsed := len(leftInfo) + len(centerInfo) + len(rightInfo)
	spacing := m.width - totalUsed - 6

	var statusContent string
	if spacing > 0 {
		leftSpacing := spacing / 2
		rightSpacing := spacing - leftSpacing

		statusContent = fmt.Sprintf("%s%s%s%s%s",
			leftInfo,
			strings.Repeat(" ", leftSpacing),
			centerInfo,
			strings.Repeat(" ", rightSpacing),
			rightInfo,
		)
	} else {
		// Fallback for narrow terminals
		statusContent = fmt.Sprintf("%s | %s", leftInfo, centerInfo)
	}

	return statusBarStyle.
		Width(m.width).
		Render(statusContent)
}

func (m model) renderHelpModal() string {
	helpContent := `🧬 FASTA Browser - Help

Navigation:
  ↑/↓, j/k     Navigate list
  /            Filter records
  Tab          Cycle view mode

View Modes:
  1            Overview
  2            Full sequence
  3            Base composition

General:
  h, ?         Toggle this help
  q, Ctrl+C    Quit application

Current Mode: ` + m.currentMode.String() + `
Total Records: ` + fmt.Sprintf("%d", m.totalRecords) + `
`

	modalStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(primaryColor).
		Padding(1, 2).
		Background(surfaceColor).
		Foreground(textColor).
		Width(60).
		Align(lipgloss.Center)

	modal := modalStyle.Render(helpContent)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal,
	)
}

// loadRecords reads the FASTA records from path. The file is expected to be
// normalized already; the strict DNA alphabet rejects anything else.
func loadRecords(path string) ([]fasta.FastaRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	in := biofasta.NewReader(f, linear.NewSeq("", nil, alphabet.DNA))
	sc := seqio.NewScanner(in)
	var records []fasta.FastaRecord
	for sc.Next() {
		s := sc.Seq().(*linear.Seq)
		header := s.Name()
		if d := s.Description(); d != "" {
			header += " " + d
		}
		records = append(records, fasta.FastaRecord{Header: header, Sequence: s.Seq.String()})
	}
	if err := sc.Error(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	return records, nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: fasta-tui <file.fasta>")
		os.Exit(2)
	}
	records, err := loadRecords(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(newModel(records), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v", err)
		os.Exit(1)
	}
}
