package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"webrag/internal/domain"
	"webrag/internal/textproc"
)

// Ingester is the TUI-facing side of the ingestion pipeline.
type Ingester interface {
	Ingest(ctx context.Context, query string) *domain.IngestionResult
}

// Recaller is the TUI-facing side of the recall pipeline.
type Recaller interface {
	Recall(ctx context.Context, query string) (*domain.RecallResult, error)
}

// Summarizer condenses ingested context into a short digest.
type Summarizer interface {
	Summarize(text string, maxSentences int) string
}

type mode int

const (
	modeSearch mode = iota
	modeMemory
)

func (m mode) String() string {
	if m == modeMemory {
		return "memory"
	}
	return "search"
}

type ingestDoneMsg struct {
	query  string
	result *domain.IngestionResult
}

type recallDoneMsg struct {
	query  string
	result *domain.RecallResult
	err    error
}

// Model is the Bubble Tea model for the TUI application. Search mode runs an
// ingestion for the query; memory mode recalls stored text. Tab switches.
type Model struct {
	ctx          context.Context
	ingest       Ingester
	recall       Recaller
	summarizer   Summarizer
	maxSentences int

	mode      mode
	busy      bool
	input     textinput.Model
	viewport  viewport.Model
	ingestRes *domain.IngestionResult
	matches   []domain.Match
	digest    string
	status    string
	cursor    int
	ready     bool
	lastQuery string
}

// New creates a new TUI model instance. ctx is passed to every pipeline call.
func New(ctx context.Context, ingest Ingester, recall Recaller, summarizer Summarizer, maxSentences int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a query and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:          ctx,
		ingest:       ingest,
		recall:       recall,
		summarizer:   summarizer,
		maxSentences: maxSentences,
		input:        ti,
		viewport:     vp,
		status:       "Search mode. Tab switches to memory.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and pipeline events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header and digest, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderBody())
		return m, nil

	case ingestDoneMsg:
		m.busy = false
		m.ingestRes = msg.result
		m.matches = nil
		m.cursor = 0
		m.lastQuery = msg.query
		m.digest = m.summarizer.Summarize(contextText(msg.result.Context), m.maxSentences)
		stored := 0
		for _, st := range msg.result.Statuses {
			if st.Stored {
				stored++
			}
		}
		m.status = fmt.Sprintf("Ingested %q: %d sources, %d stored", msg.query, len(msg.result.Sources), stored)
		m.viewport.SetContent(m.renderBody())
		return m, nil

	case recallDoneMsg:
		m.busy = false
		m.ingestRes = nil
		m.cursor = 0
		m.lastQuery = msg.query
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.matches = nil
		} else {
			m.matches = msg.result.Matches
			m.status = fmt.Sprintf("%d matches for %q", len(m.matches), msg.query)
		}
		m.viewport.SetContent(m.renderBody())
		return m, nil

	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "tab":
			if m.mode == modeSearch {
				m.mode = modeMemory
				m.status = "Memory mode. Tab switches to search."
			} else {
				m.mode = modeSearch
				m.status = "Search mode. Tab switches to memory."
			}
			return m, nil
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if m.busy || (q == "" && m.mode == modeSearch) {
				return m, nil
			}
			m.busy = true
			if m.mode == modeSearch {
				m.status = fmt.Sprintf("Searching the web for %q...", q)
				return m, m.runIngest(q)
			}
			m.status = fmt.Sprintf("Recalling %q...", q)
			return m, m.runRecall(q)
		case "down":
			if len(m.matches) > 0 {
				m.cursor = (m.cursor + 1) % len(m.matches)
				m.viewport.SetContent(m.renderBody())
				return m, nil
			}
		case "up":
			if len(m.matches) > 0 {
				m.cursor = (m.cursor - 1 + len(m.matches)) % len(m.matches)
				m.viewport.SetContent(m.renderBody())
				return m, nil
			}
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) runIngest(q string) tea.Cmd {
	ctx, ingest := m.ctx, m.ingest
	return func() tea.Msg {
		return ingestDoneMsg{query: q, result: ingest.Ingest(ctx, q)}
	}
}

func (m Model) runRecall(q string) tea.Cmd {
	ctx, recall := m.ctx, m.recall
	return func() tea.Msg {
		res, err := recall.Recall(ctx, q)
		return recallDoneMsg{query: q, result: res, err: err}
	}
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Web RAG") + "  " + modeStyle.Render("["+m.mode.String()+"]")
	digest := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(oneLine(m.digest))
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + digest + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderBody() string {
	if m.ingestRes != nil {
		return m.renderIngestion()
	}
	if len(m.matches) == 0 {
		return "No results yet."
	}
	r := m.matches[m.cursor]
	title := fmt.Sprintf("Match %d/%d  score=%.3f\n%s", m.cursor+1, len(m.matches), r.Score, r.URL)
	body := highlightBestSentence(r.Text, m.lastQuery)
	return title + "\n\n" + body
}

func (m Model) renderIngestion() string {
	var sb strings.Builder
	if len(m.ingestRes.Statuses) == 0 {
		sb.WriteString("Search returned no sources.\n")
	}
	for i, st := range m.ingestRes.Statuses {
		line := fmt.Sprintf("%d. %-14s %s", i+1, st.State, st.URL)
		if st.State.InContext() {
			line = okStyle.Render(line)
		} else {
			line = failStyle.Render(line)
		}
		sb.WriteString(line + "\n")
	}
	if m.digest != "" {
		sb.WriteString("\n" + highlightBestSentence(m.digest, m.lastQuery) + "\n")
	}
	return sb.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	modeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	okStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// contextText drops the SOURCE header lines from an ingestion context.
func contextText(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(l, "SOURCE: ") {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := textproc.Sentences(text)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := textproc.TokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	for t := range textproc.TokenSet(sentence) {
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
