package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/sceneweaver/pkg/timeline"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// SceneListModel - Interactive scene selection
// =============================================================================

// SceneListModel is the bubbletea model for choosing a top-level scene.
type SceneListModel struct {
	Scenes   []timeline.Entry
	Cursor   int
	Selected *timeline.Entry
	Height   int
	Offset   int
}

// NewSceneListModel creates a list of the top-level entries of a timeline.
func NewSceneListModel(entries []timeline.Entry) SceneListModel {
	var top []timeline.Entry
	for _, e := range entries {
		if e.Depth == 0 {
			top = append(top, e)
		}
	}
	return SceneListModel{Scenes: top, Height: 15}
}

func (m SceneListModel) Init() tea.Cmd {
	return nil
}

func (m SceneListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Scenes)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			if len(m.Scenes) == 0 {
				return m, tea.Quit
			}
			e := m.Scenes[m.Cursor]
			m.Selected = &e
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m SceneListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Scene"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ render  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Scenes))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		e := m.Scenes[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		cached := ""
		if e.Cacheable {
			cached = "✓"
		}
		rows = append(rows, []string{cursor, e.ID, string(e.Kind), formatSeconds(e.Start), formatSeconds(e.Duration), cached})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Scene", "Type", "Start", "Duration", "Cache").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if m.Offset+row == m.Cursor {
				return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
			}
			if col >= 3 {
				return lipgloss.NewStyle().Foreground(colorGray)
			}
			return lipgloss.NewStyle().Foreground(colorWhite)
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Scenes))))

	return b.String()
}

// =============================================================================
// Helpers
// =============================================================================

// formatSeconds renders a duration in seconds, e.g. "4.5s" or "1m05.0s".
func formatSeconds(s float64) string {
	if s < 60 {
		return fmt.Sprintf("%.1fs", s)
	}
	m := int(s) / 60
	return fmt.Sprintf("%dm%04.1fs", m, s-float64(m*60))
}
