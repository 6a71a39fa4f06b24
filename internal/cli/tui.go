package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/chainflow/pkg/factory"
	"github.com/matzehuels/chainflow/pkg/factory/control"
	"github.com/matzehuels/chainflow/pkg/factory/rate"
	"github.com/matzehuels/chainflow/pkg/pipeline"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// tuiCommand creates the tui command for interactive graph exploration.
func (c *CLI) tuiCommand() *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   "tui [file]",
		Short: "Explore and edit the production chain interactively",
		Long: `Explore and edit the production chain interactively.

The tui command loads a TOML blueprint or an exported graph JSON file and
opens a terminal interface. Nodes can be hidden, removed, or given desired
output rates; transfer rates are rebalanced live after every change.

Keys:
  up/down, j/k   navigate
  h              hide or unhide the selected node
  d              delete the selected node
  o              set desired output for the selected item
  c              clear desired output for the selected item
  a              show only ancestors of the selected node
  r              reset visibility
  /              search labels, n jumps to the next match
  s              toggle display of hidden nodes
  q              quit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTUI(cmd.Context(), args[0], noCache)
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

// runTUI loads the graph and runs the bubbletea program.
func (c *CLI) runTUI(ctx context.Context, input string, noCache bool) error {
	runner, err := c.newRunner(ctx, noCache, "")
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	pipeOpts := sourceOptions(input)
	pipeOpts.Formats = []string{pipeline.FormatJSON}
	pipeOpts.Logger = c.Logger

	store, _, err := runner.Load(ctx, pipeOpts)
	if err != nil {
		return err
	}

	engine := rate.New(store, c.Logger)
	if err := engine.Recompute(); err != nil {
		return err
	}

	model := newChainModel(store, control.New(store, engine))
	p := tea.NewProgram(model, tea.WithContext(ctx))
	_, err = p.Run()
	return err
}

// inputKind identifies what the text input line is collecting.
type inputKind int

const (
	inputNone inputKind = iota
	inputSearch
	inputDesired
)

// ChainModel is the bubbletea model for interactive chain editing.
type ChainModel struct {
	store      *factory.Store
	controller *control.Controller

	ids        []string // nodes currently listed, sorted
	cursor     int
	offset     int
	height     int
	showHidden bool

	input     string
	inputKind inputKind
	query     string // last search query for "n"
	status    string
	err       error
}

// newChainModel creates the model and builds the initial node list.
func newChainModel(store *factory.Store, controller *control.Controller) *ChainModel {
	m := &ChainModel{
		store:      store,
		controller: controller,
		height:     15,
	}
	m.reload()
	return m
}

// reload rebuilds the visible node list, clamping the cursor.
func (m *ChainModel) reload() {
	m.ids = m.ids[:0]
	for _, n := range m.store.Nodes() {
		if m.showHidden || !n.Hidden {
			m.ids = append(m.ids, n.ID)
		}
	}
	if m.cursor >= len(m.ids) {
		m.cursor = len(m.ids) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.offset > m.cursor {
		m.offset = m.cursor
	}
}

// selected returns the node under the cursor, or nil when the list is empty.
func (m *ChainModel) selected() *factory.Node {
	if m.cursor >= len(m.ids) {
		return nil
	}
	n, ok := m.store.Node(m.ids[m.cursor])
	if !ok {
		return nil
	}
	return n
}

// jumpTo moves the cursor to the node with the given ID if it is listed.
func (m *ChainModel) jumpTo(id string) {
	for i, nid := range m.ids {
		if nid == id {
			m.cursor = i
			if m.cursor < m.offset {
				m.offset = m.cursor
			}
			if m.cursor >= m.offset+m.height {
				m.offset = m.cursor - m.height + 1
			}
			return
		}
	}
}

func (m *ChainModel) Init() tea.Cmd {
	return nil
}

func (m *ChainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.inputKind != inputNone {
			return m.updateInput(msg)
		}
		return m.updateList(msg)
	case tea.WindowSizeMsg:
		m.height = msg.Height - 10
		if m.height < 5 {
			m.height = 5
		}
	}
	return m, nil
}

// updateInput handles keys while the input line is active.
func (m *ChainModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+c":
		m.input = ""
		m.inputKind = inputNone
	case "enter":
		m.submitInput()
	case "backspace":
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	default:
		if msg.Type == tea.KeyRunes {
			m.input += string(msg.Runes)
		}
	}
	return m, nil
}

// submitInput applies the entered value according to the input kind.
func (m *ChainModel) submitInput() {
	value := strings.TrimSpace(m.input)
	kind := m.inputKind
	m.input = ""
	m.inputKind = inputNone
	m.err = nil

	switch kind {
	case inputSearch:
		if value == "" {
			return
		}
		m.query = value
		if id, ok := m.controller.Search(value, ""); ok {
			m.jumpTo(id)
			m.status = fmt.Sprintf("found %q", id)
		} else {
			m.status = fmt.Sprintf("no match for %q", value)
		}
	case inputDesired:
		node := m.selected()
		if node == nil {
			return
		}
		perSecond, err := strconv.ParseFloat(value, 64)
		if err != nil {
			m.err = fmt.Errorf("invalid rate %q", value)
			return
		}
		if err := m.controller.SetDesiredOutput([]string{node.ID}, perSecond); err != nil {
			m.err = err
			return
		}
		m.status = fmt.Sprintf("set desired output of %s to %s", node.ID, rate.FormatRate(perSecond))
		m.reload()
	}
}

// updateList handles keys in normal list mode.
func (m *ChainModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil

	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			if m.cursor < m.offset {
				m.offset = m.cursor
			}
		}
	case "down", "j":
		if m.cursor < len(m.ids)-1 {
			m.cursor++
			if m.cursor >= m.offset+m.height {
				m.offset = m.cursor - m.height + 1
			}
		}
	case "h":
		if node := m.selected(); node != nil {
			if err := m.controller.SetHidden(node.ID, !node.Hidden); err != nil {
				m.err = err
			} else {
				m.status = fmt.Sprintf("toggled visibility of %s", node.ID)
			}
			m.reload()
		}
	case "d":
		if node := m.selected(); node != nil {
			if err := m.controller.RemoveNode(node.ID); err != nil {
				m.err = err
			} else {
				m.status = fmt.Sprintf("removed %s", node.ID)
			}
			m.reload()
		}
	case "o":
		if node := m.selected(); node != nil {
			if node.Group.IsProducer() {
				m.err = fmt.Errorf("desired output applies to items, not %s nodes", node.Group)
			} else {
				m.inputKind = inputDesired
			}
		}
	case "c":
		if node := m.selected(); node != nil {
			if err := m.controller.ClearDesiredOutput([]string{node.ID}); err != nil {
				m.err = err
			} else {
				m.status = fmt.Sprintf("cleared desired output of %s", node.ID)
			}
			m.reload()
		}
	case "a":
		if node := m.selected(); node != nil {
			if err := m.controller.ShowOnlyAncestors(node.ID); err != nil {
				m.err = err
			} else {
				m.status = fmt.Sprintf("showing ancestors of %s", node.ID)
			}
			m.reload()
		}
	case "r":
		if err := m.controller.ResetVisibility(); err != nil {
			m.err = err
		} else {
			m.status = "visibility reset"
		}
		m.reload()
	case "s":
		m.showHidden = !m.showHidden
		m.reload()
	case "/":
		m.inputKind = inputSearch
	case "n":
		if m.query == "" {
			break
		}
		after := ""
		if node := m.selected(); node != nil {
			after = node.ID
		}
		if id, ok := m.controller.Search(m.query, after); ok {
			m.jumpTo(id)
			m.status = fmt.Sprintf("found %q", id)
		} else {
			m.status = fmt.Sprintf("no match for %q", m.query)
		}
	}
	return m, nil
}

func (m *ChainModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Production Chain"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  h hide  d delete  o output  a ancestors  r reset  / search  q quit"))
	b.WriteString("\n\n")

	end := m.offset + m.height
	if end > len(m.ids) {
		end = len(m.ids)
	}

	rows := [][]string{}
	for i := m.offset; i < end; i++ {
		node, ok := m.store.Node(m.ids[i])
		if !ok {
			continue
		}

		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}

		rows = append(rows, []string{
			cursor,
			node.Label,
			string(node.Group),
			m.rateColumn(node),
			m.extraColumn(node),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Node", "Group", "Rate", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			actualIdx := m.offset + row
			if actualIdx >= len(m.ids) {
				return lipgloss.NewStyle()
			}
			node, ok := m.store.Node(m.ids[actualIdx])
			if !ok {
				return lipgloss.NewStyle()
			}

			base := lipgloss.NewStyle()
			if node.Hidden {
				return base.Foreground(colorDim)
			}
			if actualIdx == m.cursor {
				return base.Foreground(colorCyan).Bold(true)
			}
			if col == 3 || col == 4 {
				return base.Foreground(colorGray)
			}
			return base.Foreground(colorWhite)
		})

	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.cursor+1, len(m.ids))))
	b.WriteString("\n")

	switch {
	case m.inputKind == inputSearch:
		b.WriteString(StyleHighlight.Render("search: ") + m.input + "█")
	case m.inputKind == inputDesired:
		b.WriteString(StyleHighlight.Render("desired output (/s): ") + m.input + "█")
	case m.err != nil:
		b.WriteString(StyleWarning.Render(m.err.Error()))
	case m.status != "":
		b.WriteString(listDimStyle.Render(m.status))
	}
	b.WriteString("\n")

	return b.String()
}

// rateColumn sums the outgoing rates of a node for display.
func (m *ChainModel) rateColumn(node *factory.Node) string {
	var total float64
	edges := m.store.OutEdges(node.ID)
	if len(edges) == 0 {
		edges = m.store.InEdges(node.ID)
	}
	for _, e := range edges {
		total += e.Rate
	}
	return rate.FormatRate(total)
}

// extraColumn shows the machine multiplier or the desired output, if any.
func (m *ChainModel) extraColumn(node *factory.Node) string {
	if node.Group.IsProducer() {
		return fmt.Sprintf("x%.2f", node.Multiplier)
	}
	if node.DesiredOutput != nil {
		return "want " + rate.FormatRate(*node.DesiredOutput)
	}
	return ""
}
