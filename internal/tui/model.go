package tui

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/table"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"tasnim.dev/eks-lifecycle/internal/aws/eks"
	"tasnim.dev/eks-lifecycle/internal/tui/theme"
	"tasnim.dev/eks-lifecycle/internal/utils"
)

const maxHistory = 50

// AttemptMsg carries one waiter observation into the program.
type AttemptMsg struct {
	Observation eks.Observation
	At          time.Time
}

// DoneMsg ends the wait. Err is nil when the target was reached.
type DoneMsg struct{ Err error }

type clusterMsg struct{ cluster eks.EKSCluster }
type errMsg struct{ err error }

// Model is a live view of a single cluster while a wait runs. Observations
// arrive through Program.Send from the goroutine running the wait.
type Model struct {
	describer eks.Describer
	name      string
	target    eks.Target
	profile   string
	region    string
	account   string

	cluster  *eks.EKSCluster
	history  []AttemptMsg
	started  time.Time
	done     bool
	waitErr  error
	fetchErr error

	spinner spinner.Model
	table   table.Model
	width   int
	height  int
}

func NewModel(describer eks.Describer, clusterName string, target eks.Target, profile, region string) Model {
	t := table.New(
		table.WithColumns(historyColumns(80)),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(8),
		table.WithWidth(80),
	)
	t.SetStyles(theme.DefaultTableStyles())

	return Model{
		describer: describer,
		name:      clusterName,
		target:    target,
		profile:   profile,
		region:    region,
		started:   time.Now(),
		spinner:   theme.NewSpinner(),
		table:     t,
		width:     80,
		height:    24,
	}
}

// WithAccount sets the account ID shown in the header.
func (m Model) WithAccount(id string) Model {
	m.account = id
	return m
}

func historyColumns(width int) []table.Column {
	statusWidth := max(width-4-8-10-6, 12)
	return []table.Column{
		{Title: "#", Width: 8},
		{Title: "Time", Width: 10},
		{Title: "Status", Width: statusWidth},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchCluster())
}

func (m Model) fetchCluster() tea.Cmd {
	if m.describer == nil {
		return nil
	}
	describer, name := m.describer, m.name
	return func() tea.Msg {
		cluster, err := describer.DescribeCluster(context.Background(), name)
		if err != nil {
			return errMsg{err: err}
		}
		return clusterMsg{cluster: cluster}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.fetchErr = nil
			return m, m.fetchCluster()
		}

	case AttemptMsg:
		changed := m.lastStatus() != msg.Observation.Status
		m.history = append(m.history, msg)
		if len(m.history) > maxHistory {
			m.history = m.history[len(m.history)-maxHistory:]
		}
		m.table.SetRows(m.buildRows())
		m.table.GotoBottom()
		if changed && msg.Observation.Found {
			return m, m.fetchCluster()
		}
		return m, nil

	case DoneMsg:
		m.done = true
		m.waitErr = msg.Err
		return m, m.fetchCluster()

	case clusterMsg:
		m.cluster = &msg.cluster
		m.fetchErr = nil
		return m, nil

	case errMsg:
		if eks.IsNotFound(msg.err) {
			m.cluster = nil
			return m, nil
		}
		m.fetchErr = msg.err
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m = m.resizeTable()
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) lastStatus() string {
	if len(m.history) == 0 {
		return ""
	}
	return m.history[len(m.history)-1].Observation.Status
}

func (m Model) resizeTable() Model {
	contentWidth := m.width - 4 // dashboardStyle Padding(1,2)
	m.table.SetColumns(historyColumns(contentWidth))
	m.table.SetWidth(contentWidth)

	tableHeight := m.height - 24 // header+status+details+help
	m.table.SetHeight(min(max(tableHeight, 3), 15))
	return m
}

func (m Model) buildRows() []table.Row {
	rows := make([]table.Row, len(m.history))
	for i, a := range m.history {
		obs := a.Observation
		status := obs.Status
		if !obs.Found {
			status = "NOT_FOUND"
		}
		rows[i] = table.Row{
			strconv.Itoa(obs.Attempt) + "/" + strconv.Itoa(obs.MaxAttempts),
			utils.TimeOrDash(a.At, utils.TimeOnly),
			status,
		}
	}
	return rows
}

func (m Model) renderHeader() string {
	profileText := "default"
	if m.profile != "" {
		profileText = m.profile
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render("EKS Cluster Watch"),
		"   ",
		labelStyle.Render("cluster: ")+valueStyle.Render(m.name),
		"   ",
		labelStyle.Render("profile: ")+profileStyle.Render(profileText),
		"   ",
		labelStyle.Render("region: ")+profileStyle.Render(utils.OrDash(m.region)),
		"   ",
		labelStyle.Render("account: ")+profileStyle.Render(utils.OrDash(m.account)),
	)
}

func (m Model) renderStatus() string {
	current := "UNKNOWN"
	if len(m.history) > 0 {
		current = m.history[len(m.history)-1].Observation.Status
		if !m.history[len(m.history)-1].Observation.Found {
			current = "NOT_FOUND"
		}
	} else if m.cluster != nil {
		current = m.cluster.Status
	}

	line := theme.RenderStatus(current)
	if m.target != "" {
		line += labelStyle.Render("  waiting for " + string(m.target))
	}
	if len(m.history) > 0 {
		last := m.history[len(m.history)-1].Observation
		line += labelStyle.Render(fmt.Sprintf("  attempt %d/%d", last.Attempt, last.MaxAttempts))
	}
	line += labelStyle.Render("  elapsed " + utils.ShortDuration(time.Since(m.started)))

	switch {
	case m.done && m.waitErr != nil:
		return line + "\n" + errorStyle.Render(fmt.Sprintf("Error: %v", m.waitErr))
	case m.done:
		return line + "\n" + doneStyle.Render("Reached "+string(m.target))
	case m.target != "":
		return line + "\n" + m.spinner.View() + " Polling..."
	default:
		return line
	}
}

func (m Model) renderDetails() string {
	if m.cluster == nil {
		if m.fetchErr != nil {
			return errorStyle.Render(fmt.Sprintf("Error: %v", m.fetchErr))
		}
		return labelStyle.Render("No cluster details.")
	}
	c := m.cluster
	d := utils.NewDetailBuilder(14, labelStyle)
	d.Row("Name", c.Name)
	d.Row("ARN", c.ARN)
	d.Row("Version", c.Version)
	d.Row("Platform", c.PlatformVersion)
	d.Row("Endpoint", c.Endpoint)
	d.Row("VPC", c.VPCID)
	d.Row("Subnets", utils.JoinOrDash(c.SubnetIDs))
	d.Row("Created", utils.TimeOrDash(c.CreatedAt, utils.DateTime))
	return theme.DashboardBoxStyle.Render(d.String())
}

func (m Model) View() tea.View {
	header := headerStyle.Render(m.renderHeader())

	help := "r refresh • q quit"
	if m.done {
		help = "r refresh • q quit (wait finished)"
	}

	content := dashboardStyle.Render(
		header + "\n\n" +
			m.renderStatus() + "\n\n" +
			m.renderDetails() + "\n\n" +
			labelStyle.Render("Attempts") + "\n" + m.table.View() + "\n" +
			helpStyle.Render(help),
	)

	v := tea.NewView(content)
	v.AltScreen = true
	return v
}
