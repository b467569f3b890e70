package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wignn/media-tools/internal/model"
	"github.com/wignn/media-tools/internal/queue"
)

var (
	watchTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	watchMutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	watchErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	watchOKStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	watchSelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
	watchCancelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

type watchJobsMsg []model.Job

type watchModel struct {
	manager  *queue.Manager
	registry *queue.Registry
	jobsCh   chan []model.Job
	spin     spinner.Model
	jobs     []model.Job
	cursor   int
	width    int
	status   string
	drained  bool
}

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	flags := bindJobFlags(fs)
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !stdinIsTTY() {
		return errors.New("watch requires an interactive terminal (use submit instead)")
	}

	sess, err := openSession(*flags.stateDir)
	if err != nil {
		return err
	}
	defer sess.Close()

	specs, err := flags.specs(fs.Args(), sess.Settings)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(specs))
	for _, spec := range specs {
		id, err := sess.Manager.Submit(spec)
		if err != nil {
			if errors.Is(err, queue.ErrDuplicateSource) {
				continue
			}
			return err
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return errors.New("nothing queued")
	}

	jobsCh := make(chan []model.Job, 16)
	unsubscribe := sess.Manager.Subscribe(func(jobs []model.Job) {
		select {
		case jobsCh <- jobs:
		default:
		}
	})
	defer unsubscribe()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	m := watchModel{
		manager:  sess.Manager,
		registry: sess.Registry,
		jobsCh:   jobsCh,
		spin:     sp,
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return errors.New("watch requires an interactive terminal (use submit instead)")
		}
		return err
	}

	// The user may quit with jobs still in flight; stop them before
	// the session tears down.
	sess.Manager.CancelAll()
	if err := drainQueue(sess.Manager); err != nil {
		return err
	}

	failed := 0
	for _, r := range collectReports(sess.Manager, ids) {
		if r.Status == string(model.StatusFailed) {
			failed++
			fmt.Printf("fail  %s: %s\n", shortID(r.ID), firstLine(r.ErrorMessage))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d jobs failed", failed)
	}
	return nil
}

func waitForJobs(ch chan []model.Job) tea.Cmd {
	return func() tea.Msg {
		return watchJobsMsg(<-ch)
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, waitForJobs(m.jobsCh))
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case watchJobsMsg:
		m.jobs = msg
		if m.cursor > len(m.jobs)-1 {
			m.cursor = len(m.jobs) - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
		m.drained = m.manager.Idle() && allTerminal(m.jobs)
		if m.drained {
			m.status = "all jobs finished, press q to exit"
		}
		return m, waitForJobs(m.jobsCh)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.jobs)-1 {
				m.cursor++
			}
		case "c":
			if job, ok := m.selected(); ok {
				if m.manager.Cancel(job.ID) {
					m.status = "cancelled " + shortID(job.ID)
				}
			}
		case "r":
			if job, ok := m.selected(); ok {
				if err := m.manager.Retry(job.ID); err != nil {
					m.status = err.Error()
				} else {
					m.status = "retrying " + shortID(job.ID)
				}
			}
		}
		return m, nil
	}
	return m, nil
}

func (m watchModel) selected() (model.Job, bool) {
	if m.cursor < 0 || m.cursor >= len(m.jobs) {
		return model.Job{}, false
	}
	return m.jobs[m.cursor], true
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(watchTitleStyle.Render("media-tools queue"))
	b.WriteString("\n\n")

	if len(m.jobs) == 0 {
		b.WriteString(watchMutedStyle.Render("queue is empty"))
		b.WriteString("\n")
	}
	for i, job := range m.jobs {
		line := m.renderJob(job)
		if i == m.cursor {
			line = watchSelStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.registry != nil {
		if recent := renderRecent(m.registry.History()); recent != "" {
			b.WriteString("\n")
			b.WriteString(recent)
		}
	}

	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	b.WriteString(watchMutedStyle.Render("up/down move · c cancel · r retry · q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m watchModel) renderJob(job model.Job) string {
	label := job.Title
	if label == "" {
		label = job.SourceRef
	}

	switch job.Status {
	case model.StatusRunning:
		detail := fmt.Sprintf("%s %s %5.1f%% %s", m.spin.View(), progressBar(job.Percent), job.Percent, label)
		if job.Speed != "" {
			detail += watchMutedStyle.Render(fmt.Sprintf("  %s ETA %s", job.Speed, job.ETA))
		}
		return detail
	case model.StatusPending:
		note := "waiting"
		if job.RetryCount > 0 {
			note = fmt.Sprintf("retry %d/3", job.RetryCount)
		}
		return fmt.Sprintf("  %s %s %s", watchMutedStyle.Render("·"), watchMutedStyle.Render(note), label)
	case model.StatusSucceeded:
		return fmt.Sprintf("  %s %s", watchOKStyle.Render("done"), label)
	case model.StatusFailed:
		return fmt.Sprintf("  %s %s: %s", watchErrorStyle.Render("fail"), label, firstLine(job.ErrorMessage))
	case model.StatusCancelled:
		return fmt.Sprintf("  %s %s", watchCancelStyle.Render("stop"), label)
	default:
		return fmt.Sprintf("  %s %s", job.Status, label)
	}
}

// renderRecent shows the last few finished processes from the registry's
// cross-kind history, newest first.
func renderRecent(hist []queue.Entry) string {
	const maxRows = 5
	var b strings.Builder
	rows := 0
	for _, e := range hist {
		if rows == maxRows {
			break
		}
		label := e.Title
		if label == "" {
			label = e.SourceRef
		}
		switch e.Status {
		case "completed":
			b.WriteString(fmt.Sprintf("  %s %s -> %s\n", watchOKStyle.Render("done"), label, e.OutputPath))
		case "failed":
			b.WriteString(fmt.Sprintf("  %s %s: %s\n", watchErrorStyle.Render("fail"), label, firstLine(e.ErrorMessage)))
		default:
			continue
		}
		rows++
	}
	if rows == 0 {
		return ""
	}
	return watchMutedStyle.Render("recent") + "\n" + b.String()
}

func progressBar(percent float64) string {
	const width = 20
	filled := int(percent / 100 * width)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

func allTerminal(jobs []model.Job) bool {
	for _, j := range jobs {
		if !j.Status.Terminal() {
			return false
		}
	}
	return true
}
