package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/strata-cli/internal/adapters/driving/tui/components/scores"
	"github.com/custodia-labs/strata-cli/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/strata-cli/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/strata-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/strata-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driving"
)

// collapsedIssues is the number of issues shown before "?" expands the list.
const collapsedIssues = 5

// App runs one research loop and renders its progress.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	req    domain.RunRequest
	ctx    context.Context
	cancel context.CancelFunc
	events chan tea.Msg

	styles    *styles.Styles
	keymap    *keymap.KeyMap
	statusBar *status.Bar
	scores    *scores.Table
	spinner   spinner.Model
	progress  progress.Model

	step       domain.Step
	version    int
	reports    []domain.IterationReport
	allIssues  bool
	cancelling bool
	done       bool
	outcome    *driving.ResearchOutcome
	err        error

	width int
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates the progress view for req.
func NewApp(ports *Ports, req domain.RunRequest) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Subtitle

	bar := status.NewBar(s, km)
	bar.SetMessage("Structuring outline")

	a := &App{
		ports:     ports,
		req:       req,
		events:    make(chan tea.Msg, 16),
		styles:    s,
		keymap:    km,
		statusBar: bar,
		scores:    scores.NewTable(s, req.ConfidenceThreshold),
		spinner:   sp,
		progress:  progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		step:      domain.StepOutline,
		width:     80,
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())
	return a, nil
}

// WithContext derives the run context from ctx.
func (a *App) WithContext(ctx context.Context) *App {
	a.cancel()
	a.ctx, a.cancel = context.WithCancel(ctx)
	return a
}

// Outcome returns the run outcome once the view has finished.
func (a *App) Outcome() (*driving.ResearchOutcome, error) {
	return a.outcome, a.err
}

// Init implements tea.Model. It starts the run and the event pump.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("strata - "+a.req.Title),
		a.spinner.Tick,
		a.startRun(),
		a.waitForEvent(),
	)
}

// startRun executes the loop in the background. The finish message goes
// through the event channel so it arrives after every observer event.
func (a *App) startRun() tea.Cmd {
	return func() tea.Msg {
		obs := NewObserver(a.ctx, a.events)
		outcome, err := a.ports.Research.Research(a.ctx, a.req, obs)
		a.events <- messages.RunFinished{Outcome: outcome, Err: err}
		return nil
	}
}

func (a *App) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return <-a.events
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.statusBar.SetWidth(msg.Width)
		a.scores.SetWidth(msg.Width)
		a.progress.Width = max(10, min(60, msg.Width-4))
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case spinner.TickMsg:
		if a.done {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case messages.VersionAppended:
		a.step = msg.Step
		a.version = msg.Version
		a.statusBar.SetMessage(a.stepLabel())
		return a, a.waitForEvent()

	case messages.IterationReported:
		a.reports = append(a.reports, msg.Report)
		a.scores.SetScores(msg.Report.Scores)
		a.statusBar.SetCost(msg.Report.Cost)
		if msg.Report.Decision == domain.DecisionContinue && len(a.reports) < a.req.MaxIterations {
			a.statusBar.SetMessage(fmt.Sprintf("Iteration %d/%d: researching", len(a.reports)+1, a.req.MaxIterations))
		}
		return a, a.waitForEvent()

	case messages.RunFinished:
		a.finish(msg)
		return a, nil
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keymap.Help):
		a.allIssues = !a.allIssues
		return a, nil

	case a.done && (key.Matches(msg, a.keymap.Quit) || key.Matches(msg, a.keymap.Cancel)):
		return a, tea.Quit

	case !a.done && key.Matches(msg, a.keymap.Cancel):
		if !a.cancelling {
			a.cancelling = true
			a.statusBar.SetState(status.StateCancelling)
			a.cancel()
		}
		return a, nil
	}
	return a, nil
}

func (a *App) finish(msg messages.RunFinished) {
	a.done = true
	a.outcome = msg.Outcome
	a.err = msg.Err

	if msg.Outcome != nil && msg.Outcome.Result != nil {
		a.statusBar.SetCost(msg.Outcome.Result.Cost)
	}
	if msg.Err != nil && !a.cancelling {
		a.statusBar.SetState(status.StateError)
		a.statusBar.SetMessage(msg.Err.Error())
		return
	}
	a.statusBar.SetState(status.StateFinished)
	a.statusBar.SetMessage("Finished: " + string(a.stopReason()))
}

func (a *App) stopReason() domain.StopReason {
	if a.outcome != nil && a.outcome.Result != nil && a.outcome.Result.StopReason != "" {
		return a.outcome.Result.StopReason
	}
	if a.cancelling {
		return domain.StopCancelled
	}
	return domain.StopError
}

func (a *App) stepLabel() string {
	iteration := len(a.reports) + 1
	switch a.step {
	case domain.StepResearch:
		return fmt.Sprintf("Iteration %d/%d: enhancing (v%d researched)", iteration, a.req.MaxIterations, a.version)
	case domain.StepEnhance:
		return fmt.Sprintf("Iteration %d/%d: verifying (v%d)", iteration, a.req.MaxIterations, a.version)
	default:
		return fmt.Sprintf("Iteration %d/%d: researching (v%d)", iteration, a.req.MaxIterations, a.version)
	}
}

func (a *App) percent() float64 {
	if a.done && a.err == nil {
		return 1
	}
	if a.req.MaxIterations <= 0 {
		return 0
	}
	return float64(len(a.reports)) / float64(a.req.MaxIterations)
}

// View implements tea.Model.
func (a *App) View() string {
	var b strings.Builder

	b.WriteString(a.styles.Title.Render("strata") + " " + a.styles.Normal.Render(a.req.Title))
	b.WriteString("\n\n")

	if a.done {
		b.WriteString(a.styles.Muted.Render("  "))
	} else {
		b.WriteString(a.spinner.View() + " ")
	}
	b.WriteString(a.progress.ViewAs(a.percent()))
	b.WriteString("\n\n")

	b.WriteString(a.styles.Subtitle.Render(
		fmt.Sprintf("Section confidence (threshold %.2f)", a.req.ConfidenceThreshold)))
	b.WriteString("\n")
	b.WriteString(a.scores.View())
	b.WriteString("\n\n")

	b.WriteString(a.issuesView())
	b.WriteString("\n")
	b.WriteString(a.statusBar.View())
	return b.String()
}

func (a *App) issuesView() string {
	if len(a.reports) == 0 {
		return ""
	}
	issues := a.reports[len(a.reports)-1].Issues
	if len(issues) == 0 {
		return a.styles.Success.Render("No open issues") + "\n"
	}

	var b strings.Builder
	b.WriteString(a.styles.Subtitle.Render(fmt.Sprintf("Issues (%d)", len(issues))))
	b.WriteString("\n")
	shown := issues
	if !a.allIssues && len(shown) > collapsedIssues {
		shown = shown[:collapsedIssues]
	}
	for _, issue := range shown {
		b.WriteString(a.styles.Warning.Render("  - " + issue))
		b.WriteString("\n")
	}
	if hidden := len(issues) - len(shown); hidden > 0 {
		b.WriteString(a.styles.Muted.Render(fmt.Sprintf("  ... %d more", hidden)))
		b.WriteString("\n")
	}
	return b.String()
}

// Run shows the progress view for one run and returns its outcome.
func Run(ctx context.Context, ports *Ports, req domain.RunRequest, opts ...tea.ProgramOption) (*driving.ResearchOutcome, error) {
	app, err := NewApp(ports, req)
	if err != nil {
		return nil, err
	}
	app.WithContext(ctx)
	defer app.cancel()

	if _, err := tea.NewProgram(app, opts...).Run(); err != nil {
		return nil, fmt.Errorf("TUI error: %w", err)
	}
	return app.Outcome()
}
