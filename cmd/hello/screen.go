package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AnatoleLucet/live"
	"github.com/AnatoleLucet/live/config"
	"github.com/AnatoleLucet/live/refresh"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
)

type (
	dataMsg    string
	loadingMsg bool
	toastMsg   string

	// viewMsg reports the state of the screen's scope.
	viewMsg struct {
		generation int
		active     bool
	}

	toastExpiredMsg struct{ id int }
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	textStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	toastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// controller owns the workflow and the screen's scope. All its methods run on the looper.
type controller struct {
	wf   *refresh.Workflow
	send func(tea.Msg)

	view       *live.Scope
	generation int
}

// bind creates a fresh scope, subscribes the screen to the workflow and activates it.
func (c *controller) bind() {
	c.generation++
	gen := c.generation

	view := live.NewScope()
	c.wf.Data().Subscribe(view, func(data string) { c.send(dataMsg(data)) })
	c.wf.Loading().Subscribe(view, func(loading bool) { c.send(loadingMsg(loading)) })
	c.wf.Toast().Subscribe(view, func(msg string) { c.send(toastMsg(msg)) })
	view.Watch(func() {
		c.send(viewMsg{generation: gen, active: view.IsActive()})
	})

	c.view = view
	view.Activate()
}

func (c *controller) toggleBackground() {
	if c.view.IsActive() {
		c.view.Deactivate()
	} else {
		c.view.Activate()
	}
}

// recreate drops the current scope and binds a new one without refreshing.
func (c *controller) recreate() {
	c.view.Dispose()
	c.bind()
}

func (c *controller) close() {
	if c.view != nil {
		c.view.Dispose()
	}
	c.wf.Close()
}

type screen struct {
	post func(func())
	ctrl *controller

	spinner  spinner.Model
	toastFor time.Duration

	loading    bool
	hasData    bool
	text       string
	toast      string
	toastID    int
	active     bool
	generation int
}

func newScreen(post func(func()), ctrl *controller, toastFor time.Duration) screen {
	return screen{
		post:     post,
		ctrl:     ctrl,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		toastFor: toastFor,
	}
}

func (s screen) Init() tea.Cmd {
	return s.spinner.Tick
}

func (s screen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			s.post(s.ctrl.wf.Refresh)
		case "b":
			s.post(s.ctrl.toggleBackground)
		case "c":
			s.post(s.ctrl.recreate)
		case "q", "ctrl+c":
			return s, tea.Quit
		}
		return s, nil

	case dataMsg:
		s.text = string(msg)
		s.hasData = true
		return s, nil

	case loadingMsg:
		s.loading = bool(msg)
		return s, nil

	case toastMsg:
		s.toastID++
		s.toast = string(msg)
		id := s.toastID
		return s, tea.Tick(s.toastFor, func(time.Time) tea.Msg {
			return toastExpiredMsg{id: id}
		})

	case toastExpiredMsg:
		if msg.id == s.toastID {
			s.toast = ""
		}
		return s, nil

	case viewMsg:
		// messages from a disposed scope are stale
		if msg.generation >= s.generation {
			s.generation = msg.generation
			s.active = msg.active
		}
		return s, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return s, cmd
	}

	return s, nil
}

func (s screen) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("hello"))
	b.WriteString(helpStyle.Render(fmt.Sprintf("  screen #%d", s.generation)))
	if !s.active {
		b.WriteString(helpStyle.Render(" (background)"))
	}
	b.WriteString("\n\n")

	switch {
	case s.loading:
		b.WriteString(s.spinner.View() + " loading…")
	case s.hasData:
		b.WriteString(textStyle.Render(s.text))
	default:
		b.WriteString(helpStyle.Render("nothing fetched yet"))
	}
	b.WriteString("\n\n")

	if s.toast != "" {
		b.WriteString(toastStyle.Render(s.toast))
	}
	b.WriteString("\n\n")

	b.WriteString(helpStyle.Render("r refresh • b background • c recreate • q quit"))
	b.WriteString("\n")

	return b.String()
}

// runScreen runs the core on the calling goroutine's looper and the terminal UI beside it.
func runScreen(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	looper := live.MainLooper()
	defer live.ReleaseMainLooper()

	ctrl := &controller{wf: newWorkflow(cfg, looper, logger)}
	p := tea.NewProgram(newScreen(looper.Post, ctrl, cfg.Toast.Duration.Duration), tea.WithContext(ctx))
	ctrl.send = p.Send

	uiErr := make(chan error, 1)
	go func() {
		_, err := p.Run()
		uiErr <- err
		looper.Post(looper.Quit)
	}()

	looper.Post(ctrl.bind)

	loopErr := looper.Loop(ctx)
	ctrl.close()
	p.Quit()

	err := <-uiErr
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(loopErr, context.Canceled) {
		return nil
	}
	return err
}
