package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/AnatoleLucet/live"
	"github.com/AnatoleLucet/live/config"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Fetch.Delay = config.Duration{Duration: 10 * time.Millisecond}
	return cfg
}

func TestRunOnce(t *testing.T) {
	var out bytes.Buffer

	err := runOnce(context.Background(), testConfig(), zerolog.Nop(), &out)
	require.NoError(t, err)

	assert.Equal(t, "loading: false\n"+
		"loading: true\n"+
		"data: Hello World\n"+
		"loading: false\n"+
		"toast: download complete\n", out.String())
}

func TestRootCmd(t *testing.T) {
	t.Run("once with flags", func(t *testing.T) {
		var out bytes.Buffer

		cmd := rootCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--once", "--text", "Salut", "--delay", "5ms"})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "data: Salut\n")
	})

	t.Run("once with env", func(t *testing.T) {
		t.Setenv("HELLO_TEXT", "from env")
		t.Setenv("HELLO_DELAY", "5ms")

		var out bytes.Buffer
		cmd := rootCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--once"})

		start := time.Now()
		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "data: from env\n")
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("flags beat env", func(t *testing.T) {
		t.Setenv("HELLO_TEXT", "from env")

		var out bytes.Buffer
		cmd := rootCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--once", "--text", "from flag", "--delay", "5ms"})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "data: from flag\n")
	})

	t.Run("rejects bad env delay", func(t *testing.T) {
		t.Setenv("HELLO_DELAY", "soon")

		cmd := rootCmd()
		cmd.SetArgs([]string{"--once"})

		assert.ErrorContains(t, cmd.Execute(), "HELLO_DELAY")
	})

	t.Run("rejects bad log level", func(t *testing.T) {
		cmd := rootCmd()
		cmd.SetArgs([]string{"--once", "--log-level", "loud"})

		assert.ErrorContains(t, cmd.Execute(), `invalid log level "loud"`)
	})

	t.Run("rejects zero delay", func(t *testing.T) {
		cmd := rootCmd()
		cmd.SetArgs([]string{"--once", "--delay", "0s"})

		assert.ErrorContains(t, cmd.Execute(), "fetch.delay must be positive")
	})
}

func TestScreen(t *testing.T) {
	newTestScreen := func() (screen, *live.Looper, *controller) {
		looper := live.NewLooper()
		ctrl := &controller{
			wf:   newWorkflow(testConfig(), looper, zerolog.Nop()),
			send: func(tea.Msg) {},
		}
		return newScreen(looper.Post, ctrl, time.Second), looper, ctrl
	}

	t.Run("renders data and loading", func(t *testing.T) {
		s, _, _ := newTestScreen()
		assert.Contains(t, s.View(), "nothing fetched yet")

		m, _ := s.Update(loadingMsg(true))
		assert.Contains(t, m.View(), "loading")

		m, _ = m.Update(dataMsg("Hello World"))
		m, _ = m.Update(loadingMsg(false))
		assert.Contains(t, m.View(), "Hello World")
	})

	t.Run("toast expires", func(t *testing.T) {
		s, _, _ := newTestScreen()

		m, cmd := s.Update(toastMsg("download complete"))
		require.NotNil(t, cmd)
		assert.Contains(t, m.View(), "download complete")

		// an older expiry does not hide a newer toast
		m, _ = m.Update(toastMsg("again"))
		m, _ = m.Update(toastExpiredMsg{id: 1})
		assert.Contains(t, m.View(), "again")

		m, _ = m.Update(toastExpiredMsg{id: 2})
		assert.NotContains(t, m.View(), "again")
	})

	t.Run("ignores stale view messages", func(t *testing.T) {
		s, _, _ := newTestScreen()

		m, _ := s.Update(viewMsg{generation: 2, active: true})
		m, _ = m.Update(viewMsg{generation: 1, active: false})

		assert.NotContains(t, m.View(), "(background)")
		assert.Contains(t, m.View(), "screen #2")
	})

	t.Run("keys post to the looper", func(t *testing.T) {
		s, looper, ctrl := newTestScreen()
		msgs := []tea.Msg{}
		ctrl.send = func(msg tea.Msg) { msgs = append(msgs, msg) }
		ctrl.bind()
		msgs = msgs[:0]

		s.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
		assert.Equal(t, 1, looper.Pending())

		require.NoError(t, looper.RunUntilIdle(context.Background()))
		assert.Equal(t, []tea.Msg{
			loadingMsg(true),
			dataMsg("Hello World"),
			loadingMsg(false),
			toastMsg("download complete"),
		}, msgs)

		_, cmd := s.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
		require.NotNil(t, cmd)
		assert.Equal(t, tea.QuitMsg{}, cmd())
	})

	t.Run("recreate replays data but not the toast", func(t *testing.T) {
		_, looper, ctrl := newTestScreen()
		msgs := []tea.Msg{}
		ctrl.send = func(msg tea.Msg) { msgs = append(msgs, msg) }

		ctrl.bind()
		ctrl.wf.Refresh()
		require.NoError(t, looper.RunUntilIdle(context.Background()))

		msgs = msgs[:0]
		ctrl.recreate()

		assert.Equal(t, []tea.Msg{
			viewMsg{generation: 1, active: false},
			dataMsg("Hello World"),
			loadingMsg(false),
			viewMsg{generation: 2, active: true},
		}, msgs)
	})

	t.Run("background holds updates", func(t *testing.T) {
		_, looper, ctrl := newTestScreen()
		msgs := []tea.Msg{}
		ctrl.send = func(msg tea.Msg) { msgs = append(msgs, msg) }

		ctrl.bind()
		ctrl.toggleBackground()
		ctrl.wf.Refresh()
		require.NoError(t, looper.RunUntilIdle(context.Background()))

		msgs = msgs[:0]
		ctrl.toggleBackground()

		assert.Equal(t, []tea.Msg{
			dataMsg("Hello World"),
			loadingMsg(false),
			toastMsg("download complete"),
			viewMsg{generation: 1, active: true},
		}, msgs)

		ctrl.close()
		assert.False(t, ctrl.wf.Data().HasSubscribers())
	})
}
