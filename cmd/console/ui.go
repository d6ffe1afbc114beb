package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/pathrpg/engine/internal/handlers"
)

// screen is the UI mode the model is currently rendering.
type screen int

const (
	screenLogin screen = iota
	screenGame
	screenComplete
	screenLeaderboard
	screenAchievements
)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config *ConsoleConfig
	client *http.Client

	screen   screen
	token    string
	username string

	game  *handlers.GameResponse
	done  *handlers.CompleteResponse
	board *handlers.LeaderboardResponse
	achs  *handlers.AchievementsResponse

	sceneViewport  viewport.Model
	metaViewport   viewport.Model
	usernameInput  textinput.Model
	passwordInput  textinput.Model
	focusPassword  bool
	registerMode   bool
	selectedChoice int

	ready   bool
	width   int
	height  int
	err     error
	loading bool

	showQuitModal bool
}

type authResultMsg struct {
	tok *handlers.TokenResponse
	err error
}

type gameLoadedMsg struct {
	game *handlers.GameResponse
	err  error
}

type gameCompletedMsg struct {
	done *handlers.CompleteResponse
	err  error
}

type leaderboardMsg struct {
	board *handlers.LeaderboardResponse
	err   error
}

type achievementsMsg struct {
	achs *handlers.AchievementsResponse
	err  error
}

var (
	scenePanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	sceneTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	storyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	hpGoodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")) // bright green

	hpLowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	selectedChoiceStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) ConsoleUI {
	userIn := textinput.New()
	userIn.Placeholder = "username"
	userIn.CharLimit = 50
	userIn.Width = 30
	userIn.Focus()

	passIn := textinput.New()
	passIn.Placeholder = "password"
	passIn.CharLimit = 72
	passIn.Width = 30
	passIn.EchoMode = textinput.EchoPassword

	sceneVp := viewport.New(50, 20)
	sceneVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		config:        cfg,
		client:        client,
		screen:        screenLogin,
		usernameInput: userIn,
		passwordInput: passIn,
		sceneViewport: sceneVp,
		metaViewport:  metaVp,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return textinput.Blink
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizePanels()
		m.ready = true
		if m.game != nil {
			m.writeSceneContent()
			m.metaViewport.SetContent(m.writeMetadata())
		}
		return m, nil

	case authResultMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.token = msg.tok.Token
		m.username = msg.tok.Username
		m.loading = true
		return m, m.loadGame()

	case gameLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.screen = screenGame
		m.game = msg.game
		m.done = nil
		m.selectedChoice = 0
		if m.game != nil {
			m.writeSceneContent()
			m.metaViewport.SetContent(m.writeMetadata())
		}
		return m, nil

	case gameCompletedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.screen = screenComplete
		m.done = msg.done
		return m, nil

	case leaderboardMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.screen = screenLeaderboard
		m.board = msg.board
		return m, nil

	case achievementsMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.screen = screenAchievements
		m.achs = msg.achs
		return m, nil
	}

	switch m.screen {
	case screenLogin:
		return m.updateLogin(msg)
	case screenGame:
		return m.updateGame(msg)
	case screenComplete:
		return m.updateComplete(msg)
	case screenLeaderboard, screenAchievements:
		return m.updateOverlay(msg)
	}
	return m, nil
}

func (m *ConsoleUI) resizePanels() {
	sceneWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - sceneWidth - 6

	m.sceneViewport.Width = sceneWidth - 2
	m.sceneViewport.Height = m.height - 5
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
}

func (m ConsoleUI) updateLogin(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		if m.focusPassword {
			m.passwordInput, cmd = m.passwordInput.Update(msg)
		} else {
			m.usernameInput, cmd = m.usernameInput.Update(msg)
		}
		return m, cmd
	}

	switch keyMsg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.showQuitModal = true
		return m, nil

	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		m.focusPassword = !m.focusPassword
		if m.focusPassword {
			m.usernameInput.Blur()
			return m, m.passwordInput.Focus()
		}
		m.passwordInput.Blur()
		return m, m.usernameInput.Focus()

	case tea.KeyCtrlR:
		m.registerMode = !m.registerMode
		return m, nil

	case tea.KeyEnter:
		if m.loading {
			return m, nil
		}
		username := strings.TrimSpace(m.usernameInput.Value())
		password := m.passwordInput.Value()
		if username == "" || password == "" {
			m.err = fmt.Errorf("username and password are required")
			return m, nil
		}
		m.loading = true
		m.err = nil
		return m, m.authenticate(username, password)
	}

	var cmd tea.Cmd
	if m.focusPassword {
		m.passwordInput, cmd = m.passwordInput.Update(msg)
	} else {
		m.usernameInput, cmd = m.usernameInput.Update(msg)
	}
	return m, cmd
}

func (m ConsoleUI) updateGame(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.sceneViewport, cmd = m.sceneViewport.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.loading {
			if msg.Type == tea.KeyCtrlC {
				m.showQuitModal = true
			}
			return m, nil
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil

		case tea.KeyUp:
			if m.selectedChoice > 0 {
				m.selectedChoice--
				m.writeSceneContent()
			}
			return m, nil

		case tea.KeyDown:
			if m.game != nil && m.selectedChoice < len(m.game.Scene.Choices)-1 {
				m.selectedChoice++
				m.writeSceneContent()
			}
			return m, nil

		case tea.KeyEnter:
			if m.game == nil {
				m.loading = true
				return m, m.newGame()
			}
			if m.game.Scene.IsEnding {
				m.loading = true
				return m, m.complete()
			}
			if len(m.game.Scene.Choices) == 0 {
				return m, nil
			}
			choice := m.game.Scene.Choices[m.selectedChoice]
			m.loading = true
			m.err = nil
			return m, m.choose(choice.Key)
		}

		switch msg.String() {
		case "n":
			m.loading = true
			m.err = nil
			return m, m.newGame()
		case "l":
			m.loading = true
			m.err = nil
			return m, m.loadLeaderboard()
		case "a":
			m.loading = true
			m.err = nil
			return m, m.loadAchievements()
		}
	}

	var cmd tea.Cmd
	m.sceneViewport, cmd = m.sceneViewport.Update(msg)
	return m, cmd
}

func (m ConsoleUI) updateComplete(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.showQuitModal = true
		return m, nil
	case tea.KeyEnter:
		m.loading = true
		return m, m.newGame()
	}

	switch keyMsg.String() {
	case "n":
		m.loading = true
		return m, m.newGame()
	case "l":
		m.loading = true
		return m, m.loadLeaderboard()
	case "a":
		m.loading = true
		return m, m.loadAchievements()
	}
	return m, nil
}

// updateOverlay handles the leaderboard and achievements screens, which
// only need a way back.
func (m ConsoleUI) updateOverlay(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.Type {
	case tea.KeyCtrlC:
		m.showQuitModal = true
		return m, nil
	case tea.KeyEsc, tea.KeyEnter:
		if m.done != nil {
			m.screen = screenComplete
		} else {
			m.screen = screenGame
		}
		return m, nil
	}
	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizePanels()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				return m, nil
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) authenticate(username, password string) tea.Cmd {
	registerMode := m.registerMode
	return func() tea.Msg {
		var tok *handlers.TokenResponse
		var err error
		if registerMode {
			tok, err = register(m.client, m.config.APIBaseURL, username, password)
		} else {
			tok, err = login(m.client, m.config.APIBaseURL, username, password)
		}
		return authResultMsg{tok, err}
	}
}

func (m ConsoleUI) loadGame() tea.Cmd {
	return func() tea.Msg {
		game, err := getGame(m.client, m.config.APIBaseURL, m.token)
		return gameLoadedMsg{game, err}
	}
}

func (m ConsoleUI) newGame() tea.Cmd {
	return func() tea.Msg {
		game, err := startGame(m.client, m.config.APIBaseURL, m.token)
		return gameLoadedMsg{game, err}
	}
}

func (m ConsoleUI) choose(choiceKey string) tea.Cmd {
	return func() tea.Msg {
		game, err := sendChoice(m.client, m.config.APIBaseURL, m.token, choiceKey)
		return gameLoadedMsg{game, err}
	}
}

func (m ConsoleUI) complete() tea.Cmd {
	return func() tea.Msg {
		done, err := completeGame(m.client, m.config.APIBaseURL, m.token)
		return gameCompletedMsg{done, err}
	}
}

func (m ConsoleUI) loadLeaderboard() tea.Cmd {
	return func() tea.Msg {
		board, err := getLeaderboard(m.client, m.config.APIBaseURL)
		return leaderboardMsg{board, err}
	}
}

func (m ConsoleUI) loadAchievements() tea.Cmd {
	return func() tea.Msg {
		achs, err := getAchievements(m.client, m.config.APIBaseURL, m.token)
		return achievementsMsg{achs, err}
	}
}

// writeSceneContent renders the current scene and its choices into the
// scene viewport for the current width.
func (m *ConsoleUI) writeSceneContent() {
	sceneWidth := m.sceneViewport.Width - 6
	if sceneWidth < 20 {
		sceneWidth = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("CHOOSE YOUR PATH") + "\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", sceneWidth)) + "\n\n")

	if m.game == nil {
		content.WriteString("No adventure in progress.\n\n")
		content.WriteString(promptStyle.Render("Press Enter or N to start a new game"))
		m.sceneViewport.SetContent(content.String())
		return
	}

	sc := m.game.Scene
	content.WriteString(sceneTitleStyle.Render(sc.Title) + "\n\n")
	content.WriteString(storyStyle.Render(wordwrap.String(sc.Text, sceneWidth)) + "\n\n")

	if last := m.game.LastChoice; last != nil {
		if last.HPChange != 0 {
			content.WriteString(loadingStyle.Render(fmt.Sprintf("Health %+d", last.HPChange)) + "\n")
		}
		if last.ItemGained != "" {
			content.WriteString(loadingStyle.Render("Found: "+last.ItemGained) + "\n")
		}
		if last.HPChange != 0 || last.ItemGained != "" {
			content.WriteString("\n")
		}
	}

	if sc.IsEnding {
		content.WriteString(separatorStyle.Render(strings.Repeat("─", sceneWidth)) + "\n\n")
		content.WriteString(sceneTitleStyle.Render("Your adventure has reached its end.") + "\n\n")
		content.WriteString(promptStyle.Render("Press Enter to record your run on the leaderboard"))
	} else {
		content.WriteString("What do you do?\n\n")
		for i, choice := range sc.Choices {
			label := fmt.Sprintf("%d. %s", i+1, choice.Text)
			if i == m.selectedChoice {
				content.WriteString(selectedChoiceStyle.Render("▶ "+label) + "\n")
			} else {
				content.WriteString(choiceStyle.Render("  "+label) + "\n")
			}
		}
	}

	m.sceneViewport.SetContent(content.String())
}

func (m *ConsoleUI) writeMetadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("ADVENTURER") + "\n\n")
	content.WriteString(m.username + "\n\n")

	if m.game != nil {
		content.WriteString("Health:\n")
		content.WriteString(renderHPBar(m.game.HP, 16) + "\n")
		content.WriteString(fmt.Sprintf("%d / 100\n\n", m.game.HP))

		content.WriteString(fmt.Sprintf("Choices made:\n%d\n\n", m.game.ChoicesMade))

		content.WriteString("Inventory:\n")
		if len(m.game.Inventory) == 0 {
			content.WriteString("Empty\n")
		} else {
			for _, item := range m.game.Inventory {
				content.WriteString("• " + item + "\n")
			}
		}
		content.WriteString("\n")
	}

	content.WriteString("Commands:\n")
	content.WriteString("• ↑/↓: Select\n")
	content.WriteString("• Enter: Choose\n")
	content.WriteString("• N: New game\n")
	content.WriteString("• L: Leaderboard\n")
	content.WriteString("• A: Achievements\n")
	content.WriteString("• Esc: Quit\n")

	return content.String()
}

// renderHPBar draws a fixed-width health bar, red when low.
func renderHPBar(hp, width int) string {
	if hp < 0 {
		hp = 0
	}
	if hp > 100 {
		hp = 100
	}
	filled := hp * width / 100

	var bar strings.Builder
	for i := 0; i < width; i++ {
		if i < filled {
			bar.WriteString("█")
		} else {
			bar.WriteString("░")
		}
	}
	if hp <= 25 {
		return hpLowStyle.Render(bar.String())
	}
	return hpGoodStyle.Render(bar.String())
}

func (m ConsoleUI) renderLoginModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	if m.registerMode {
		content.WriteString(modalTitleStyle.Render("Create Your Adventurer"))
	} else {
		content.WriteString(modalTitleStyle.Render("Choose Your Path"))
	}
	content.WriteString("\n\n")
	content.WriteString("Username:\n")
	content.WriteString(m.usernameInput.View() + "\n\n")
	content.WriteString("Password:\n")
	content.WriteString(m.passwordInput.View() + "\n\n")

	if m.loading {
		content.WriteString(loadingStyle.Render("Signing in...") + "\n\n")
	} else if m.err != nil {
		content.WriteString(errorStyle.Render(m.err.Error()) + "\n\n")
	}

	if m.registerMode {
		content.WriteString(promptStyle.Render("Enter: register • Ctrl+R: back to login • Esc: quit"))
	} else {
		content.WriteString(promptStyle.Render("Enter: login • Ctrl+R: new account • Esc: quit"))
	}

	modal := modalStyle.Width(46).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Your progress is saved. You can resume later.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderCompleteModal() string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Run Complete"))
	content.WriteString("\n\n")

	if m.done != nil {
		e := m.done.Entry
		content.WriteString(fmt.Sprintf("Ending:    %s\n", e.EndingReached))
		content.WriteString(fmt.Sprintf("Final HP:  %d\n", e.FinalHP))
		content.WriteString(fmt.Sprintf("Choices:   %d\n", e.ChoicesCount))
		content.WriteString(fmt.Sprintf("Playtime:  %d min\n", e.PlaytimeMinutes))
		content.WriteString("\n")
	}

	if m.err != nil {
		content.WriteString(errorStyle.Render(m.err.Error()) + "\n\n")
	}

	content.WriteString(promptStyle.Render("N: new game • L: leaderboard • A: achievements • Esc: quit"))

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderLeaderboard() string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Leaderboard"))
	content.WriteString("\n\n")

	if m.board == nil || len(m.board.Entries) == 0 {
		content.WriteString("No completed runs yet.\n")
	} else {
		for _, e := range m.board.Entries {
			content.WriteString(fmt.Sprintf("%2d. %-16s %-10s HP %3d  %3d min  %d choices\n",
				e.Rank, e.Username, e.EndingReached, e.FinalHP, e.PlaytimeMinutes, e.ChoicesCount))
		}
		content.WriteString("\n")
		content.WriteString(fmt.Sprintf("%d games by %d players, avg %.1f min\n",
			m.board.Stats.TotalGames, m.board.Stats.UniquePlayers, m.board.Stats.AvgPlaytime))
	}

	content.WriteString("\n")
	content.WriteString(promptStyle.Render("Press Esc or Enter to go back"))

	modal := modalStyle.Width(70).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderAchievements() string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Achievements"))
	content.WriteString("\n\n")

	if m.achs != nil {
		for _, a := range m.achs.Achievements {
			marker := "  "
			if a.Unlocked {
				marker = a.Icon + " "
			}
			line := fmt.Sprintf("%s%-18s %s", marker, a.Name, a.Description)
			if a.Unlocked {
				content.WriteString(choiceStyle.Render(line) + "\n")
			} else {
				content.WriteString(promptStyle.Render(line) + "\n")
			}
		}
		content.WriteString("\n")
		content.WriteString(fmt.Sprintf("%d of %d unlocked\n", m.achs.Unlocked, m.achs.Total))
	}

	content.WriteString("\n")
	content.WriteString(promptStyle.Render("Press Esc or Enter to go back"))

	modal := modalStyle.Width(70).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	switch m.screen {
	case screenLogin:
		return m.renderLoginModal()
	case screenComplete:
		return m.renderCompleteModal()
	case screenLeaderboard:
		return m.renderLeaderboard()
	case screenAchievements:
		return m.renderAchievements()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	sceneWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - sceneWidth - 6

	statusLine := ""
	if m.loading {
		statusLine = loadingStyle.Render("...")
	} else if m.err != nil {
		statusLine = errorStyle.Render("Error: " + m.err.Error())
	}

	scenePanel := scenePanelStyle.Width(sceneWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.sceneViewport.View(),
			"",
			statusLine,
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, scenePanel, metaPanel)
}
