package ui

import (
	"context"

	"agentchat/internal/chat"
	"agentchat/internal/db"
	"agentchat/internal/models"
	"agentchat/internal/route"
	"agentchat/internal/store"
	"agentchat/internal/voice"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"
)

const (
	ModalWidthMax   = 64
	ModalWidthMin   = 30
	CompactWidth    = 90 // below this the sidebar is hidden
	HistoryPageSize = 10
	HistoryLimit    = 50
)

// Overlay is a screen drawn over the chat that is not part of the shared
// state tree.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayShortcuts
	OverlayHistory
	OverlayKnowledge
)

type Focus int

const (
	FocusInput Focus = iota
	FocusSidebar
)

// Deps are the components the screen drives. Turns, Player, Recorder and
// History may be nil when unavailable.
type Deps struct {
	Store    *store.Store
	Chat     *chat.Service
	Turns    *voice.Turns
	Player   *voice.Player
	Recorder *voice.Recorder
	History  *db.History
	Start    route.Location
	Log      *zap.Logger
}

// StateMsg carries a store snapshot into the program.
type StateMsg struct{ State store.State }

// PlayerMsg carries a playback state change into the program.
type PlayerMsg struct{ State voice.PlayerState }

// resultMsg reports the outcome of a background operation.
type resultMsg struct {
	op  string
	err error
}

type sessionCreatedMsg struct {
	session *models.Session
	err     error
}

type agentSavedMsg struct {
	agent   *models.Agent
	created bool
	err     error
}

type refinedMsg struct {
	prompt string
	err    error
}

type documentsMsg struct {
	agentID string
	docs    []models.Document
	err     error
}

type uploadedMsg struct {
	doc *models.Document
	err error
}

type visitsMsg struct {
	count  int
	visits []models.Visit
	err    error
}

// agentForm backs the create and edit agent modal.
type agentForm struct {
	name        textinput.Model
	description textinput.Model
	prompt      textarea.Model
	focus       int
	refining    bool
	saving      bool
	err         string
}

type knowledgePanel struct {
	agentID   string
	docs      []models.Document
	idx       int
	path      textinput.Model
	loading   bool
	uploading bool
	err       string
}

type historyPanel struct {
	visits []models.Visit
	count  int
	idx    int
	page   int
	err    string
}

type Model struct {
	deps Deps
	ctx  context.Context
	log  *zap.Logger

	state  store.State
	player voice.PlayerState

	Viewport  viewport.Model
	TextInput textarea.Model
	Spinner   spinner.Model
	Renderer  *glamour.TermRenderer
	rendered  map[string]string

	WindowWidth  int
	WindowHeight int

	overlay   Overlay
	focus     Focus
	cursor    int // sidebar row
	notice    string
	noticeErr bool
	follow    bool // keep the transcript scrolled to the bottom

	form      agentForm
	knowledge knowledgePanel
	history   historyPanel

	Program *tea.Program
}
