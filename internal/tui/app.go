package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/chirp-chat/chirp/internal/api"
	"github.com/chirp-chat/chirp/internal/bus"
	"github.com/chirp-chat/chirp/internal/creds"
	"github.com/chirp-chat/chirp/internal/ingest"
	"github.com/chirp-chat/chirp/internal/media"
	"github.com/chirp-chat/chirp/internal/outbox"
	"github.com/chirp-chat/chirp/internal/realtime"
	"github.com/chirp-chat/chirp/internal/roster"
	"github.com/chirp-chat/chirp/internal/status"
	"github.com/chirp-chat/chirp/internal/store"
	"github.com/chirp-chat/chirp/internal/tui/views"
	"github.com/chirp-chat/chirp/internal/typing"
)

const threadWindow = 500

// Deps bundles everything the terminal UI needs.
type Deps struct {
	SessionName string
	Bus         *bus.Bus
	DB          *store.DB
	Creds       *creds.Store
	Auth        *api.Authenticator
	Channel     *realtime.Channel
	Machine     *status.Machine
	Roster      *roster.Manager
	Sender      *outbox.Sender
	Engine      *ingest.Engine
	Typing      *typing.Coordinator
	Logger      *zap.Logger
}

// App is the terminal UI.
type App struct {
	deps Deps
	tv   *tview.Application

	pages       *tview.Pages
	mainContent *tview.Pages
	auth        *views.AuthView
	friends     *views.FriendList
	thread      *views.MessageThread
	addFriend   *views.AddFriendView
	statusBar   *views.StatusBar

	selected *store.Friend

	unsubscribe func()
}

// New builds the UI and wires the view callbacks.
func New(deps Deps) *App {
	a := &App{
		deps: deps,
		tv:   tview.NewApplication(),
	}

	a.auth = views.NewAuthView()
	a.friends = views.NewFriendList()
	a.thread = views.NewMessageThread()
	a.addFriend = views.NewAddFriendView()
	a.statusBar = views.NewStatusBar()

	a.statusBar.SetSession(deps.SessionName)
	a.statusBar.SetState(string(deps.Machine.Current()))

	a.auth.SetOnLogin(a.handleLogin)
	a.auth.SetOnSignup(a.handleSignup)
	a.friends.SetOnSelect(a.handleFriendSelect)
	a.thread.SetOnSend(a.handleSend)
	a.thread.SetOnInput(deps.Typing.InputEvent)
	a.addFriend.SetOnSearch(a.handleSearch)
	a.addFriend.SetOnAdd(a.handleAddFriend)
	a.addFriend.SetOnClose(func() { a.showMain(a.friends) })

	mainFlex := tview.NewFlex().
		AddItem(a.friends, 30, 0, true).
		AddItem(a.thread, 0, 1, false)

	a.mainContent = tview.NewPages().
		AddPage("main", mainFlex, true, true).
		AddPage("addfriend", a.addFriend, true, false)

	mainPage := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.mainContent, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.pages = tview.NewPages().
		AddPage("auth", a.auth, true, true).
		AddPage("session", mainPage, true, false)

	a.tv.SetInputCapture(a.handleKey)
	a.tv.SetRoot(a.pages, true)

	return a
}

// Run starts the event pump and blocks until the UI exits.
func (a *App) Run() error {
	ch, cancel := a.deps.Bus.Subscribe("", 256)
	a.unsubscribe = cancel
	go a.pump(ch)
	go a.clockLoop()

	if _, ok := a.deps.Creds.Load(); ok {
		a.enterSession()
	}

	defer a.unsubscribe()
	return a.tv.Run()
}

// Stop terminates the UI loop.
func (a *App) Stop() {
	a.tv.Stop()
}

func (a *App) pump(ch <-chan bus.Event) {
	for evt := range ch {
		a.tv.QueueUpdateDraw(func() {
			a.handleEvent(evt)
		})
	}
}

func (a *App) clockLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		a.tv.QueueUpdateDraw(func() {
			a.statusBar.SetState(string(a.deps.Machine.Current()))
		})
	}
}

func (a *App) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindStatusChanged:
		if change, ok := evt.Payload.(status.StatusChange); ok {
			a.statusBar.SetState(string(change.To))
		}

	case bus.KindAuthExpired:
		a.handleAuthExpired(evt)

	case bus.KindPeerTyping:
		if te, ok := evt.Payload.(realtime.TypingEvent); ok && a.isSelected(te.SenderID) {
			a.statusBar.SetTyping(a.selected.Username)
		}

	case bus.KindPeerStopTyping:
		if te, ok := evt.Payload.(realtime.TypingEvent); ok && a.isSelected(te.SenderID) {
			a.statusBar.SetTyping("")
		}

	case bus.KindMessageUpsert, bus.KindSendAck:
		if m, ok := evt.Payload.(map[string]string); ok && a.isSelected(m["peer_id"]) {
			a.refreshThread()
		}

	case bus.KindSendFailed:
		a.statusBar.SetFlash("send failed")
		if m, ok := evt.Payload.(map[string]string); ok && a.isSelected(m["peer_id"]) {
			a.refreshThread()
		}

	case bus.KindSendUncertain:
		a.statusBar.SetFlash("send unconfirmed, will show as pending")

	case bus.KindRosterUpdated:
		a.refreshFriends()
	}
}

func (a *App) handleAuthExpired(evt bus.Event) {
	reason, _ := evt.Payload.(string)
	a.deps.Logger.Warn("session rejected by server", zap.String("reason", reason))

	if err := a.deps.Auth.Logout(); err != nil {
		a.deps.Logger.Warn("failed to clear credentials", zap.Error(err))
	}
	a.deps.Typing.Reset()
	a.deps.Roster.ClearSelection()
	a.selected = nil

	a.auth.ShowLogin()
	a.auth.SetError("Session expired, please log in again")
	a.pages.SwitchToPage("auth")
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	page, _ := a.pages.GetFrontPage()
	if page != "session" {
		return event
	}

	focused := a.tv.GetFocus()
	composing := focused == a.thread.Composer()

	switch {
	case event.Key() == tcell.KeyEscape:
		if composing {
			a.tv.SetFocus(a.friends)
			return nil
		}
		inner, _ := a.mainContent.GetFrontPage()
		if inner == "addfriend" {
			a.showMain(a.friends)
			return nil
		}

	case composing:
		// Everything else belongs to the composer while it has focus.
		return event

	case event.Rune() == 'i':
		if a.selected != nil {
			a.tv.SetFocus(a.thread.Composer())
			return nil
		}

	case event.Rune() == 'a':
		a.addFriend.Reset()
		a.mainContent.SwitchToPage("addfriend")
		a.tv.SetFocus(a.addFriend)
		return nil

	case event.Rune() == 'r':
		go a.refreshRoster()
		return nil

	case event.Key() == tcell.KeyCtrlL:
		a.handleLogout()
		return nil
	}
	return event
}

func (a *App) handleLogin(sub views.LoginSubmit) {
	if sub.UsernameOrEmail == "" || sub.Password == "" {
		a.auth.SetError("Username and password are required")
		return
	}
	a.auth.SetMessage("Logging in...")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_, err := a.deps.Auth.Login(ctx, sub.UsernameOrEmail, sub.Password)
		a.tv.QueueUpdateDraw(func() {
			if err != nil {
				a.auth.SetError(authErrorText(err))
				return
			}
			a.enterSession()
		})
	}()
}

func (a *App) handleSignup(sub views.SignupSubmit) {
	if sub.Username == "" || sub.Email == "" || sub.Password == "" {
		a.auth.SetError("Username, email and password are required")
		return
	}
	a.auth.SetMessage("Creating account...")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_, err := a.deps.Auth.Signup(ctx, &api.SignupRequest{
			FullName:    sub.FullName,
			Username:    sub.Username,
			Email:       sub.Email,
			PhoneNumber: sub.PhoneNumber,
			Country:     sub.Country,
			Password:    sub.Password,
		})
		a.tv.QueueUpdateDraw(func() {
			if err != nil {
				a.auth.SetError(authErrorText(err))
				return
			}
			a.enterSession()
		})
	}()
}

// enterSession switches to the session page after login or with stored
// credentials, connects the realtime channel and refreshes the roster.
func (a *App) enterSession() {
	if err := a.deps.Channel.Connect(); err != nil {
		a.deps.Logger.Warn("connect failed", zap.Error(err))
		a.statusBar.SetFlash("connect failed")
	}
	go a.refreshRoster()

	a.refreshFriends()
	a.pages.SwitchToPage("session")
	a.showMain(a.friends)
}

func (a *App) handleLogout() {
	a.deps.Channel.Close()
	if err := a.deps.Auth.Logout(); err != nil {
		a.deps.Logger.Warn("logout failed", zap.Error(err))
	}
	a.deps.Typing.Reset()
	a.deps.Roster.ClearSelection()
	a.selected = nil
	a.deps.Bus.Publish(bus.Event{Kind: bus.KindLoggedOut})

	a.auth.ShowLogin()
	a.auth.SetMessage("Logged out")
	a.pages.SwitchToPage("auth")
}

func (a *App) handleFriendSelect(friendID string) {
	// Withdraw any live typing indicator for the old peer before the
	// selection moves.
	a.deps.Typing.SetActivePeer(friendID)
	if err := a.deps.Roster.Select(friendID); err != nil {
		a.deps.Logger.Warn("cannot open conversation", zap.String("friend_id", friendID), zap.Error(err))
		return
	}
	friend, err := a.deps.DB.GetFriend(friendID)
	if err != nil || friend == nil {
		return
	}
	a.selected = friend
	a.statusBar.SetTyping("")

	a.thread.SetPeerName(friend.Username)
	a.refreshThread()
	a.tv.SetFocus(a.thread.Composer())

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := a.deps.Engine.LoadHistory(ctx, friendID); err != nil {
			a.deps.Logger.Warn("history load failed", zap.String("peer_id", friendID), zap.Error(err))
		}
	}()
}

func (a *App) handleSend(text string) {
	if a.selected == nil {
		return
	}

	content, msgType := text, "text"
	// "/file <path>" sends an image, audio file or gif from disk.
	if path, ok := strings.CutPrefix(text, "/file "); ok {
		att, err := media.FromPath(strings.TrimSpace(path))
		if err != nil {
			a.statusBar.SetFlash(err.Error())
			return
		}
		content, msgType = att.Content, att.Type
	}

	if _, err := a.deps.Sender.Send(a.selected.ID, content, msgType); err != nil {
		a.deps.Logger.Error("queue send failed", zap.Error(err))
		a.statusBar.SetFlash("could not queue message")
		return
	}
	a.deps.Typing.MessageSent()
	a.refreshThread()
}

func (a *App) handleSearch(displayID string) {
	if displayID == "" {
		a.addFriend.ShowError("enter a user id")
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		found, err := a.deps.Roster.Search(ctx, displayID)
		a.tv.QueueUpdateDraw(func() {
			if err != nil {
				a.addFriend.ShowError(authErrorText(err))
				return
			}
			a.addFriend.ShowResult(found.ID, found.UserID, found.Username)
		})
	}()
}

func (a *App) handleAddFriend(friendID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := a.deps.Roster.AddFriend(ctx, friendID)
		a.tv.QueueUpdateDraw(func() {
			if err != nil {
				a.addFriend.ShowError(authErrorText(err))
				return
			}
			a.showMain(a.friends)
			a.statusBar.SetFlash("friend added")
		})
	}()
}

func (a *App) refreshRoster() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.deps.Roster.Refresh(ctx); err != nil {
		a.deps.Logger.Warn("roster refresh failed", zap.Error(err))
	}
}

func (a *App) refreshFriends() {
	friends, err := a.deps.Roster.List()
	if err != nil {
		a.deps.Logger.Error("listing friends failed", zap.Error(err))
		return
	}
	a.friends.Update(friends)
}

func (a *App) refreshThread() {
	if a.selected == nil {
		return
	}
	msgs, err := a.deps.DB.ListMessages(a.selected.ID, threadWindow)
	if err != nil {
		a.deps.Logger.Error("listing messages failed", zap.Error(err))
		return
	}
	a.thread.Update(msgs)
}

func (a *App) isSelected(peerID string) bool {
	return a.selected != nil && peerID != "" && a.selected.ID == peerID
}

func (a *App) showMain(focus tview.Primitive) {
	a.mainContent.SwitchToPage("main")
	a.tv.SetFocus(focus)
}

func authErrorText(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fmt.Sprintf("request failed: %v", err)
}
