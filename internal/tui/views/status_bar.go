package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// StatusBar displays the session name, connection state, a typing
// indicator for the open conversation, and transient flash messages.
type StatusBar struct {
	*tview.TextView
	session string
	state   string
	typing  string
	flash   string
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetSession updates the session name display.
func (sb *StatusBar) SetSession(name string) {
	sb.session = name
	sb.render()
}

// SetState updates the connection state display.
func (sb *StatusBar) SetState(state string) {
	sb.state = state
	sb.render()
}

// SetTyping shows "<name> is typing..." for the open conversation; an
// empty name clears it.
func (sb *StatusBar) SetTyping(name string) {
	if name == "" {
		sb.typing = ""
	} else {
		sb.typing = name + " is typing..."
	}
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	stateColor := "red"
	switch sb.state {
	case "AUTHENTICATED":
		stateColor = "green"
	case "CONNECTING", "RECONNECTING":
		stateColor = "yellow"
	}

	clock := time.Now().Format("15:04")

	line := fmt.Sprintf(" [::b]%s[-:-:-] | [%s]%s[-] | %s", sb.session, stateColor, sb.state, clock)
	if sb.typing != "" {
		line += fmt.Sprintf(" | [aqua]%s[-]", tview.Escape(sanitizeForTerminal(sb.typing)))
	}
	if sb.flash != "" {
		line += fmt.Sprintf(" | [yellow]%s[-]", tview.Escape(sb.flash))
	}

	_, _ = fmt.Fprint(sb, line)
}
