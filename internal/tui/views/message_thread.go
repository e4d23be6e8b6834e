package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/chirp-chat/chirp/internal/store"
)

// MessageThread displays one conversation plus a composer.
type MessageThread struct {
	*tview.Flex
	messages *tview.TextView
	composer *tview.InputField
	peerName string
	onSend   func(text string)
	onInput  func()
}

// NewMessageThread creates a new message thread view.
func NewMessageThread() *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetTitle(" Messages ")

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetTitle(" Compose (i to focus) ")

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && mt.onSend != nil {
			text := composer.GetText()
			if text != "" {
				mt.onSend(text)
				composer.SetText("")
			}
		}
	})
	composer.SetChangedFunc(func(text string) {
		if text != "" && mt.onInput != nil {
			mt.onInput()
		}
	})

	return mt
}

// SetOnSend sets the callback when a message is submitted.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// SetOnInput sets the callback for each composer keystroke. Feeds the
// typing coordinator.
func (mt *MessageThread) SetOnInput(fn func()) {
	mt.onInput = fn
}

// SetPeerName updates the thread title.
func (mt *MessageThread) SetPeerName(name string) {
	mt.peerName = name
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(sanitizeForTerminal(name))))
}

// Update redraws the conversation. Messages arrive in display order.
func (mt *MessageThread) Update(msgs []store.Message) {
	mt.messages.Clear()

	for _, m := range msgs {
		sender := m.SenderName
		if m.FromMe {
			sender = "You"
		}
		if sender == "" {
			sender = mt.peerName
		}

		ts := formatTimestamp(m.Timestamp)
		line := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s%s[-:-:-]\n%s\n\n",
			tview.Escape(sanitizeForTerminal(sender)), ts, deliveryMark(m),
			renderContent(m))
		_, _ = fmt.Fprint(mt.messages, line)
	}

	mt.messages.ScrollToEnd()
}

// Composer returns the input field for focus management.
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}

// renderContent renders a message body by type. Non-text payloads carry
// encoded blobs or URLs that are useless inline, so they render as markers.
func renderContent(m store.Message) string {
	switch m.MsgType {
	case "text":
		return tview.Escape(sanitizeForTerminal(m.Content))
	case "image":
		return "[blue][image][-]"
	case "audio":
		return "[blue][audio][-]"
	case "gif":
		return "[blue][gif][-]"
	default:
		return fmt.Sprintf("[gray][unsupported: %s][-]", tview.Escape(m.MsgType))
	}
}

func deliveryMark(m store.Message) string {
	if !m.FromMe {
		return ""
	}
	switch m.DeliveryState {
	case store.DeliveryPending:
		return " [yellow]…[-]"
	case store.DeliverySent:
		return " [green]✓[-]"
	case store.DeliveryFailed:
		return " [red]✗ failed[-]"
	default:
		return ""
	}
}

func formatTimestamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms)
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02 15:04")
}
