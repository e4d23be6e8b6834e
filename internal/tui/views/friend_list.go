package views

import (
	"github.com/rivo/tview"

	"github.com/chirp-chat/chirp/internal/store"
)

// FriendList is the roster table: one row per friend with a presence dot.
type FriendList struct {
	*tview.Table
	friends    []store.Friend
	onSelect   func(friendID string)
	selectedFn func() (int, int)
}

// NewFriendList creates a new roster table.
func NewFriendList() *FriendList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Friends ")

	fl := &FriendList{Table: table}
	fl.selectedFn = table.GetSelection

	table.SetSelectedFunc(func(row, col int) {
		if fl.onSelect == nil {
			return
		}
		if id := fl.SelectedFriend(); id != "" {
			fl.onSelect(id)
		}
	})
	return fl
}

// SetOnSelect sets the callback when a friend is opened.
func (fl *FriendList) SetOnSelect(fn func(friendID string)) {
	fl.onSelect = fn
}

// Update refreshes the roster rows.
func (fl *FriendList) Update(friends []store.Friend) {
	fl.friends = friends
	fl.Clear()

	fl.SetCell(0, 0, tview.NewTableCell("  ").SetSelectable(false))
	fl.SetCell(0, 1, tview.NewTableCell(" Name").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	fl.SetCell(0, 2, tview.NewTableCell(" ID").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, f := range friends {
		row := i + 1
		dot := "[gray]●[-]"
		if f.Presence == "online" {
			dot = "[green]●[-]"
		}
		fl.SetCell(row, 0, tview.NewTableCell(" "+dot))
		fl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(f.Username))).SetMaxWidth(30).SetExpansion(1))
		fl.SetCell(row, 2, tview.NewTableCell(" "+f.UserID).SetMaxWidth(16))
	}
}

// SelectedFriend returns the id of the currently selected friend.
func (fl *FriendList) SelectedFriend() string {
	row, _ := fl.selectedFn()
	idx := row - 1 // account for header
	if idx >= 0 && idx < len(fl.friends) {
		return fl.friends[idx].ID
	}
	return ""
}
