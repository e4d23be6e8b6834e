package views

import (
	"fmt"

	"github.com/rivo/tview"
)

// AddFriendView is a small search-then-confirm form: look a user up by
// their display id, then add them as a friend.
type AddFriendView struct {
	*tview.Flex
	form     *tview.Form
	result   *tview.TextView
	foundID  string
	onSearch func(displayID string)
	onAdd    func(friendID string)
	onClose  func()
}

// NewAddFriendView creates the add-friend page.
func NewAddFriendView() *AddFriendView {
	av := &AddFriendView{}

	av.result = tview.NewTextView().
		SetDynamicColors(true)

	av.form = tview.NewForm().
		AddInputField("User ID", "", 30, nil, nil)
	av.form.
		AddButton("Search", func() {
			if av.onSearch != nil {
				av.onSearch(av.query())
			}
		}).
		AddButton("Add", func() {
			if av.onAdd != nil && av.foundID != "" {
				av.onAdd(av.foundID)
			}
		}).
		AddButton("Close", func() {
			if av.onClose != nil {
				av.onClose()
			}
		})
	av.form.SetBorder(true).SetTitle(" Add friend ")

	av.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(av.form, 9, 0, true).
		AddItem(av.result, 0, 1, false)

	return av
}

// SetOnSearch sets the search callback.
func (av *AddFriendView) SetOnSearch(fn func(displayID string)) {
	av.onSearch = fn
}

// SetOnAdd sets the add-friend callback.
func (av *AddFriendView) SetOnAdd(fn func(friendID string)) {
	av.onAdd = fn
}

// SetOnClose sets the close callback.
func (av *AddFriendView) SetOnClose(fn func()) {
	av.onClose = fn
}

// ShowResult displays a found user and arms the Add button with their
// internal id.
func (av *AddFriendView) ShowResult(friendID, userID, username string) {
	av.foundID = friendID
	av.result.SetText(fmt.Sprintf(" Found: [::b]%s[-:-:-] (%s)",
		tview.Escape(sanitizeForTerminal(username)), tview.Escape(userID)))
}

// ShowError displays a lookup failure and disarms the Add button.
func (av *AddFriendView) ShowError(msg string) {
	av.foundID = ""
	av.result.SetText(fmt.Sprintf(" [red]%s[-]", tview.Escape(msg)))
}

// Reset clears the form and result line.
func (av *AddFriendView) Reset() {
	av.foundID = ""
	av.result.SetText("")
	if field, ok := av.form.GetFormItem(0).(*tview.InputField); ok {
		field.SetText("")
	}
}

func (av *AddFriendView) query() string {
	field, ok := av.form.GetFormItem(0).(*tview.InputField)
	if !ok {
		return ""
	}
	return field.GetText()
}
