package views

import (
	"fmt"

	"github.com/rivo/tview"
)

// LoginSubmit carries the login form fields.
type LoginSubmit struct {
	UsernameOrEmail string
	Password        string
}

// SignupSubmit carries the signup form fields.
type SignupSubmit struct {
	FullName    string
	Username    string
	Email       string
	PhoneNumber string
	Country     string
	Password    string
}

// AuthView hosts the login and signup forms on a single page and toggles
// between them.
type AuthView struct {
	*tview.Flex
	pages    *tview.Pages
	login    *tview.Form
	signup   *tview.Form
	message  *tview.TextView
	onLogin  func(LoginSubmit)
	onSignup func(SignupSubmit)
}

// NewAuthView creates the auth page, starting on the login form.
func NewAuthView() *AuthView {
	av := &AuthView{}

	av.message = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)

	av.login = tview.NewForm().
		AddInputField("Username or email", "", 40, nil, nil).
		AddPasswordField("Password", "", 40, '*', nil)
	av.login.
		AddButton("Log in", av.submitLogin).
		AddButton("Sign up instead", func() { av.ShowSignup() })
	av.login.SetBorder(true).SetTitle(" Log in ")

	av.signup = tview.NewForm().
		AddInputField("Full name", "", 40, nil, nil).
		AddInputField("Username", "", 40, nil, nil).
		AddInputField("Email", "", 40, nil, nil).
		AddInputField("Phone number", "", 40, nil, nil).
		AddInputField("Country", "", 40, nil, nil).
		AddPasswordField("Password", "", 40, '*', nil)
	av.signup.
		AddButton("Create account", av.submitSignup).
		AddButton("Back to login", func() { av.ShowLogin() })
	av.signup.SetBorder(true).SetTitle(" Sign up ")

	av.pages = tview.NewPages().
		AddPage("login", av.login, true, true).
		AddPage("signup", av.signup, true, false)

	av.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(av.pages, 0, 1, true).
		AddItem(av.message, 1, 0, false)

	return av
}

// SetOnLogin sets the login submit callback.
func (av *AuthView) SetOnLogin(fn func(LoginSubmit)) {
	av.onLogin = fn
}

// SetOnSignup sets the signup submit callback.
func (av *AuthView) SetOnSignup(fn func(SignupSubmit)) {
	av.onSignup = fn
}

// ShowLogin switches to the login form.
func (av *AuthView) ShowLogin() {
	av.pages.SwitchToPage("login")
}

// ShowSignup switches to the signup form.
func (av *AuthView) ShowSignup() {
	av.pages.SwitchToPage("signup")
}

// SetMessage shows an informational line under the form.
func (av *AuthView) SetMessage(msg string) {
	av.message.SetText(tview.Escape(msg))
}

// SetError shows an error line under the form.
func (av *AuthView) SetError(msg string) {
	av.message.SetText(fmt.Sprintf("[red]%s[-]", tview.Escape(msg)))
}

func (av *AuthView) submitLogin() {
	if av.onLogin == nil {
		return
	}
	av.onLogin(LoginSubmit{
		UsernameOrEmail: av.formText(av.login, 0),
		Password:        av.formText(av.login, 1),
	})
}

func (av *AuthView) submitSignup() {
	if av.onSignup == nil {
		return
	}
	av.onSignup(SignupSubmit{
		FullName:    av.formText(av.signup, 0),
		Username:    av.formText(av.signup, 1),
		Email:       av.formText(av.signup, 2),
		PhoneNumber: av.formText(av.signup, 3),
		Country:     av.formText(av.signup, 4),
		Password:    av.formText(av.signup, 5),
	})
}

func (av *AuthView) formText(form *tview.Form, idx int) string {
	field, ok := form.GetFormItem(idx).(*tview.InputField)
	if !ok {
		return ""
	}
	return field.GetText()
}
