package tui

import (
	"context"
	"fmt"
	"strings"

	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"
)

type loginState struct {
	fields  []formField
	index   int
	message string
	busy    bool
}

type loginEditor struct {
	ui *UI
}

func (u *UI) openLogin(message string) {
	u.login = &loginState{
		fields:  []formField{{Label: "Username"}, {Label: "Password"}},
		message: message,
	}
	u.focus = viewTasks
}

func (u *UI) showLogin(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(44, maxX/3)
	height := 5
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2
	x1 := x0 + width
	y1 := y0 + height

	view, err := gui.SetView(viewLogin, x0, y0, x1, y1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Sign In"
		view.Wrap = true
	}
	view.Editable = true
	view.KeybindOnEdit = true
	view.Editor = u.loginEditor
	u.renderLogin(view)
	_, _ = gui.SetCurrentView(viewLogin)
	return nil
}

func (u *UI) renderLogin(view *gocui.View) {
	st := u.login
	if st == nil || view == nil {
		return
	}
	view.Clear()
	for index, field := range st.fields {
		prefix := "  "
		if index == st.index {
			prefix = "> "
		}
		value := field.Value
		if isPasswordField(field.Label) {
			value = strings.Repeat("*", len([]rune(value)))
		}
		fmt.Fprintf(view, "%s%s: %s\n", prefix, field.Label, value)
	}
	if st.message != "" {
		fmt.Fprintf(view, "\n%s", st.message)
	}

	label := st.fields[st.index].Label + ": "
	cursorX := len([]rune(label)) + len([]rune(st.fields[st.index].Value)) + 2
	view.SetCursor(cursorX, st.index)
}

func (e *loginEditor) Edit(view *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	ui := e.ui
	if ui == nil || ui.login == nil {
		return false
	}
	st := ui.login
	if st.busy {
		return true
	}
	field := &st.fields[st.index]

	switch key {
	case gocui.KeyBackspace, gocui.KeyBackspace2:
		runes := []rune(field.Value)
		if len(runes) > 0 {
			field.Value = string(runes[:len(runes)-1])
		}
	case gocui.KeySpace:
		field.Value += " "
	case gocui.KeyCtrlU:
		field.Value = ""
	}

	if ch != 0 && ch != '\n' && ch != '\r' && mod == 0 {
		field.Value += string(ch)
	}

	ui.renderLogin(view)
	return true
}

func (u *UI) nextLoginField(gui *gocui.Gui, view *gocui.View) error {
	if u.login == nil {
		return nil
	}
	if u.login.index < len(u.login.fields)-1 {
		u.login.index++
	} else {
		u.login.index = 0
	}
	u.renderLogin(view)
	return nil
}

func (u *UI) prevLoginField(gui *gocui.Gui, view *gocui.View) error {
	if u.login == nil {
		return nil
	}
	if u.login.index > 0 {
		u.login.index--
	} else {
		u.login.index = len(u.login.fields) - 1
	}
	u.renderLogin(view)
	return nil
}

// submitLogin exchanges the credentials for a session. The modal stays up
// with the typed username intact when the backend rejects them.
func (u *UI) submitLogin(gui *gocui.Gui, _ *gocui.View) error {
	st := u.login
	if st == nil || st.busy {
		return nil
	}

	username := strings.TrimSpace(st.fields[0].Value)
	password := st.fields[1].Value
	if username == "" || password == "" {
		st.message = "username and password are required"
		return nil
	}

	st.busy = true
	st.message = "signing in..."
	go func() {
		user, err := u.session.Login(context.Background(), username, password)
		u.update(func() {
			st.busy = false
			if err != nil {
				st.message = err.Error()
				return
			}
			u.login = nil
			u.status = ""
			u.selectedTask = 0
			u.selectedUser = 0
			u.focus = viewTasks
			u.log.Info().Str("username", user.Username).Bool("is_admin", user.IsAdmin).Msg("signed in")
			u.refreshAll()
		})
	}()
	return nil
}

// cancelLogin closes the modal only when a session already exists; the app
// is unusable logged out.
func (u *UI) cancelLogin(gui *gocui.Gui, _ *gocui.View) error {
	if u.login == nil || u.login.busy {
		return nil
	}
	if u.session.Current() == nil {
		return nil
	}
	u.login = nil
	_ = gui.DeleteView(viewLogin)
	_, _ = gui.SetCurrentView(u.focus)
	return nil
}
