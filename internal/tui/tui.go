package tui

import (
	"context"
	"fmt"
	"strings"

	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"
	"github.com/rs/zerolog"

	"github.com/aroranishank/tms-frontend/internal/api"
	"github.com/aroranishank/tms-frontend/internal/browse"
	"github.com/aroranishank/tms-frontend/internal/config"
	"github.com/aroranishank/tms-frontend/internal/model"
	"github.com/aroranishank/tms-frontend/internal/policy"
	"github.com/aroranishank/tms-frontend/internal/session"
)

const (
	viewHeader  = "header"
	viewFooter  = "footer"
	viewTasks   = "tasks"
	viewUsers   = "users"
	viewDetail  = "detail"
	viewLogin   = "login"
	viewForm    = "form"
	viewConfirm = "confirm"
	viewSearch  = "search"
	viewHelp    = "help"
)

type UI struct {
	gui     *gocui.Gui
	session *session.Store
	client  *api.Client
	log     zerolog.Logger

	tasks   *browse.Controller[model.Task]
	users   *browse.Controller[model.User]
	taskMut *browse.TaskMutator
	userMut *browse.UserMutator

	focus        string
	selectedTask int
	selectedUser int

	login        *loginState
	loginEditor  *loginEditor
	form         *formState
	formEditor   *formEditor
	searchEditor *searchEditor
	searchActive bool
	searchText   string
	helpActive   bool
	confirm      *confirmState
	status       string
}

// listControls is the slice of a list controller the chrome needs; it lets
// the task and user lists share one set of handlers despite their different
// item types.
type listControls interface {
	SetSearchText(string)
	ForceReload()
	NextPage()
	PrevPage()
	Query() model.SearchQuery
	State() browse.State
	Err() error
	Pagination() (model.Pagination, bool)
}

type confirmState struct {
	message string
	action  func()
}

type formEditor struct {
	ui *UI
}

type searchEditor struct {
	ui *UI
}

func Run(sess *session.Store, client *api.Client, cfg config.Config, log zerolog.Logger) error {
	gui, err := gocui.NewGui(gocui.NewGuiOpts{OutputMode: gocui.OutputNormal})
	if err != nil {
		return err
	}
	defer gui.Close()

	ui := NewUI(sess, client, cfg, log)
	ui.gui = gui
	gui.Mouse = true

	gui.SetManagerFunc(ui.layout)
	if err := ui.bindKeys(gui); err != nil {
		return err
	}
	ui.start()

	if err := gui.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}

	return nil
}

func NewUI(sess *session.Store, client *api.Client, cfg config.Config, log zerolog.Logger) *UI {
	u := &UI{
		session: sess,
		client:  client,
		log:     log,
		focus:   viewTasks,
	}
	u.formEditor = &formEditor{ui: u}
	u.searchEditor = &searchEditor{ui: u}
	u.loginEditor = &loginEditor{ui: u}

	u.tasks = browse.NewController(u.fetchTasks, cfg.PageSize, cfg.Debounce(), log)
	u.users = browse.NewController(client.ListUsers, cfg.PageSize, cfg.Debounce(), log)
	u.taskMut = browse.NewTaskMutator(client, u.tasks, log)
	u.userMut = browse.NewUserMutator(client, u.users, log)

	u.tasks.SetOnChange(u.onListChange)
	u.users.SetOnChange(u.onListChange)
	return u
}

// fetchTasks routes through the admin listing when an admin is signed in, so
// the same pane shows everyone's tasks for admins and only their own for
// regular users.
func (u *UI) fetchTasks(ctx context.Context, query model.SearchQuery) (model.Page[model.Task], error) {
	if u.isAdmin() {
		return u.client.ListAdminTasks(ctx, query)
	}
	return u.client.ListTasks(ctx, query)
}

func (u *UI) start() {
	user := u.session.Restore(context.Background())
	if user == nil {
		u.openLogin("")
		return
	}
	u.log.Info().Str("username", user.Username).Bool("is_admin", user.IsAdmin).Msg("session restored")
	u.refreshAll()
}

func (u *UI) refreshAll() {
	u.tasks.ForceReload()
	if u.isAdmin() {
		u.users.ForceReload()
	}
}

func (u *UI) level() policy.Level {
	return policy.LevelFor(u.session.Current())
}

func (u *UI) isAdmin() bool {
	return u.level() == policy.Admin
}

func (u *UI) focusedList() listControls {
	if u.focus == viewUsers {
		return u.users
	}
	return u.tasks
}

// update marshals a state change onto the UI goroutine. Without a gui (in
// tests) it applies the change directly.
func (u *UI) update(fn func()) {
	if u.gui == nil {
		fn()
		return
	}
	u.gui.Update(func(*gocui.Gui) error {
		fn()
		return nil
	})
}

func (u *UI) onListChange() {
	u.update(u.checkAuth)
}

// checkAuth reacts to a list fetch failing with 401: the stored session is
// dead, so drop it and ask for credentials again.
func (u *UI) checkAuth() {
	if u.login != nil {
		return
	}
	if api.IsAuthError(u.tasks.Err()) || api.IsAuthError(u.users.Err()) {
		_ = u.session.Logout(context.Background())
		u.openLogin("session expired, sign in again")
	}
}

func (u *UI) runMutation(label string, fn func(ctx context.Context) error) {
	u.runMutationThen(label, fn, nil)
}

func (u *UI) runMutationThen(label string, fn func(ctx context.Context) error, onSuccess func()) {
	u.status = label + "..."
	go func() {
		err := fn(context.Background())
		u.update(func() {
			if err != nil {
				u.status = err.Error()
				if api.IsAuthError(err) {
					_ = u.session.Logout(context.Background())
					u.openLogin("session expired, sign in again")
				}
				return
			}
			u.status = ""
			if onSuccess != nil {
				onSuccess()
			}
		})
	}()
}

func (u *UI) bindKeys(gui *gocui.Gui) error {
	if err := gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, u.quit); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'q', gocui.ModNone, u.quitKey); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'r', gocui.ModNone, u.reloadLists); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", '/', gocui.ModNone, u.startSearch); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", '?', gocui.ModNone, u.toggleHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'a', gocui.ModNone, u.addItem); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'e', gocui.ModNone, u.editItem); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'd', gocui.ModNone, u.deleteItem); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'x', gocui.ModNone, u.cycleTaskStatus); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 't', gocui.ModNone, u.assignTask); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'o', gocui.ModNone, u.logout); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'n', gocui.ModNone, u.nextPage); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'p', gocui.ModNone, u.prevPage); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", gocui.KeyTab, gocui.ModNone, u.switchFocus); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", '1', gocui.ModNone, u.focusTasks); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", '2', gocui.ModNone, u.focusUsers); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTasks, gocui.KeyArrowDown, gocui.ModNone, u.moveDown); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTasks, 'j', gocui.ModNone, u.moveDown); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTasks, gocui.KeyArrowUp, gocui.ModNone, u.moveUp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewTasks, 'k', gocui.ModNone, u.moveUp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewUsers, gocui.KeyArrowDown, gocui.ModNone, u.moveDown); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewUsers, 'j', gocui.ModNone, u.moveDown); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewUsers, gocui.KeyArrowUp, gocui.ModNone, u.moveUp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewUsers, 'k', gocui.ModNone, u.moveUp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewSearch, gocui.KeyEnter, gocui.ModNone, u.closeSearch); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewSearch, gocui.KeyEsc, gocui.ModNone, u.closeSearch); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEnter, gocui.ModNone, u.submitForm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyCtrlJ, gocui.ModNone, u.submitForm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyTab, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyBacktab, gocui.ModNone, u.prevFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowDown, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowUp, gocui.ModNone, u.prevFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEsc, gocui.ModNone, u.cancelForm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewConfirm, 'y', gocui.ModNone, u.confirmYes); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewConfirm, gocui.KeyEnter, gocui.ModNone, u.confirmYes); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewConfirm, 'n', gocui.ModNone, u.confirmNo); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewConfirm, gocui.KeyEsc, gocui.ModNone, u.confirmNo); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewLogin, gocui.KeyEnter, gocui.ModNone, u.submitLogin); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewLogin, gocui.KeyTab, gocui.ModNone, u.nextLoginField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewLogin, gocui.KeyArrowDown, gocui.ModNone, u.nextLoginField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewLogin, gocui.KeyBacktab, gocui.ModNone, u.prevLoginField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewLogin, gocui.KeyArrowUp, gocui.ModNone, u.prevLoginField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewLogin, gocui.KeyEsc, gocui.ModNone, u.cancelLogin); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, gocui.KeyEsc, gocui.ModNone, u.closeHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, 'q', gocui.ModNone, u.closeHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, '?', gocui.ModNone, u.closeHelp); err != nil {
		return err
	}
	if err := gui.SetViewClickBinding(&gocui.ViewMouseBinding{ViewName: viewTasks, Key: gocui.MouseLeft, Handler: func(opts gocui.ViewMouseBindingOpts) error {
		return u.onListClick(gui, viewTasks, opts)
	}}); err != nil {
		return err
	}
	if err := gui.SetViewClickBinding(&gocui.ViewMouseBinding{ViewName: viewUsers, Key: gocui.MouseLeft, Handler: func(opts gocui.ViewMouseBindingOpts) error {
		return u.onListClick(gui, viewUsers, opts)
	}}); err != nil {
		return err
	}
	return u.bindMouseScroll(gui)
}

func (u *UI) bindMouseScroll(gui *gocui.Gui) error {
	for _, name := range []string{viewTasks, viewUsers, viewDetail} {
		if err := gui.SetKeybinding(name, gocui.MouseWheelUp, gocui.ModNone, u.scrollUp); err != nil {
			return err
		}
		if err := gui.SetKeybinding(name, gocui.MouseWheelDown, gocui.ModNone, u.scrollDown); err != nil {
			return err
		}
	}
	return nil
}

func (u *UI) layout(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	if maxX <= 0 || maxY <= 0 {
		return nil
	}

	u.clampSelections()

	headerView, err := gui.SetView(viewHeader, 0, 0, maxX-1, 0, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	headerView.Frame = false
	headerView.Wrap = true
	headerView.FgColor = gocui.ColorDefault
	u.renderHeader(headerView)

	footerY1 := maxY - 2
	if footerY1 < 1 {
		footerY1 = 1
	}
	footerY0 := footerY1 - 2
	if footerY0 < 1 {
		footerY0 = 1
	}
	footerView, err := gui.SetView(viewFooter, 0, footerY0, maxX-1, footerY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	footerView.Frame = false
	footerView.Wrap = true
	footerView.FgColor = gocui.ColorDefault | gocui.AttrDim
	footerView.BgColor = gocui.ColorDefault
	u.renderFooter(footerView)

	bodyTop := 1
	bodyBottom := footerY0 - 1
	if bodyBottom < bodyTop {
		return nil
	}

	admin := u.isAdmin()
	sizes := computeLayout(maxX, bodyBottom-bodyTop+1, admin)
	leftX1 := sizes.tasksWidth - 1
	rightX0 := leftX1 + 1
	if rightX0 >= maxX {
		rightX0 = leftX1
	}
	rightX1 := maxX - 1

	tasksView, err := gui.SetView(viewTasks, 0, bodyTop, leftX1, bodyBottom, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		tasksView.TitleColor = gocui.ColorGreen
	}
	tasksPage, tasksPageOK := u.tasks.Pagination()
	tasksView.Title = paneTitle("1 Tasks", tasksPage, tasksPageOK)
	applyViewStyle(tasksView, u.focus == viewTasks, true)
	u.renderTaskList(tasksView, u.focus == viewTasks)

	detailY0 := bodyTop
	if admin {
		usersY1 := bodyTop + sizes.usersHeight - 1
		usersView, err := gui.SetView(viewUsers, rightX0, bodyTop, rightX1, usersY1, 0)
		if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		if goerrors.Is(err, gocui.ErrUnknownView) {
			usersView.TitleColor = gocui.ColorYellow
		}
		usersPage, usersPageOK := u.users.Pagination()
		usersView.Title = paneTitle("2 Users", usersPage, usersPageOK)
		applyViewStyle(usersView, u.focus == viewUsers, true)
		u.renderUserList(usersView, u.focus == viewUsers)
		detailY0 = usersY1 + 1
	} else {
		_ = gui.DeleteView(viewUsers)
		if u.focus == viewUsers {
			u.focus = viewTasks
		}
	}

	detailView, err := gui.SetView(viewDetail, rightX0, detailY0, rightX1, bodyBottom, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		detailView.Title = "Detail"
	}
	applyViewStyle(detailView, false, false)
	u.renderDetail(detailView)

	_, _ = gui.SetViewOnTop(viewHeader)
	_, _ = gui.SetViewOnTop(viewFooter)

	if u.searchActive {
		if err := u.showSearch(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewSearch)
	}

	if u.form != nil {
		if err := u.showForm(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewForm)
	}

	if u.confirm != nil {
		if err := u.showConfirm(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewConfirm)
	}

	if u.helpActive {
		if err := u.showHelp(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewHelp)
	}

	if u.login != nil {
		if err := u.showLogin(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewLogin)
	}

	if gui.CurrentView() == nil {
		_, _ = gui.SetCurrentView(u.focus)
	}

	gui.Cursor = u.searchActive || u.form != nil || u.login != nil

	return nil
}

type paneSizes struct {
	tasksWidth  int
	usersHeight int
}

func computeLayout(width, height int, admin bool) paneSizes {
	safeWidth := max(width, 40)
	tasksWidth := safeWidth * 3 / 5
	if tasksWidth < 30 {
		tasksWidth = 30
	}
	if tasksWidth > safeWidth-20 {
		tasksWidth = safeWidth - 20
	}

	usersHeight := 0
	if admin {
		usersHeight = max(height*2/5, 4)
	}
	return paneSizes{tasksWidth: tasksWidth, usersHeight: usersHeight}
}

func paneTitle(name string, p model.Pagination, ok bool) string {
	if label := formatPageLabel(p, ok); label != "" {
		return fmt.Sprintf("%s (%s)", name, label)
	}
	return name
}

func (u *UI) clampSelections() {
	if n := len(u.tasks.Items()); u.selectedTask >= n {
		u.selectedTask = max(n-1, 0)
	}
	if n := len(u.users.Items()); u.selectedUser >= n {
		u.selectedUser = max(n-1, 0)
	}
}

func (u *UI) renderHeader(view *gocui.View) {
	view.Clear()

	who := "signed out"
	if user := u.session.Current(); user != nil {
		who = user.Username
		if user.IsAdmin {
			who += " (admin)"
		}
	}

	list := u.focusedList()
	search := strings.TrimSpace(list.Query().Text)
	switch {
	case search == "":
		search = "type / to search"
	case !browse.Searchable(search):
		search += " (needs 3+ chars)"
	}

	fmt.Fprintf(view, "TMS | %s | Search: %s | %s", who, search, list.State())
}

func (u *UI) renderFooter(view *gocui.View) {
	view.Clear()
	view.SetOrigin(0, 0)
	view.SetCursor(0, 0)

	if u.isAdmin() {
		fmt.Fprintln(view, "a add | e edit | d delete | x cycle status | t task for user | tab switch pane | 1 tasks 2 users")
	} else {
		fmt.Fprintln(view, "a add | e edit | d delete | x cycle status")
	}
	fmt.Fprintln(view, "/ search | n/p page | r reload | o sign out | ? help | q quit")
	if u.status != "" {
		fmt.Fprint(view, u.status)
	}
}

func (u *UI) renderTaskList(view *gocui.View, focused bool) {
	view.Clear()
	items := u.tasks.Items()
	if len(items) == 0 {
		switch {
		case u.tasks.Err() != nil:
			fmt.Fprintf(view, " %v", u.tasks.Err())
		case u.tasks.State() == browse.StateFetching || u.tasks.State() == browse.StateDebouncing:
			fmt.Fprint(view, " loading...")
		default:
			fmt.Fprint(view, " no tasks")
		}
		return
	}

	for i, task := range items {
		prefix := " "
		if i == u.selectedTask {
			if focused {
				prefix = ">"
			} else {
				prefix = "*"
			}
		}
		fmt.Fprintf(view, "%s %s\n", prefix, formatTaskRow(task))
	}
	if focused {
		view.SetCursor(0, min(u.selectedTask, len(items)-1))
	}
}

func (u *UI) renderUserList(view *gocui.View, focused bool) {
	view.Clear()
	items := u.users.Items()
	if len(items) == 0 {
		if err := u.users.Err(); err != nil {
			fmt.Fprintf(view, " %v", err)
		} else {
			fmt.Fprint(view, " no users")
		}
		return
	}

	for i, user := range items {
		prefix := " "
		if i == u.selectedUser {
			if focused {
				prefix = ">"
			} else {
				prefix = "*"
			}
		}
		fmt.Fprintf(view, "%s %s\n", prefix, formatUserRow(user))
	}
	if focused {
		view.SetCursor(0, min(u.selectedUser, len(items)-1))
	}
}

func (u *UI) renderDetail(view *gocui.View) {
	view.Clear()
	if u.focus == viewUsers {
		if user := u.selectedUserItem(); user != nil {
			fmt.Fprint(view, strings.Join(detailUserLines(*user), "\n"))
			return
		}
		fmt.Fprint(view, "No user selected")
		return
	}
	if task := u.selectedTaskItem(); task != nil {
		fmt.Fprint(view, strings.Join(detailTaskLines(*task), "\n"))
		return
	}
	fmt.Fprint(view, "No task selected")
}

func (u *UI) selectedTaskItem() *model.Task {
	items := u.tasks.Items()
	if u.selectedTask >= 0 && u.selectedTask < len(items) {
		task := items[u.selectedTask]
		return &task
	}
	return nil
}

func (u *UI) selectedUserItem() *model.User {
	items := u.users.Items()
	if u.selectedUser >= 0 && u.selectedUser < len(items) {
		user := items[u.selectedUser]
		return &user
	}
	return nil
}

func (u *UI) onListClick(gui *gocui.Gui, viewName string, opts gocui.ViewMouseBindingOpts) error {
	if u.inputActive() {
		return nil
	}
	view, err := gui.View(viewName)
	if err != nil {
		return nil
	}

	_, y0, _, _ := view.Dimensions()
	_, oy := view.Origin()
	row := opts.Y - y0 - 1 + oy
	if row < 0 {
		row = 0
	}

	switch viewName {
	case viewTasks:
		u.selectedTask = min(row, len(u.tasks.Items())-1)
		return u.setFocus(gui, viewTasks)
	case viewUsers:
		u.selectedUser = min(row, len(u.users.Items())-1)
		return u.setFocus(gui, viewUsers)
	default:
		return nil
	}
}

func (u *UI) scrollUp(gui *gocui.Gui, view *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if view == nil {
		view = gui.CurrentView()
	}
	if view == nil {
		return nil
	}
	view.ScrollUp(1)
	return nil
}

func (u *UI) scrollDown(gui *gocui.Gui, view *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if view == nil {
		view = gui.CurrentView()
	}
	if view == nil {
		return nil
	}
	view.ScrollDown(1)
	return nil
}

func (u *UI) switchFocus(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || !u.isAdmin() {
		return nil
	}
	if u.focus == viewTasks {
		u.focus = viewUsers
	} else {
		u.focus = viewTasks
	}
	if gui != nil {
		_, _ = gui.SetCurrentView(u.focus)
	}
	return nil
}

func (u *UI) focusTasks(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewTasks)
}

func (u *UI) focusUsers(gui *gocui.Gui, _ *gocui.View) error {
	if !u.isAdmin() {
		return nil
	}
	return u.setFocus(gui, viewUsers)
}

func (u *UI) setFocus(gui *gocui.Gui, name string) error {
	if u.inputActive() {
		return nil
	}
	u.focus = name
	if gui != nil {
		_, _ = gui.SetCurrentView(name)
	}
	return nil
}

func (u *UI) moveDown(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	switch u.focus {
	case viewUsers:
		if u.selectedUser < len(u.users.Items())-1 {
			u.selectedUser++
		}
	default:
		if u.selectedTask < len(u.tasks.Items())-1 {
			u.selectedTask++
		}
	}
	return nil
}

func (u *UI) moveUp(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	switch u.focus {
	case viewUsers:
		if u.selectedUser > 0 {
			u.selectedUser--
		}
	default:
		if u.selectedTask > 0 {
			u.selectedTask--
		}
	}
	return nil
}

func (u *UI) nextPage(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.focusedList().NextPage()
	return nil
}

func (u *UI) prevPage(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.focusedList().PrevPage()
	return nil
}

func (u *UI) reloadLists(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.status = ""
	u.refreshAll()
	return nil
}

func (u *UI) logout(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if err := u.session.Logout(context.Background()); err != nil {
		u.status = err.Error()
		return nil
	}
	u.status = ""
	u.log.Info().Msg("signed out")
	u.openLogin("")
	return nil
}

func (u *UI) startSearch(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.searchActive = true
	u.searchText = u.focusedList().Query().Text
	return nil
}

func (u *UI) showSearch(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(30, maxX/2)
	height := 3
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2
	x1 := x0 + width
	y1 := y0 + height

	view, err := gui.SetView(viewSearch, x0, y0, x1, y1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Search (3+ chars, * for all)"
		view.Wrap = true
	}
	view.Editable = true
	view.KeybindOnEdit = true
	view.Editor = u.searchEditor
	u.renderSearch(view)
	_, _ = gui.SetCurrentView(viewSearch)
	return nil
}

func (u *UI) renderSearch(view *gocui.View) {
	if view == nil {
		return
	}
	view.Clear()
	fmt.Fprint(view, u.searchText)
	view.SetCursor(len([]rune(u.searchText)), 0)
}

// applySearch feeds every keystroke to the focused list. The controller
// debounces; typing never blocks on the network.
func (u *UI) applySearch() {
	u.focusedList().SetSearchText(u.searchText)
}

func (e *searchEditor) Edit(view *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	ui := e.ui
	if ui == nil || !ui.searchActive {
		return false
	}

	switch key {
	case gocui.KeyBackspace, gocui.KeyBackspace2:
		runes := []rune(ui.searchText)
		if len(runes) > 0 {
			ui.searchText = string(runes[:len(runes)-1])
		}
	case gocui.KeySpace:
		ui.searchText += " "
	case gocui.KeyCtrlU:
		ui.searchText = ""
	}

	if ch != 0 && ch != '\n' && ch != '\r' && mod == 0 {
		ui.searchText += string(ch)
	}

	ui.applySearch()
	ui.renderSearch(view)
	return true
}

// closeSearch dismisses the box but keeps the text as the active filter;
// enter and esc behave the same.
func (u *UI) closeSearch(gui *gocui.Gui, _ *gocui.View) error {
	u.searchActive = false
	if gui != nil {
		_ = gui.DeleteView(viewSearch)
		_, _ = gui.SetCurrentView(u.focus)
	}
	return nil
}

func (u *UI) toggleHelp(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() && !u.helpActive {
		return nil
	}
	u.helpActive = !u.helpActive
	return nil
}

func (u *UI) closeHelp(gui *gocui.Gui, _ *gocui.View) error {
	u.helpActive = false
	_ = gui.DeleteView(viewHelp)
	_, _ = gui.SetCurrentView(u.focus)
	return nil
}

func (u *UI) showHelp(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(60, maxX/2)
	height := 16
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2
	if y0 < 1 {
		y0 = 1
	}
	x1 := x0 + width
	y1 := y0 + height

	view, err := gui.SetView(viewHelp, x0, y0, x1, y1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Help"
		view.Wrap = true
	}
	view.Clear()
	fmt.Fprint(view, helpText())
	_, _ = gui.SetCurrentView(viewHelp)
	return nil
}

func (u *UI) addItem(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.focus == viewUsers {
		if !u.isAdmin() {
			return nil
		}
		u.form = &formState{kind: formUserCreate, fields: buildUserFormFields(nil)}
		return nil
	}
	u.form = &formState{kind: formTaskCreate, fields: buildTaskFormFields(nil, u.level())}
	return nil
}

func (u *UI) editItem(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.focus == viewUsers {
		selected := u.selectedUserItem()
		if selected == nil {
			return nil
		}
		u.form = &formState{kind: formUserEdit, userID: selected.ID, fields: buildUserFormFields(selected)}
		return nil
	}
	selected := u.selectedTaskItem()
	if selected == nil {
		return nil
	}
	u.form = &formState{kind: formTaskEdit, taskID: selected.ID, fields: buildTaskFormFields(selected, u.level())}
	return nil
}

// assignTask opens a create form whose result lands on the selected user's
// list instead of the admin's own.
func (u *UI) assignTask(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.focus != viewUsers || !u.isAdmin() {
		return nil
	}
	selected := u.selectedUserItem()
	if selected == nil {
		return nil
	}
	u.form = &formState{kind: formTaskCreate, ownerID: selected.ID, fields: buildTaskFormFields(nil, u.level())}
	return nil
}

func (u *UI) deleteItem(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.focus == viewUsers {
		selected := u.selectedUserItem()
		if selected == nil {
			return nil
		}
		userID := selected.ID
		u.confirm = &confirmState{
			message: fmt.Sprintf("Delete user %q?", selected.Username),
			action: func() {
				u.runMutation("deleting user", func(ctx context.Context) error {
					return u.userMut.Remove(ctx, userID)
				})
			},
		}
		return nil
	}

	selected := u.selectedTaskItem()
	if selected == nil {
		return nil
	}
	taskID := selected.ID
	u.confirm = &confirmState{
		message: fmt.Sprintf("Delete task %q?", selected.Title),
		action: func() {
			u.runMutation("deleting task", func(ctx context.Context) error {
				return u.taskMut.Remove(ctx, taskID)
			})
		},
	}
	return nil
}

func (u *UI) showConfirm(gui *gocui.Gui) error {
	if u.confirm == nil {
		return nil
	}
	maxX, maxY := gui.Size()
	width := max(40, maxX/3)
	height := 4
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2
	x1 := x0 + width
	y1 := y0 + height

	view, err := gui.SetView(viewConfirm, x0, y0, x1, y1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Confirm"
		view.Wrap = true
	}
	view.Clear()
	fmt.Fprintf(view, "%s\n\ny confirm | n/esc cancel", u.confirm.message)
	_, _ = gui.SetCurrentView(viewConfirm)
	return nil
}

func (u *UI) confirmYes(gui *gocui.Gui, _ *gocui.View) error {
	st := u.confirm
	if st == nil {
		return nil
	}
	u.confirm = nil
	if gui != nil {
		_ = gui.DeleteView(viewConfirm)
		_, _ = gui.SetCurrentView(u.focus)
	}
	st.action()
	return nil
}

func (u *UI) confirmNo(gui *gocui.Gui, _ *gocui.View) error {
	if u.confirm == nil {
		return nil
	}
	u.confirm = nil
	if gui != nil {
		_ = gui.DeleteView(viewConfirm)
		_, _ = gui.SetCurrentView(u.focus)
	}
	return nil
}

// cycleTaskStatus advances the selected task pending -> in_progress ->
// completed -> pending without opening the form.
func (u *UI) cycleTaskStatus(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.focus != viewTasks {
		return nil
	}
	selected := u.selectedTaskItem()
	if selected == nil {
		return nil
	}
	taskID := selected.ID
	next := nextStatus(selected.Status)
	level := u.level()
	u.runMutation("updating status", func(ctx context.Context) error {
		_, err := u.taskMut.Update(ctx, taskID, model.TaskPayload{Status: next}, level)
		return err
	})
	return nil
}

func (u *UI) showForm(gui *gocui.Gui) error {
	if u.form == nil {
		return nil
	}

	maxX, maxY := gui.Size()
	width := max(60, maxX/2)
	height := min(12, max(8, maxY/2))
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2
	x1 := x0 + width
	y1 := y0 + height

	view, err := gui.SetView(viewForm, x0, y0, x1, y1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Wrap = true
	}
	switch u.form.kind {
	case formTaskEdit:
		view.Title = "Edit Task"
	case formUserCreate:
		view.Title = "New User"
	case formUserEdit:
		view.Title = "Edit User"
	default:
		if u.form.ownerID != 0 {
			view.Title = "New Task (for user)"
		} else {
			view.Title = "New Task"
		}
	}
	view.Editable = true
	view.KeybindOnEdit = true
	view.Editor = u.formEditor
	u.renderForm(view)
	_, _ = gui.SetCurrentView(viewForm)
	return nil
}

func (u *UI) renderForm(view *gocui.View) {
	if u.form == nil || view == nil {
		return
	}
	view.Clear()
	for index, field := range u.form.fields {
		prefix := "  "
		if index == u.form.index {
			prefix = "> "
		}
		value := field.Value
		if isPasswordField(field.Label) {
			value = strings.Repeat("*", len([]rune(value)))
		}
		suffix := ""
		if field.ReadOnly {
			suffix = " (locked)"
		}
		fmt.Fprintf(view, "%s%s: %s%s\n", prefix, field.Label, value, suffix)
	}
	label := u.form.fields[u.form.index].Label + ": "
	cursorX := len([]rune(label)) + len([]rune(u.form.fields[u.form.index].Value)) + 2
	view.SetCursor(cursorX, u.form.index)
}

func (u *UI) submitForm(_ *gocui.Gui, _ *gocui.View) error {
	st := u.form
	if st == nil {
		return nil
	}

	// The form stays open until the save succeeds; a failure renders in
	// the status line with the input intact.
	closeOnSuccess := func() { u.closeForm(u.gui) }

	switch st.kind {
	case formUserCreate, formUserEdit:
		payload := parseUserForm(st.fields)
		if st.kind == formUserCreate {
			if payload.Username == "" || payload.Password == "" {
				u.status = "username and password are required"
				return nil
			}
			u.runMutationThen("saving user", func(ctx context.Context) error {
				_, err := u.userMut.Create(ctx, payload)
				return err
			}, closeOnSuccess)
			return nil
		}
		userID := st.userID
		u.runMutationThen("saving user", func(ctx context.Context) error {
			_, err := u.userMut.Update(ctx, userID, payload)
			return err
		}, closeOnSuccess)
		return nil
	}

	payload, err := parseTaskForm(st.fields)
	if err != nil {
		u.status = err.Error()
		return nil
	}

	if st.kind == formTaskEdit {
		taskID := st.taskID
		level := u.level()
		u.runMutationThen("saving task", func(ctx context.Context) error {
			_, err := u.taskMut.Update(ctx, taskID, payload, level)
			return err
		}, closeOnSuccess)
		return nil
	}

	if payload.Title == "" {
		u.status = "title is required"
		return nil
	}
	ownerID := st.ownerID
	u.runMutationThen("saving task", func(ctx context.Context) error {
		if ownerID != 0 {
			_, err := u.taskMut.CreateFor(ctx, ownerID, payload)
			return err
		}
		_, err := u.taskMut.Create(ctx, payload)
		return err
	}, closeOnSuccess)
	return nil
}

func (u *UI) closeForm(gui *gocui.Gui) {
	u.form = nil
	if gui != nil {
		_ = gui.DeleteView(viewForm)
		_, _ = gui.SetCurrentView(u.focus)
	}
}

func (u *UI) cancelForm(gui *gocui.Gui, _ *gocui.View) error {
	u.closeForm(gui)
	return nil
}

func (u *UI) nextFormField(gui *gocui.Gui, view *gocui.View) error {
	if u.form == nil {
		return nil
	}
	if u.form.index < len(u.form.fields)-1 {
		u.form.index++
	}
	u.renderForm(view)
	return nil
}

func (u *UI) prevFormField(gui *gocui.Gui, view *gocui.View) error {
	if u.form == nil {
		return nil
	}
	if u.form.index > 0 {
		u.form.index--
	}
	u.renderForm(view)
	return nil
}

func (e *formEditor) Edit(view *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	ui := e.ui
	if ui == nil || ui.form == nil || view == nil {
		return false
	}
	field := &ui.form.fields[ui.form.index]

	if field.ReadOnly {
		ui.status = "this field is locked for your role"
		ui.renderForm(view)
		return true
	}

	if isStatusField(field.Label) {
		switch key {
		case gocui.KeyArrowRight, gocui.KeySpace:
			field.Value = nextStatus(field.Value)
		case gocui.KeyArrowLeft:
			field.Value = prevStatus(field.Value)
		}
		ui.renderForm(view)
		return true
	}

	if isPriorityField(field.Label) {
		switch key {
		case gocui.KeyArrowRight, gocui.KeySpace:
			field.Value = nextPriority(field.Value)
		case gocui.KeyArrowLeft:
			field.Value = prevPriority(field.Value)
		}
		ui.renderForm(view)
		return true
	}

	if isAdminField(field.Label) {
		if key == gocui.KeySpace {
			if strings.EqualFold(strings.TrimSpace(field.Value), "yes") {
				field.Value = "no"
			} else {
				field.Value = "yes"
			}
		}
		ui.renderForm(view)
		return true
	}

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

	ui.renderForm(view)
	return true
}

func (u *UI) inputActive() bool {
	return u.searchActive || u.form != nil || u.helpActive || u.confirm != nil || u.login != nil
}

func (u *UI) quit(_ *gocui.Gui, _ *gocui.View) error {
	return gocui.ErrQuit
}

func (u *UI) quitKey(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	return gocui.ErrQuit
}

func helpText() string {
	return strings.Join([]string{
		"Navigation:",
		"  tab switch pane (admin) | 1 tasks | 2 users",
		"  j/k or arrows move selection",
		"  n/p next/previous page",
		"  mouse click selects, wheel scrolls",
		"",
		"Actions:",
		"  a add | e edit | d delete (y/n confirms)",
		"  x cycle task status",
		"  t new task for selected user (users pane)",
		"",
		"Search:",
		"  / live search (3+ characters, * shows all)",
		"  enter/esc close the box, the filter stays",
		"",
		"Session:",
		"  o sign out | r reload | ? help | q quit",
	}, "\n")
}

func applyViewStyle(view *gocui.View, focused bool, highlight bool) {
	view.Frame = true
	view.Highlight = focused && highlight
	view.HighlightInactive = false
	view.SelBgColor = gocui.ColorBlue
	view.SelFgColor = gocui.ColorBlack
	view.InactiveViewSelBgColor = gocui.ColorDefault
	if focused {
		view.FrameColor = gocui.ColorCyan
		view.TitleColor = gocui.ColorCyan
	} else {
		view.FrameColor = gocui.ColorDefault
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
