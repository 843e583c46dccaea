package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jroimartin/gocui"

	"github.com/cyberinferno/udpchat/chatclient"
	"github.com/cyberinferno/udpchat/chatproto"
)

const (
	messagesView = "messages"
	usersView    = "users"
	statusView   = "status"
	inputView    = "input"
)

const helpText = `Commands:
help   - Show this help
users  - List online users
quit   - Leave chat
Anything else is sent as a message.`

// console is the terminal UI. It is also a chatclient.Observer; callbacks
// only queue view updates, the gocui main loop draws them.
type console struct {
	chatclient.BaseObserver

	gui    *gocui.Gui
	client *chatclient.Client
	server string
}

func newConsole(client *chatclient.Client, config Configuration) (*console, error) {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return nil, err
	}

	c := &console{
		gui:    g,
		client: client,
		server: config.Addr(),
	}
	g.SetManagerFunc(c.layout)

	return c, nil
}

func (c *console) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	sidebarWidth := 20
	msgWidth := maxX - sidebarWidth - 1
	msgHeight := maxY - 6

	if v, err := g.SetView(messagesView, 0, 0, msgWidth, msgHeight); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Messages"
		v.Wrap = true
		v.Autoscroll = true
		fmt.Fprintln(v, helpText)
	}

	if v, err := g.SetView(usersView, msgWidth+1, 0, maxX-1, msgHeight); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Online Users"
		v.Wrap = true
	}

	if v, err := g.SetView(statusView, 0, msgHeight+1, maxX-1, msgHeight+3); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Status"
		fmt.Fprint(v, c.status())
	}

	if v, err := g.SetView(inputView, 0, msgHeight+3, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Input"
		v.Editable = true
		v.Wrap = true

		if _, err := g.SetCurrentView(inputView); err != nil {
			return err
		}
	}

	return nil
}

func (c *console) keybindings() error {
	if err := c.gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone,
		func(*gocui.Gui, *gocui.View) error {
			return gocui.ErrQuit
		}); err != nil {
		return err
	}

	return c.gui.SetKeybinding(inputView, gocui.KeyEnter, gocui.ModNone, c.handleInput)
}

// Run joins with username when it is set and blocks until the user quits.
func (c *console) Run(username string) error {
	if err := c.keybindings(); err != nil {
		return err
	}

	if username != "" {
		c.join(username)
	}

	if err := c.gui.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}

	return nil
}

// Close restores the terminal.
func (c *console) Close() {
	c.gui.Close()
}

// inputAction is what an input line asks for.
type inputAction int

const (
	actionNone inputAction = iota
	actionHelp
	actionUsers
	actionQuit
	actionJoin
	actionSend
)

// parseInput maps a line to an action. Commands work in every state; any
// other line is a username until joined and a message afterwards.
func parseInput(line string, joined bool) (inputAction, string) {
	line = strings.TrimSpace(line)

	switch line {
	case "":
		return actionNone, ""
	case "help":
		return actionHelp, ""
	case "users":
		return actionUsers, ""
	case "quit":
		return actionQuit, ""
	}

	if !joined {
		return actionJoin, line
	}
	return actionSend, line
}

func (c *console) handleInput(_ *gocui.Gui, v *gocui.View) error {
	action, text := parseInput(v.Buffer(), c.client.State() == chatclient.Joined)
	v.Clear()
	_ = v.SetCursor(0, 0)
	_ = v.SetOrigin(0, 0)

	switch action {
	case actionHelp:
		c.println(helpText)
	case actionUsers:
		c.println(formatUsers(c.client.UsersOnline()))
	case actionQuit:
		return gocui.ErrQuit
	case actionJoin:
		c.join(text)
	case actionSend:
		if err := c.client.SendMessage(text); err != nil {
			c.println("Error: " + err.Error())
		}
	}

	return nil
}

func (c *console) join(username string) {
	if err := c.client.Join(username); err != nil {
		if errors.Is(err, chatclient.ErrInvalidUsername) {
			c.println(chatproto.ErrUsernameInvalid.Label)
		} else {
			c.println("Error: " + err.Error())
		}
		return
	}

	c.setStatus(c.status())
}

func (c *console) status() string {
	switch c.client.State() {
	case chatclient.Joined:
		return fmt.Sprintf("Connected to %s as %s | type help for commands", c.server, c.client.Username())
	case chatclient.Joining:
		return fmt.Sprintf("Joining %s as %s...", c.server, c.client.Username())
	default:
		return fmt.Sprintf("Server %s | enter a username to join", c.server)
	}
}

func (c *console) println(text string) {
	c.gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(messagesView)
		if err != nil {
			return err
		}
		fmt.Fprintln(v, text)
		return nil
	})
}

func (c *console) setStatus(text string) {
	c.gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(statusView)
		if err != nil {
			return err
		}
		v.Clear()
		fmt.Fprint(v, text)
		return nil
	})
}

func (c *console) setUsers(users []string) {
	c.gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(usersView)
		if err != nil {
			return err
		}
		v.Clear()
		for _, username := range users {
			fmt.Fprintln(v, username)
		}
		return nil
	})
}

func (c *console) OnJoined(username string) {
	c.println(fmt.Sprintf("Joined as %s.", username))
	c.setStatus(c.status())
}

func (c *console) OnMessageReceived(username string, message string) {
	c.println(formatMessage(username, message))
}

func (c *console) OnError(err chatproto.ChatError) {
	c.println(formatError(err))
	if err.Terminal() {
		c.println("Enter a username to join.")
		c.setStatus(c.status())
	}
}

func (c *console) OnUserList(users []string) {
	c.setUsers(users)
}

func formatMessage(username string, message string) string {
	return username + ": " + message
}

func formatError(err chatproto.ChatError) string {
	return fmt.Sprintf("J_ERR: (%s) %s.", err.Code, err.Label)
}

func formatUsers(users []string) string {
	if len(users) == 0 {
		return "No users online."
	}
	return fmt.Sprintf("Online (%d): %s", len(users), strings.Join(users, ", "))
}
