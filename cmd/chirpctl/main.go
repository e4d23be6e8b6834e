package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"go.uber.org/fx"
	"golang.org/x/term"

	"github.com/chirp-chat/chirp/internal/api"
	"github.com/chirp-chat/chirp/internal/app"
	"github.com/chirp-chat/chirp/internal/bus"
	"github.com/chirp-chat/chirp/internal/config"
	"github.com/chirp-chat/chirp/internal/creds"
	"github.com/chirp-chat/chirp/internal/lock"
	"github.com/chirp-chat/chirp/internal/media"
	"github.com/chirp-chat/chirp/internal/outbox"
	"github.com/chirp-chat/chirp/internal/realtime"
	"github.com/chirp-chat/chirp/internal/roster"
	"github.com/chirp-chat/chirp/internal/session"
	"github.com/chirp-chat/chirp/internal/status"
	"github.com/chirp-chat/chirp/internal/store"
)

// components is everything chirpctl commands reach into.
type components struct {
	fx.In

	Bus     *bus.Bus
	DB      *store.DB
	Creds   *creds.Store
	Auth    *api.Authenticator
	Channel *realtime.Channel
	Machine *status.Machine
	Roster  *roster.Manager
	Sender  *outbox.Sender
}

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	serverFlag := flag.String("server", "", "server URL (overrides config)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fatal(err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		cfg = nil
	}
	serverURL := cfg.ServerURLOrDefault()
	if *serverFlag != "" {
		serverURL = *serverFlag
	}

	params := app.Params{
		SessionName:    sessionName,
		ServerURL:      serverURL,
		TypingCooldown: cfg.TypingCooldown(),
		ConsoleLog:     false,
	}

	var c components
	fxApp := fx.New(
		fx.NopLogger,
		app.Module(params),
		fx.Populate(&c),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = fxApp.Start(startCtx)
	cancel()
	if err != nil {
		var held *lock.LockHeldError
		if errors.As(err, &held) {
			fatal(fmt.Errorf("session %q is already in use by pid %d (close chirptui first)", sessionName, held.PID))
		}
		fatal(err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = fxApp.Stop(stopCtx)
		cancel()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "login":
		cmdLogin(ctx, c, args[1:])
	case "signup":
		cmdSignup(ctx, c)
	case "logout":
		cmdLogout(c)
	case "status":
		cmdStatus(c, sessionName, *jsonFlag)
	case "whoami":
		cmdWhoami(c, *jsonFlag)
	case "friends":
		cmdFriends(ctx, c, *jsonFlag)
	case "search":
		if len(args) < 2 {
			fatal(errors.New("usage: chirpctl search <user-id>"))
		}
		cmdSearch(ctx, c, args[1], *jsonFlag)
	case "add-friend":
		if len(args) < 2 {
			fatal(errors.New("usage: chirpctl add-friend <user-id>"))
		}
		cmdAddFriend(ctx, c, args[1])
	case "send":
		if len(args) < 3 {
			fatal(errors.New("usage: chirpctl send <friend-id> <message>"))
		}
		cmdSend(ctx, c, args[1], strings.Join(args[2:], " "), "text")
	case "send-file":
		if len(args) < 3 {
			fatal(errors.New("usage: chirpctl send-file <friend-id> <path>"))
		}
		att, err := media.FromPath(args[2])
		if err != nil {
			fatal(err)
		}
		cmdSend(ctx, c, args[1], att.Content, att.Type)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: chirpctl [--session <name>] [--server <url>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  login [user]            Log in (prompts for password)")
	fmt.Fprintln(os.Stderr, "  signup                  Create an account (interactive)")
	fmt.Fprintln(os.Stderr, "  logout                  Clear stored credentials")
	fmt.Fprintln(os.Stderr, "  status                  Show session status")
	fmt.Fprintln(os.Stderr, "  whoami                  Show the logged-in user")
	fmt.Fprintln(os.Stderr, "  friends                 List friends")
	fmt.Fprintln(os.Stderr, "  search <user-id>        Look a user up by display id")
	fmt.Fprintln(os.Stderr, "  add-friend <user-id>    Add a user as friend")
	fmt.Fprintln(os.Stderr, "  send <friend-id> <msg>  Send a message and wait for the ack")
	fmt.Fprintln(os.Stderr, "  send-file <friend-id> <path>  Send an image, audio file or gif")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func cmdLogin(ctx context.Context, c components, args []string) {
	reader := bufio.NewReader(os.Stdin)

	var user string
	if len(args) > 0 {
		user = args[0]
	} else {
		fmt.Print("Username or email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fatal(err)
		}
		user = strings.TrimSpace(line)
	}

	password, err := readPassword("Password: ")
	if err != nil {
		fatal(err)
	}

	cred, err := c.Auth.Login(ctx, user, password)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Logged in as %s (%s)\n", cred.Username, cred.UserID)
}

func cmdSignup(ctx context.Context, c components) {
	reader := bufio.NewReader(os.Stdin)
	prompt := func(label string) string {
		fmt.Print(label + ": ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fatal(err)
		}
		return strings.TrimSpace(line)
	}

	req := &api.SignupRequest{
		FullName:    prompt("Full name"),
		Username:    prompt("Username"),
		Email:       prompt("Email"),
		PhoneNumber: prompt("Phone number"),
		Country:     prompt("Country"),
	}
	password, err := readPassword("Password: ")
	if err != nil {
		fatal(err)
	}
	req.Password = password

	cred, err := c.Auth.Signup(ctx, req)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Account created, logged in as %s (%s)\n", cred.Username, cred.UserID)
}

func cmdLogout(c components) {
	c.Channel.Close()
	if err := c.Auth.Logout(); err != nil {
		fatal(err)
	}
	fmt.Println("Logged out")
}

func cmdStatus(c components, sessionName string, jsonOut bool) {
	cred, authed := c.Creds.Load()
	state := string(c.Machine.Current())

	if jsonOut {
		out := map[string]any{
			"session":       sessionName,
			"state":         state,
			"authenticated": authed,
		}
		if authed {
			out["username"] = cred.Username
			out["user_id"] = cred.UserID
		}
		outputJSON(out)
		return
	}

	fmt.Printf("Session: %s\n", sessionName)
	fmt.Printf("State:   %s\n", state)
	if authed {
		fmt.Printf("User:    %s (%s)\n", cred.Username, cred.UserID)
	} else {
		fmt.Println("User:    not logged in")
	}
}

func cmdWhoami(c components, jsonOut bool) {
	cred, ok := c.Creds.Load()
	if !ok {
		fatal(errors.New("not logged in"))
	}
	if jsonOut {
		outputJSON(map[string]string{"username": cred.Username, "user_id": cred.UserID})
		return
	}
	fmt.Printf("%s (%s)\n", cred.Username, cred.UserID)
}

func cmdFriends(ctx context.Context, c components, jsonOut bool) {
	if err := c.Roster.Refresh(ctx); err != nil {
		// Offline still lists the cached roster.
		fmt.Fprintf(os.Stderr, "warning: roster refresh failed: %v\n", err)
	}
	friends, err := c.Roster.List()
	if err != nil {
		fatal(err)
	}

	if jsonOut {
		outputJSON(friends)
		return
	}
	if len(friends) == 0 {
		fmt.Println("No friends yet. Use chirpctl add-friend <user-id>.")
		return
	}
	for _, f := range friends {
		fmt.Printf("%-8s %-24s %s\n", f.Presence, f.Username, f.UserID)
	}
}

func cmdSearch(ctx context.Context, c components, displayID string, jsonOut bool) {
	found, err := c.Roster.Search(ctx, displayID)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(found)
		return
	}
	fmt.Printf("%s (%s)\n", found.Username, found.UserID)
}

func cmdAddFriend(ctx context.Context, c components, displayID string) {
	found, err := c.Roster.Search(ctx, displayID)
	if err != nil {
		fatal(err)
	}
	if err := c.Roster.AddFriend(ctx, found.ID); err != nil {
		fatal(err)
	}
	fmt.Printf("Added %s (%s)\n", found.Username, found.UserID)
}

// cmdSend queues a message and blocks until the server acks it or the
// attempt settles as failed.
func cmdSend(ctx context.Context, c components, friendID, content, msgType string) {
	if _, ok := c.Creds.Load(); !ok {
		fatal(errors.New("not logged in"))
	}
	friend, err := c.DB.GetFriend(friendID)
	if err != nil {
		fatal(err)
	}
	if friend == nil {
		// Maybe the roster was never fetched in this session.
		if err := c.Roster.Refresh(ctx); err != nil {
			fatal(fmt.Errorf("unknown friend %q and roster refresh failed: %w", friendID, err))
		}
		friend, err = c.DB.GetFriend(friendID)
		if err != nil || friend == nil {
			fatal(fmt.Errorf("unknown friend %q", friendID))
		}
	}

	events, cancel := c.Bus.Subscribe("message.", 64)
	defer cancel()

	clientMsgID, err := c.Sender.Send(friend.ID, content, msgType)
	if err != nil {
		fatal(err)
	}

	for {
		select {
		case <-ctx.Done():
			fatal(errors.New("timed out waiting for ack, message stays queued"))
		case evt := <-events:
			payload, ok := evt.Payload.(map[string]string)
			if !ok || payload["client_msg_id"] != clientMsgID {
				continue
			}
			switch evt.Kind {
			case bus.KindSendAck:
				fmt.Println("Sent")
				return
			case bus.KindSendFailed:
				fatal(fmt.Errorf("send failed: %s", payload["error"]))
			case bus.KindSendUncertain:
				fatal(errors.New("no ack from server, delivery uncertain"))
			}
		}
	}
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal(err)
	}
}
