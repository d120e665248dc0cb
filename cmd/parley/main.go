package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dmelo/parley/internal/apiclient"
	"github.com/dmelo/parley/internal/app"
	"github.com/dmelo/parley/internal/cache"
	"github.com/dmelo/parley/internal/model"
	"github.com/dmelo/parley/internal/profile"
	"github.com/dmelo/parley/internal/state"
	"go.uber.org/fx"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	serverFlag := flag.String("server", "", "server URL (overrides config)")
	flag.Usage = usage
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var (
		st *state.Store
		db *cache.DB
	)
	fxApp := fx.New(
		app.Module(app.Params{Profile: profileName, ServerURL: *serverFlag}),
		fx.NopLogger,
		fx.Populate(&st, &db),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	runErr := run(context.Background(), args[0], args[1:], st, db)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	_ = fxApp.Stop(stopCtx)

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string, st *state.Store, db *cache.DB) error {
	switch cmd {
	case "login":
		return cmdLogin(ctx, args, st)
	case "register":
		return cmdRegister(ctx, args, st)
	case "logout":
		return st.Logout()
	case "whoami":
		if err := requireSession(ctx, st); err != nil {
			return err
		}
		user := st.User()
		fmt.Printf("%s (id %d, %s)\n", user.Username, user.ID, user.Email)
		return nil
	case "conversations":
		return cmdConversations(ctx, args, st, db)
	case "messages":
		return cmdMessages(ctx, args, st, db)
	case "send":
		return cmdSend(ctx, args, st)
	case "profile":
		return cmdProfile(ctx, st)
	case "update-profile":
		return cmdUpdateProfile(ctx, args, st)
	case "settings":
		return cmdSettings(ctx, args, st)
	case "online":
		return cmdOnline(ctx, st)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdLogin(ctx context.Context, args []string, st *state.Store) error {
	if len(args) != 1 {
		return errors.New("usage: parley login <username>")
	}
	password, err := promptPassword()
	if err != nil {
		return err
	}
	user, err := st.Login(ctx, args[0], password)
	if err != nil {
		return err
	}
	fmt.Printf("logged in as %s\n", user.Username)
	return nil
}

func cmdRegister(ctx context.Context, args []string, st *state.Store) error {
	if len(args) != 2 {
		return errors.New("usage: parley register <username> <email>")
	}
	password, err := promptPassword()
	if err != nil {
		return err
	}
	if err := st.Register(ctx, args[0], args[1], password); err != nil {
		return err
	}
	// Registration does not sign in; the account must log in explicitly.
	fmt.Printf("account %s created, run 'parley login %s' to sign in\n", args[0], args[0])
	return nil
}

func cmdConversations(ctx context.Context, args []string, st *state.Store, db *cache.DB) error {
	fs := flag.NewFlagSet("conversations", flag.ContinueOnError)
	offline := fs.Bool("offline", false, "list from the local cache without contacting the server")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		convs  []model.Conversation
		selfID int64
	)
	if *offline {
		var err error
		convs, err = db.Conversations()
		if err != nil {
			return err
		}
	} else {
		if err := requireSession(ctx, st); err != nil {
			return err
		}
		selfID = st.User().ID
		if err := st.RefreshConversations(ctx); err != nil {
			return err
		}
		convs = st.Conversations()
	}

	for _, c := range convs {
		preview := ""
		if c.LastMessage != nil {
			preview = c.LastMessage.Content
		}
		fmt.Printf("%d\t%s\t%s\n", c.ID, c.DisplayName(selfID), preview)
	}
	return nil
}

func cmdMessages(ctx context.Context, args []string, st *state.Store, db *cache.DB) error {
	fs := flag.NewFlagSet("messages", flag.ContinueOnError)
	offline := fs.Bool("offline", false, "list from the local cache without contacting the server")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: parley messages [-offline] <conversation-id>")
	}
	convID, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid conversation id %q", fs.Arg(0))
	}

	var msgs []model.Message
	if *offline {
		msgs, err = db.Messages(convID)
		if err != nil {
			return err
		}
	} else {
		if err := requireSession(ctx, st); err != nil {
			return err
		}
		if err := st.SelectConversation(ctx, &model.Conversation{ID: convID}); err != nil {
			return err
		}
		msgs = st.Messages()
	}

	for _, m := range msgs {
		fmt.Printf("%s\t[%d]\t%s\n", m.Timestamp, m.SenderID, m.Content)
	}
	return nil
}

func cmdSend(ctx context.Context, args []string, st *state.Store) error {
	if len(args) < 2 {
		return errors.New("usage: parley send <conversation-id> <text>")
	}
	convID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid conversation id %q", args[0])
	}
	if err := requireSession(ctx, st); err != nil {
		return err
	}
	if err := st.SelectConversation(ctx, &model.Conversation{ID: convID}); err != nil {
		return err
	}
	msg, err := st.SendMessage(ctx, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Printf("sent message %d at %s\n", msg.ID, msg.Timestamp)
	return nil
}

func cmdProfile(ctx context.Context, st *state.Store) error {
	if err := requireSession(ctx, st); err != nil {
		return err
	}
	user, err := st.FetchProfile(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("username:  %s\n", user.Username)
	fmt.Printf("email:     %s\n", user.Email)
	if user.Bio != nil {
		fmt.Printf("bio:       %s\n", *user.Bio)
	}
	fmt.Printf("presence:  %s\n", user.PresenceStatus)
	fmt.Printf("logins:    %d\n", user.LoginCount)
	return nil
}

func cmdUpdateProfile(ctx context.Context, args []string, st *state.Store) error {
	fs := flag.NewFlagSet("update-profile", flag.ContinueOnError)
	username := fs.String("username", "", "new username")
	email := fs.String("email", "", "new email")
	bio := fs.String("bio", "", "new bio")
	image := fs.String("image", "", "path to a profile image")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireSession(ctx, st); err != nil {
		return err
	}

	// Unset fields keep their current values.
	current := st.User()
	upd := apiProfileUpdate(current, *username, *email, *bio)
	if *image != "" {
		f, err := os.Open(*image)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		upd.Image = f
		upd.ImageName = filepath.Base(*image)
	}

	user, err := st.UpdateProfile(ctx, upd)
	if err != nil {
		return err
	}
	fmt.Printf("profile updated for %s\n", user.Username)
	return nil
}

func cmdSettings(ctx context.Context, args []string, st *state.Store) error {
	fs := flag.NewFlagSet("settings", flag.ContinueOnError)
	notifications := fs.Bool("notifications", true, "enable notifications")
	darkMode := fs.Bool("darkmode", false, "enable dark mode")
	language := fs.String("language", "en", "interface language")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireSession(ctx, st); err != nil {
		return err
	}

	stored, err := st.UpdateSettings(ctx, model.Settings{
		NotificationsEnabled: *notifications,
		DarkModeEnabled:      *darkMode,
		Language:             *language,
	})
	if err != nil {
		return err
	}
	fmt.Printf("settings saved (notifications=%v darkmode=%v language=%s)\n",
		stored.NotificationsEnabled, stored.DarkModeEnabled, stored.Language)
	return nil
}

func cmdOnline(ctx context.Context, st *state.Store) error {
	if err := requireSession(ctx, st); err != nil {
		return err
	}
	users, err := st.OnlineUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		fmt.Printf("%s\t%s\n", u.Username, u.PresenceStatus)
	}
	return nil
}

// requireSession restores the session from the persisted token.
func requireSession(ctx context.Context, st *state.Store) error {
	ok, err := st.Resume(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("not logged in, run 'parley login <username>'")
	}
	return nil
}

func apiProfileUpdate(current *model.User, username, email, bio string) (upd apiclient.ProfileUpdate) {
	if username == "" && current != nil {
		username = current.Username
	}
	if email == "" && current != nil {
		email = current.Email
	}
	if bio == "" && current != nil && current.Bio != nil {
		bio = *current.Bio
	}
	upd.Username = username
	upd.Email = email
	upd.Bio = bio
	return upd
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: parley [-profile name] [-server url] <command> [args]

commands:
  login <username>                 authenticate and store the session token
  register <username> <email>      create an account (does not sign in)
  logout                           clear the session and local cache
  whoami                           show the current user
  conversations [-offline]         list conversations
  messages [-offline] <id>         show messages of a conversation
  send <id> <text>                 send a message
  profile                          show the profile
  update-profile [flags]           change username/email/bio/image
  settings [flags]                 save notification/appearance settings
  online                           list online users
`)
}
