package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/avasiliev/accountkeeper/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// App is the interactive loop: it reads commands, talks to the API, and
// prints results. The session token lives only inside the APIClient.
type App struct {
	api    *APIClient
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(api *APIClient, in io.Reader, out io.Writer) *App {
	return &App{api: api, reader: bufio.NewReader(in), out: out}
}

// Run processes commands until "exit" or EOF.
func (a *App) Run(ctx context.Context) error {
	fmt.Fprintln(a.out, "accountkeeper client; type 'help' for commands")

	for {
		fmt.Fprint(a.out, "> ")
		line, err := a.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" || fields[0] == "quit" {
			return nil
		}

		if err := a.Execute(ctx, fields[0], fields[1:]); err != nil {
			fmt.Fprintf(a.out, "error: %v\n", err)
		}
	}
}

// Execute runs a single command with its arguments.
func (a *App) Execute(ctx context.Context, command string, args []string) error {
	switch command {
	case "help":
		a.printHelp()
		return nil
	case "register":
		return a.register(ctx)
	case "login":
		return a.login(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "list":
		return a.list(ctx)
	case "deactivate":
		return a.setActive(ctx, args, false)
	case "activate":
		return a.setActive(ctx, args, true)
	case "rm":
		return a.remove(ctx, args)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *App) printHelp() {
	fmt.Fprintln(a.out, `commands:
  register          create a new account
  login             authenticate and keep a session token
  whoami            show the current account
  list              list accounts
  deactivate <id>   suspend an account
  activate <id>     re-enable an account
  rm <id>           delete an account
  exit`)
}

func (a *App) register(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	user, err := a.api.Register(ctx, username, email, string(password))
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "registered user %d (%s)\n", user.ID, user.Username)
	return nil
}

func (a *App) login(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.api.Login(ctx, username, string(password)); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "logged in")
	return nil
}

func (a *App) whoami(ctx context.Context) error {
	user, err := a.api.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d\t%s\t%s\tactive=%v\n", user.ID, user.Username, user.Email, user.IsActive)
	return nil
}

func (a *App) list(ctx context.Context) error {
	users, err := a.api.List(ctx, 0, 100)
	if err != nil {
		return err
	}
	for _, u := range users {
		fmt.Fprintf(a.out, "%d\t%s\t%s\tactive=%v\n", u.ID, u.Username, u.Email, u.IsActive)
	}
	return nil
}

func (a *App) setActive(ctx context.Context, args []string, active bool) error {
	id, err := idArg(args)
	if err != nil {
		return err
	}

	user, err := a.api.SetActive(ctx, id, active)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "user %d active=%v\n", user.ID, user.IsActive)
	return nil
}

func (a *App) remove(ctx context.Context, args []string) error {
	id, err := idArg(args)
	if err != nil {
		return err
	}

	user, err := a.api.Delete(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "deleted user %d (%s)\n", user.ID, user.Username)
	return nil
}

func idArg(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected exactly one id argument")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", args[0])
	}
	return id, nil
}
