package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/voiceauth/internal/client/client"
	"github.com/dmitrijs2005/voiceauth/internal/client/config"
	"github.com/dmitrijs2005/voiceauth/internal/filex"
)

// ErrNotLoggedIn is returned by "me" when no token has been saved.
var ErrNotLoggedIn = errors.New("not logged in, run verify-login first")

type App struct {
	config *config.Config
	api    client.Client
	reader *bufio.Reader
	out    io.Writer

	// email is the address used by the previous command, offered as the
	// default for the next prompt.
	email string
	// emailArg is an address given on the command line; it skips the prompt.
	emailArg string
}

func NewApp(c *config.Config) *App {
	return &App{
		config: c,
		api:    client.NewHTTPClient(c.ServerURL, c.Timeout),
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
}

// Run executes the subcommand in args, or starts the REPL when args is empty.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "voiceauth CLI (type 'help' for commands)")
		runREPL(ctx, a, a.reader, a.out)
		return nil
	}
	if len(args) > 1 {
		a.emailArg = args[1]
	}
	return dispatch(ctx, a, args[0])
}

func (a *App) saveToken(token string) error {
	return filex.WriteSecret(a.config.TokenFile, []byte(token))
}

func (a *App) loadToken() (string, error) {
	b, err := os.ReadFile(a.config.TokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotLoggedIn
		}
		return "", err
	}
	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", ErrNotLoggedIn
	}
	return token, nil
}
