package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrUnknownCommand = errors.New("unknown command")

const helpText = "Available commands: register, verify-register, login, verify-login, resend, me, logout, exit"

// execIface is the command surface dispatch needs. *App satisfies it;
// tests provide a lightweight stub.
type execIface interface {
	Register(ctx context.Context) error
	VerifyRegister(ctx context.Context) error
	Login(ctx context.Context) error
	VerifyLogin(ctx context.Context) error
	Resend(ctx context.Context) error
	Me(ctx context.Context) error
	Logout(ctx context.Context) error
}

func dispatch(ctx context.Context, a execIface, cmd string) error {
	switch cmd {
	case "register":
		return a.Register(ctx)
	case "verify-register":
		return a.VerifyRegister(ctx)
	case "login":
		return a.Login(ctx)
	case "verify-login":
		return a.VerifyLogin(ctx)
	case "resend", "resend-code":
		return a.Resend(ctx)
	case "me":
		return a.Me(ctx)
	case "logout":
		return a.Logout(ctx)
	}
	return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
}

// runREPL reads commands from reader until EOF, "exit" or "quit".
// Command errors are printed and the loop carries on. Prompts issued by
// the commands read from the same reader.
func runREPL(ctx context.Context, a execIface, reader *bufio.Reader, w io.Writer) {
	for {
		fmt.Fprint(w, "voiceauth> ")
		line, err := reader.ReadString('\n')
		parts := strings.Fields(line)

		if len(parts) > 0 {
			switch cmd := parts[0]; cmd {
			case "help":
				fmt.Fprintln(w, helpText)
			case "exit", "quit":
				fmt.Fprintln(w, "Bye!")
				return
			default:
				if err := dispatch(ctx, a, cmd); err != nil {
					fmt.Fprintln(w, "error:", err)
				}
			}
		}

		if err != nil || ctx.Err() != nil {
			return
		}
	}
}
