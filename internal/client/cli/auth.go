package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/voiceauth/internal/client/client"
	"github.com/dmitrijs2005/voiceauth/internal/common"
	"github.com/dmitrijs2005/voiceauth/internal/filex"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// askEmail prompts for an email, defaulting to the one used last.
func (a *App) askEmail() (string, error) {
	if a.emailArg != "" {
		a.email, a.emailArg = a.emailArg, ""
		return a.email, nil
	}
	prompt := "Enter email"
	if a.email != "" {
		prompt += fmt.Sprintf(" [%s]", a.email)
	}
	email, err := getSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return "", err
	}
	if email == "" {
		email = a.email
	}
	if email == "" {
		return "", fmt.Errorf("email is required")
	}
	a.email = email
	return email, nil
}

func (a *App) askCredentials() (string, []byte, error) {
	email, err := a.askEmail()
	if err != nil {
		return "", nil, err
	}
	password, err := getPassword(a.reader, a.out)
	if err != nil {
		return "", nil, err
	}
	return email, password, nil
}

func (a *App) askCode() (string, string, error) {
	email, err := a.askEmail()
	if err != nil {
		return "", "", err
	}
	code, err := getSimpleText(a.reader, "Enter the 6-digit code from the email", a.out)
	if err != nil {
		return "", "", err
	}
	return email, code, nil
}

func (a *App) printMessage(m *client.Message) {
	if m.RemainingAttempts != nil {
		fmt.Fprintf(a.out, "%s (%d attempts left)\n", m.Message, *m.RemainingAttempts)
		return
	}
	fmt.Fprintln(a.out, m.Message)
}

func (a *App) keepToken(t *client.Token) error {
	if err := a.saveToken(t.AccessToken); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	fmt.Fprintln(a.out, "Success! Token saved to", a.config.TokenFile)
	return nil
}

// Register asks for credentials and requests a registration code.
func (a *App) Register(ctx context.Context) error {
	email, password, err := a.askCredentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	m, err := a.api.Register(ctx, email, password)
	if err != nil {
		return err
	}
	a.printMessage(m)
	return nil
}

// VerifyRegister submits a registration code and saves the returned token.
func (a *App) VerifyRegister(ctx context.Context) error {
	email, code, err := a.askCode()
	if err != nil {
		return err
	}
	t, err := a.api.VerifyRegister(ctx, email, code)
	if err != nil {
		return err
	}
	return a.keepToken(t)
}

// Login checks the password and requests a login code.
func (a *App) Login(ctx context.Context) error {
	email, password, err := a.askCredentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	m, err := a.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	a.printMessage(m)
	return nil
}

// VerifyLogin submits a login code and saves the returned token.
func (a *App) VerifyLogin(ctx context.Context) error {
	email, code, err := a.askCode()
	if err != nil {
		return err
	}
	t, err := a.api.VerifyLogin(ctx, email, code)
	if err != nil {
		return err
	}
	return a.keepToken(t)
}

// Resend asks the server for a fresh code.
func (a *App) Resend(ctx context.Context) error {
	email, password, err := a.askCredentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	m, err := a.api.ResendCode(ctx, email, password)
	if err != nil {
		return err
	}
	a.printMessage(m)
	return nil
}

// Me prints the account the saved token belongs to.
func (a *App) Me(ctx context.Context) error {
	token, err := a.loadToken()
	if err != nil {
		return err
	}
	u, err := a.api.Me(ctx, token)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "id:       %s\nemail:    %s\nverified: %t\ncreated:  %s\n",
		u.ID, u.Email, u.IsVerified, u.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}

// Logout forgets the saved token. Tokens cannot be revoked server-side, so
// this only affects the local client.
func (a *App) Logout(context.Context) error {
	if err := filex.RemoveSecret(a.config.TokenFile); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}
