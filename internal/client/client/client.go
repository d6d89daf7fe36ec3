package client

import (
	"context"
	"time"
)

// Message is the answer to the flows that send a code.
type Message struct {
	Message           string `json:"message"`
	RemainingAttempts *int   `json:"remaining_attempts,omitempty"`
}

// Token is a bearer token returned by a verify step.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// User is the public view of the current account.
type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

type Client interface {
	Register(ctx context.Context, email string, password []byte) (*Message, error)
	VerifyRegister(ctx context.Context, email, code string) (*Token, error)
	Login(ctx context.Context, email string, password []byte) (*Message, error)
	VerifyLogin(ctx context.Context, email, code string) (*Token, error)
	ResendCode(ctx context.Context, email string, password []byte) (*Message, error)
	Me(ctx context.Context, token string) (*User, error)
}
