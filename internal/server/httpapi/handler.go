package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/voiceauth/internal/server/models"
	"github.com/dmitrijs2005/voiceauth/internal/server/services"
	"github.com/gin-gonic/gin"
)

type credentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type codeRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

type messageResponse struct {
	Message           string `json:"message"`
	RemainingAttempts *int   `json:"remaining_attempts,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type userResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

func bind[T any](c *gin.Context) (*T, bool) {
	var req T
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Detail: "invalid request body"})
		return nil, false
	}
	return &req, true
}

func (s *HTTPServer) replyMessage(c *gin.Context, res *services.MessageResult, err error) {
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: res.Message, RemainingAttempts: res.RemainingAttempts})
}

func (s *HTTPServer) replyToken(c *gin.Context, res *services.TokenResult, err error) {
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{AccessToken: res.AccessToken, TokenType: res.TokenType})
}

func (s *HTTPServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *HTTPServer) register(c *gin.Context) {
	req, ok := bind[credentialsRequest](c)
	if !ok {
		return
	}
	res, err := s.auth.Register(c.Request.Context(), c.ClientIP(), req.Email, req.Password)
	s.replyMessage(c, res, err)
}

func (s *HTTPServer) verifyRegister(c *gin.Context) {
	req, ok := bind[codeRequest](c)
	if !ok {
		return
	}
	res, err := s.auth.VerifyRegister(c.Request.Context(), req.Email, req.Code)
	s.replyToken(c, res, err)
}

func (s *HTTPServer) login(c *gin.Context) {
	req, ok := bind[credentialsRequest](c)
	if !ok {
		return
	}
	res, err := s.auth.Login(c.Request.Context(), c.ClientIP(), req.Email, req.Password)
	s.replyMessage(c, res, err)
}

func (s *HTTPServer) verifyLogin(c *gin.Context) {
	req, ok := bind[codeRequest](c)
	if !ok {
		return
	}
	res, err := s.auth.VerifyLogin(c.Request.Context(), c.ClientIP(), req.Email, req.Code)
	s.replyToken(c, res, err)
}

func (s *HTTPServer) resendCode(c *gin.Context) {
	req, ok := bind[credentialsRequest](c)
	if !ok {
		return
	}
	res, err := s.auth.ResendCode(c.Request.Context(), req.Email, req.Password)
	s.replyMessage(c, res, err)
}

func (s *HTTPServer) me(c *gin.Context) {
	u := c.MustGet(userKey).(*models.User)
	c.JSON(http.StatusOK, userResponse{ID: u.ID, Email: u.Email, IsVerified: u.IsVerified, CreatedAt: u.CreatedAt})
}
