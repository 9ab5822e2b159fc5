package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/accountd/internal/middleware"
	"github.com/charlesng35/accountd/internal/models"
	"github.com/charlesng35/accountd/internal/services"
	"github.com/charlesng35/accountd/pkg/response"
)

// logoutCookieTTL is how long the cleared session cookie lingers in the browser.
const logoutCookieTTL = 10 * time.Second

// CookieConfig controls the session cookie written on login.
type CookieConfig struct {
	MaxAge time.Duration
	Secure bool
}

// AuthHandler exposes registration, login and the password lifecycle.
type AuthHandler struct {
	accounts *services.AccountService
	cookie   CookieConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(accounts *services.AccountService, cookie CookieConfig) (*AuthHandler, error) {
	if accounts == nil {
		return nil, errors.New("auth handler: account service is required")
	}
	return &AuthHandler{accounts: accounts, cookie: cookie}, nil
}

type registerRequest struct {
	FirstName string `json:"first_name" validate:"omitempty,max=100"`
	LastName  string `json:"last_name" validate:"omitempty,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	Role      string `json:"role" validate:"omitempty,oneof=user merchant"`
	Phone     string `json:"phone" validate:"omitempty,max=32"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type updateDetailsRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.accounts.Register(requestContext(c), services.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
		Phone:     req.Phone,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	h.sendSession(c, result)
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.accounts.Login(requestContext(c), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.sendSession(c, result)
}

// GET /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	h.setCookie(c, "none", logoutCookieTTL)
	response.Success(c, http.StatusOK, gin.H{})
}

// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.accounts.Profile(requestContext(c), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// PUT /api/v1/auth/updatedetails
func (h *AuthHandler) UpdateDetails(c *gin.Context) {
	var req updateDetailsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.accounts.UpdateDetails(requestContext(c), middleware.UserID(c), services.DetailsInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// PUT /api/v1/auth/updatepassword
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	var req updatePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.accounts.ChangePassword(requestContext(c), middleware.UserID(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.sendSession(c, result)
}

// POST /api/v1/auth/forgotpassword
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.accounts.ForgotPassword(requestContext(c), req.Email, requestBaseURL(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Email sent")
}

// PUT /api/v1/auth/resetpassword/:resettoken
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.accounts.ResetPassword(requestContext(c), c.Param("resettoken"), req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.sendSession(c, result)
}

func (h *AuthHandler) sendSession(c *gin.Context, result *services.AuthResult) {
	h.setCookie(c, result.Token.Value, h.cookie.MaxAge)
	response.Success(c, http.StatusOK, sessionResponse{
		Token:     result.Token.Value,
		ExpiresAt: result.Token.ExpiresAt,
		User:      result.User,
	})
}

func (h *AuthHandler) setCookie(c *gin.Context, value string, maxAge time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, value, int(maxAge.Seconds()), "/", "", h.cookie.Secure, true)
}
