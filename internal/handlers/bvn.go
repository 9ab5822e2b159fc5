package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/accountd/internal/middleware"
	"github.com/charlesng35/accountd/internal/services"
	"github.com/charlesng35/accountd/pkg/response"
)

// VerificationHandler exposes the BVN verification workflow.
type VerificationHandler struct {
	verification *services.VerificationService
}

// NewVerificationHandler constructs a VerificationHandler.
func NewVerificationHandler(verification *services.VerificationService) (*VerificationHandler, error) {
	if verification == nil {
		return nil, errors.New("verification handler: verification service is required")
	}
	return &VerificationHandler{verification: verification}, nil
}

type bvnRequest struct {
	BVN string `json:"bvn" validate:"required,bvn"`
}

type bvnVerifyRequest struct {
	Code string `json:"bvn_code" validate:"required"`
}

// POST /api/v1/auth/bvn
func (h *VerificationHandler) Request(c *gin.Context) {
	var req bvnRequest
	if !bindAndValidate(c, &req) {
		return
	}

	holder, err := h.verification.RequestVerification(requestContext(c), middleware.UserID(c), req.BVN)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, holder)
}

// POST /api/v1/auth/bvn/verify
func (h *VerificationHandler) Verify(c *gin.Context) {
	var req bvnVerifyRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if _, err := h.verification.SubmitVerification(requestContext(c), middleware.UserID(c), req.Code); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessMessage(c, http.StatusOK, "User is verified")
}

// GET /api/v1/auth/bvn/status
func (h *VerificationHandler) Status(c *gin.Context) {
	state, err := h.verification.Status(requestContext(c), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"state":       state,
		"is_verified": state == services.StateVerified,
	})
}
