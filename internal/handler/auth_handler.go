package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cloud-deploy-dashboard/internal/auth"
	"cloud-deploy-dashboard/internal/model"
	"cloud-deploy-dashboard/internal/pkg/logger"
	"cloud-deploy-dashboard/pkg/utils"
)

type AuthHandler struct {
	auth   *auth.Auth
	logger *logger.Logger
}

func NewAuthHandler(a *auth.Auth, l *logger.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   a,
		logger: l,
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utils.NewRequestError(err))
		return
	}

	if err := h.auth.ValidateCredentials(req.Username, req.Password); err != nil {
		h.logger.Warn("login failed", zap.String("username", req.Username))
		respondError(c, utils.NewAuthError(err))
		return
	}

	token, err := h.auth.GenerateToken(req.Username)
	if err != nil {
		respondError(c, utils.NewSystemError(errors.New("could not issue token")))
		return
	}

	h.logger.Info("user authenticated", zap.String("username", req.Username))
	c.JSON(http.StatusOK, model.LoginResponse{Token: token})
}
