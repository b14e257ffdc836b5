package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cloud-deploy-dashboard/internal/auth"
	"cloud-deploy-dashboard/internal/metrics"
	"cloud-deploy-dashboard/internal/model"
	"cloud-deploy-dashboard/internal/pkg/logger"
	"cloud-deploy-dashboard/internal/service"
	"cloud-deploy-dashboard/pkg/utils"
)

const writeWait = 10 * time.Second

type DeployHandler struct {
	deployService *service.DeployService
	metrics       *metrics.Metrics
	logger        *logger.Logger
	upgrader      websocket.Upgrader
}

// NewDeployHandler serves the deployment endpoints. Websocket handshakes are
// accepted from allowOrigins or from clients that send no Origin header.
func NewDeployHandler(deployService *service.DeployService, m *metrics.Metrics, l *logger.Logger, allowOrigins []string) *DeployHandler {
	allowed := make(map[string]struct{}, len(allowOrigins))
	for _, o := range allowOrigins {
		allowed[o] = struct{}{}
	}
	return &DeployHandler{
		deployService: deployService,
		metrics:       m,
		logger:        l,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

func (h *DeployHandler) Deploy(c *gin.Context) {
	var req model.DeploymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utils.NewRequestError(err))
		return
	}

	id, err := h.deployService.Start(auth.User(c), req)
	if err != nil {
		h.logger.Warn("deployment rejected", zap.String("owner", auth.User(c)), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.DeployResponse{
		Success:      true,
		DeploymentID: id,
		Message:      "Deployment started",
	})
}

// Progress reports the caller's latest deployment, or the one named by ?id=.
// A failed deployment is reported as an error envelope.
func (h *DeployHandler) Progress(c *gin.Context) {
	status, err := h.deployService.Progress(auth.User(c), c.Query("id"))
	switch {
	case err == nil:
		h.metrics.ProgressRequest("ok")
		c.JSON(http.StatusOK, status)
	case errors.Is(err, service.ErrNoDeployment):
		h.metrics.ProgressRequest("not_found")
		respondError(c, err)
	default:
		h.metrics.ProgressRequest("failed")
		respondError(c, err)
	}
}

// Stream pushes every status change over a websocket until the deployment
// ends or the peer goes away.
func (h *DeployHandler) Stream(c *gin.Context) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	updates, err := h.deployService.Watch(ctx, auth.User(c), c.Query("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	// Deadlines set by the http.Server survive the hijack.
	_ = conn.SetReadDeadline(time.Time{})

	// Reading is only needed to notice the peer closing.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for status := range updates {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(status); err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
			return
		}
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "deployment finished"),
		time.Now().Add(writeWait))
}

func respondError(c *gin.Context, err error) {
	var apiErr *utils.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.Is(err, service.ErrNoDeployment):
		apiErr = utils.NewNotFoundError("deployment")
	case errors.Is(err, service.ErrShuttingDown):
		c.JSON(http.StatusServiceUnavailable, model.NewErrorResponse(utils.NewSystemError(err)))
		return
	default:
		apiErr = utils.NewSystemError(err)
	}
	c.JSON(apiErr.HTTPStatus(), model.NewErrorResponse(apiErr))
}
