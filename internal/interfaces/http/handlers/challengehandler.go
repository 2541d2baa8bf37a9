package handlers

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/checkout/internal/infrastructure/page"
	"github.com/orris-inc/checkout/internal/shared/logger"
	"github.com/orris-inc/checkout/internal/shared/utils"
)

// ChallengeHandler serves the page a paused checkout needs and receives the
// load callbacks of challenge frames.
type ChallengeHandler struct {
	shoppers ShopperSource
	logger   logger.Interface
}

func NewChallengeHandler(shoppers ShopperSource, logger logger.Interface) *ChallengeHandler {
	return &ChallengeHandler{
		shoppers: shoppers,
		logger:   logger,
	}
}

type FrameLoadedRequest struct {
	Error string `json:"error,omitempty"`
}

var challengePage = template.Must(template.New("challenge").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Payment authentication</title></head>
<body>{{.}}</body>
</html>`))

// CurrentPage renders the pending 3DS challenge, redirects to the issuer page,
// or answers 204 when the checkout is not paused. It is served outside the API
// group so the challenge frame is not blocked by X-Frame-Options.
func (h *ChallengeHandler) CurrentPage(c *gin.Context) {
	shopper, ok := resolveShopper(c, h.shoppers, h.logger)
	if !ok {
		return
	}

	current, ok := shopper.Pages.Current()
	if !ok {
		utils.NoContentResponse(c)
		return
	}

	switch current.Kind {
	case page.KindRedirect:
		c.Redirect(http.StatusFound, current.URL)
	default:
		c.Header("Cache-Control", "no-store")
		c.Status(http.StatusOK)
		c.Header("Content-Type", "text/html; charset=utf-8")
		// current.HTML is built by the renderer from a sanitized fragment
		if err := challengePage.Execute(c.Writer, template.HTML(current.HTML)); err != nil {
			h.logger.Errorw("failed to render challenge page", "frame_id", current.FrameID, "error", err)
		}
	}
}

// @Summary		Current checkout page
// @Description	Describe the document of a paused checkout: a challenge frame or an issuer redirect
// @Tags			challenge
// @Produce		json
// @Success		200	{object}	utils.APIResponse{data=page.Page}
// @Success		204	"Nothing to show"
// @Router			/checkout/page [get]
func (h *ChallengeHandler) CurrentPageJSON(c *gin.Context) {
	shopper, ok := resolveShopper(c, h.shoppers, h.logger)
	if !ok {
		return
	}

	current, ok := shopper.Pages.Current()
	if !ok {
		utils.NoContentResponse(c)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", current)
}

// @Summary		Challenge frame loaded
// @Description	Called by the challenge frame once the issuer page has loaded
// @Tags			challenge
// @Accept			json
// @Param			frameID	path	string				true	"Frame ID"
// @Param			result	body	FrameLoadedRequest	false	"Load result"
// @Success		204		"Frame resolved"
// @Failure		404		{object}	utils.APIResponse	"Unknown or already resolved frame"
// @Router			/checkout/challenge/{frameID}/loaded [post]
func (h *ChallengeHandler) FrameLoaded(c *gin.Context) {
	frameID := c.Param("frameID")

	var req FrameLoadedRequest
	// the frame script posts without a body
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
			return
		}
	}

	var loadErr error
	if req.Error != "" {
		loadErr = errors.New(req.Error)
	}

	shopper, ok := resolveShopper(c, h.shoppers, h.logger)
	if !ok {
		return
	}
	if !shopper.Pages.MarkLoaded(frameID, loadErr) {
		h.logger.Debugw("load callback for unknown frame", "frame_id", frameID)
		utils.ErrorResponse(c, http.StatusNotFound, "challenge frame not found")
		return
	}

	h.logger.Infow("challenge frame loaded", "frame_id", frameID, "load_error", req.Error)
	utils.NoContentResponse(c)
}
