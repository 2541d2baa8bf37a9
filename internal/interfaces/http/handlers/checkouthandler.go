package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/checkout/internal/infrastructure/page"
	apperrors "github.com/orris-inc/checkout/internal/shared/errors"
	"github.com/orris-inc/checkout/internal/shared/logger"
	"github.com/orris-inc/checkout/internal/shared/utils"
	"github.com/orris-inc/checkout/sdk/checkout"
)

type CheckoutHandler struct {
	shoppers ShopperSource
	logger   logger.Interface
}

func NewCheckoutHandler(shoppers ShopperSource, logger logger.Interface) *CheckoutHandler {
	return &CheckoutHandler{
		shoppers: shoppers,
		logger:   logger,
	}
}

// OutcomeResponse is a settled or paused checkout. Page is set while the
// customer must complete a challenge or follow a redirect.
type OutcomeResponse struct {
	RequestID          string                   `json:"request_id"`
	ProcessID          string                   `json:"process_id"`
	State              checkout.State           `json:"state"`
	Response           *checkout.RouterResponse `json:"response,omitempty"`
	VerificationStatus int                      `json:"verification_status,omitempty"`
	Page               *page.Page               `json:"page,omitempty"`
}

type SaveCardRequest struct {
	Customer checkout.Customer       `json:"customer" binding:"required"`
	Card     *checkout.TokenizedCard `json:"card,omitempty"`
}

type MountFieldsRequest struct {
	Context checkout.ContextKey  `json:"context" binding:"required"`
	Fields  []checkout.FieldSpec `json:"fields" binding:"required,min=1"`
	Unmount string               `json:"unmount,omitempty"`
}

type MountedContextsResponse struct {
	Contexts []checkout.ContextKey `json:"contexts"`
}

type UnmountResponse struct {
	Removed int `json:"removed"`
}

func (h *CheckoutHandler) outcomeResponse(shopper *Shopper, outcome *checkout.Outcome) OutcomeResponse {
	resp := OutcomeResponse{
		RequestID:          shopper.Checkout.RequestID(),
		ProcessID:          outcome.ProcessID,
		State:              outcome.State,
		Response:           outcome.Response,
		VerificationStatus: outcome.VerificationStatus,
	}
	if outcome.State.IsPaused() && shopper.Pages != nil {
		if current, ok := shopper.Pages.Current(); ok {
			resp.Page = &current
		}
	}
	return resp
}

// shopper resolves the session of the request, answering the request itself
// when that fails.
func (h *CheckoutHandler) shopper(c *gin.Context) (*Shopper, bool) {
	return resolveShopper(c, h.shoppers, h.logger)
}

func resolveShopper(c *gin.Context, shoppers ShopperSource, log logger.Interface) (*Shopper, bool) {
	shopper, err := shoppers.Shopper(c)
	if err != nil {
		log.Errorw("failed to resolve shopper session", "path", c.FullPath(), "error", err)
		utils.ErrorResponseWithError(c, err)
		return nil, false
	}
	return shopper, true
}

// bindError answers a request body that could not be decoded.
func (h *CheckoutHandler) bindError(c *gin.Context, err error) {
	h.logger.Warnw("failed to bind request", "path", c.FullPath(), "error", err)
	utils.ErrorResponseWithError(c, apperrors.Wrap(err, apperrors.CodeInvalidRequest,
		apperrors.WithStatus(http.StatusBadRequest),
		apperrors.WithDetails(map[string]any{"reason": err.Error()})))
}

// @Summary		Pay
// @Description	Run a checkout through order, payment and routing, pausing on 3DS
// @Tags			checkout
// @Accept			json
// @Produce		json
// @Param			payment	body		checkout.Request							true	"Payment request"
// @Success		200		{object}	utils.APIResponse{data=OutcomeResponse}	"Checkout settled or paused"
// @Failure		400		{object}	utils.APIResponse						"Invalid payment request"
// @Failure		500		{object}	utils.APIResponse						"Checkout failed"
// @Router			/checkout/payments [post]
func (h *CheckoutHandler) Pay(c *gin.Context) {
	var req checkout.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	shopper, ok := h.shopper(c)
	if !ok {
		return
	}

	outcome, err := shopper.Checkout.Pay(c.Request.Context(), &req)
	if err != nil {
		h.logger.Errorw("checkout failed", "error", err, "email", utils.MaskEmail(req.Customer.Email))
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "checkout processed", h.outcomeResponse(shopper, outcome))
}

// @Summary		Verify pending challenge
// @Description	Poll the verification of a persisted 3DS challenge and finish the checkout
// @Tags			checkout
// @Produce		json
// @Success		200	{object}	utils.APIResponse{data=OutcomeResponse}	"Checkout verified"
// @Success		204	"No challenge pending"
// @Failure		500	{object}	utils.APIResponse	"Verification failed"
// @Router			/checkout/verify [post]
func (h *CheckoutHandler) Verify(c *gin.Context) {
	shopper, ok := h.shopper(c)
	if !ok {
		return
	}

	outcome, err := shopper.Checkout.VerifyPendingChallenge(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	if outcome == nil {
		utils.NoContentResponse(c)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "challenge verified", h.outcomeResponse(shopper, outcome))
}

// @Summary		List payment methods
// @Tags			checkout
// @Produce		json
// @Success		200	{object}	utils.APIResponse{data=[]checkout.PaymentMethod}
// @Router			/checkout/payment-methods [get]
func (h *CheckoutHandler) ListPaymentMethods(c *gin.Context) {
	shopper, ok := h.shopper(c)
	if !ok {
		return
	}

	methods, err := shopper.Checkout.ListPaymentMethods(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", methods)
}

// @Summary		List saved cards
// @Tags			cards
// @Produce		json
// @Param			email	query		string	true	"Customer email"
// @Success		200		{object}	utils.APIResponse{data=[]checkout.SavedCard}
// @Failure		400		{object}	utils.APIResponse
// @Router			/checkout/cards [get]
func (h *CheckoutHandler) ListCards(c *gin.Context) {
	shopper, ok := h.shopper(c)
	if !ok {
		return
	}

	customer := &checkout.Customer{Email: c.Query("email")}
	cards, err := shopper.Checkout.ListCards(c.Request.Context(), customer)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", cards)
}

// @Summary		Save card
// @Description	Save tokenized card fields, or the fields mounted in the create context
// @Tags			cards
// @Accept			json
// @Produce		json
// @Param			card	body		SaveCardRequest	true	"Card to save"
// @Success		201		{object}	utils.APIResponse{data=checkout.SavedCard}
// @Failure		400		{object}	utils.APIResponse
// @Router			/checkout/cards [post]
func (h *CheckoutHandler) SaveCard(c *gin.Context) {
	var req SaveCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	shopper, ok := h.shopper(c)
	if !ok {
		return
	}

	saved, err := shopper.Checkout.SaveCard(c.Request.Context(), &req.Customer, req.Card)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusCreated, "card saved", saved)
}

// @Summary		Remove card
// @Tags			cards
// @Param			id		path	string	true	"Card ID"
// @Param			email	query	string	true	"Customer email"
// @Success		204		"Card removed"
// @Failure		400		{object}	utils.APIResponse
// @Router			/checkout/cards/{id} [delete]
func (h *CheckoutHandler) RemoveCard(c *gin.Context) {
	shopper, ok := h.shopper(c)
	if !ok {
		return
	}

	customer := &checkout.Customer{Email: c.Query("email")}
	if err := shopper.Checkout.RemoveCard(c.Request.Context(), customer, c.Param("id")); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.NoContentResponse(c)
}

// @Summary		Mount card fields
// @Tags			fields
// @Accept			json
// @Produce		json
// @Param			fields	body		MountFieldsRequest	true	"Fields to mount"
// @Success		200		{object}	utils.APIResponse{data=MountedContextsResponse}
// @Failure		400		{object}	utils.APIResponse
// @Router			/checkout/fields [post]
func (h *CheckoutHandler) MountFields(c *gin.Context) {
	var req MountFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	shopper, ok := h.shopper(c)
	if !ok {
		return
	}

	err := shopper.Checkout.MountCardFields(c.Request.Context(), checkout.MountOptions{
		Context: req.Context,
		Fields:  req.Fields,
		Unmount: req.Unmount,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "fields mounted",
		MountedContextsResponse{Contexts: shopper.Checkout.MountedContexts()})
}

// @Summary		List mounted contexts
// @Tags			fields
// @Produce		json
// @Success		200	{object}	utils.APIResponse{data=MountedContextsResponse}
// @Router			/checkout/fields [get]
func (h *CheckoutHandler) MountedContexts(c *gin.Context) {
	shopper, ok := h.shopper(c)
	if !ok {
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "",
		MountedContextsResponse{Contexts: shopper.Checkout.MountedContexts()})
}

// @Summary		Unmount card fields
// @Tags			fields
// @Produce		json
// @Param			context	query		string	false	"Context key; every context when empty"
// @Success		200		{object}	utils.APIResponse{data=UnmountResponse}
// @Router			/checkout/fields [delete]
func (h *CheckoutHandler) UnmountFields(c *gin.Context) {
	shopper, ok := h.shopper(c)
	if !ok {
		return
	}

	removed := shopper.Checkout.UnmountCardFields(checkout.ContextKey(c.Query("context")))
	utils.SuccessResponse(c, http.StatusOK, "", UnmountResponse{Removed: removed})
}
