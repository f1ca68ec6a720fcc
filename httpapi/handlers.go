package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"quoteflow/auth"
	"quoteflow/garage"
	"quoteflow/quote"
	"quoteflow/request"
)

// timeNow is swapped out in tests.
var timeNow = time.Now

// QuoteService is the slice of the quote core the handlers call.
type QuoteService interface {
	Accept(ctx context.Context, params quote.AcceptParams) (quote.AcceptedSummary, error)
	RecordFirstView(ctx context.Context, params quote.RecordViewParams) (quote.ViewResult, error)
	Submit(ctx context.Context, params quote.SubmitParams) (quote.Quote, error)
	ExpiryConfig() quote.ExpiryConfig
}

// RequestService is the slice of the request core the handlers call.
type RequestService interface {
	Create(ctx context.Context, params request.CreateParams) (request.Request, error)
	Cancel(ctx context.Context, params request.CancelParams) (request.Request, error)
}

// ProjectionService assembles request-with-quotes views.
type ProjectionService interface {
	GetByID(ctx context.Context, params request.GetParams) (request.View, error)
	GetByTracking(ctx context.Context, trackingCode, email string) (request.View, error)
}

// AuthService is the slice of the auth core the handlers call.
type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	GetUserByID(ctx context.Context, userID string) (*auth.User, error)
}

// GarageService lists garage profiles for the public directory endpoint.
type GarageService interface {
	GetByID(ctx context.Context, id string) (garage.Profile, error)
	List(ctx context.Context, limit int) ([]garage.Profile, error)
}

type Handler struct {
	quotes     QuoteService
	requests   RequestService
	projection ProjectionService
	users      AuthService
	garages    GarageService
}

func NewHandler(quotes QuoteService, requests RequestService, projection ProjectionService, users AuthService, garages GarageService) *Handler {
	return &Handler{
		quotes:     quotes,
		requests:   requests,
		projection: projection,
		users:      users,
		garages:    garages,
	}
}

// Register handles POST /v1/auth/register.
func (h *Handler) Register(c *gin.Context) {
	var payload registerPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "invalid registration payload", Status: http.StatusBadRequest})
		return
	}

	user, err := h.users.Register(c.Request.Context(), auth.RegisterRequest{
		Email:    payload.Email,
		Password: payload.Password,
		FullName: payload.FullName,
		Role:     auth.Role(payload.Role),
		GarageID: payload.GarageID,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, fromUser(*user))
}

// Login handles POST /v1/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var payload loginPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "invalid login payload", Status: http.StatusBadRequest})
		return
	}

	result, err := h.users.Login(c.Request.Context(), auth.LoginRequest{
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{Token: result.Token, User: fromUser(result.User)})
}

// ListGarages handles GET /v1/garages.
func (h *Handler) ListGarages(c *gin.Context) {
	profiles, err := h.garages.List(c.Request.Context(), 100)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]garageResponse, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, fromGarage(p))
	}
	c.JSON(http.StatusOK, out)
}

// GetGarage handles GET /v1/garages/:id.
func (h *Handler) GetGarage(c *gin.Context) {
	profile, err := h.garages.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, fromGarage(profile))
}

// AcceptQuote handles POST /v1/quotes/:id/accept. A lost acceptance race is
// retried once; a second conflict is terminal and surfaces as 409.
func (h *Handler) AcceptQuote(c *gin.Context) {
	actorID, actorRole := actorFrom(c)
	params := quote.AcceptParams{
		QuoteID:   c.Param("id"),
		ActorID:   actorID,
		ActorRole: actorRole,
	}

	summary, err := h.quotes.Accept(c.Request.Context(), params)
	if errors.Is(err, quote.ErrTransactionConflict) {
		summary, err = h.quotes.Accept(c.Request.Context(), params)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, acceptResponse{
		Success: true,
		Quote: acceptedQuoteResponse{
			ID:           summary.QuoteID,
			GarageName:   summary.GarageName,
			QuotedAmount: summary.Amount,
		},
	})
}

// TrackView handles POST /v1/quotes/:id/view, starting the 48-hour window on
// the first call and returning the stamped projection on every call.
func (h *Handler) TrackView(c *gin.Context) {
	actorID, actorRole := actorFrom(c)

	res, err := h.quotes.RecordFirstView(c.Request.Context(), quote.RecordViewParams{
		QuoteID:   c.Param("id"),
		ActorID:   actorID,
		ActorRole: actorRole,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	now := timeNow()
	requestExpired := res.Request.Expired(now)
	derived := quote.DeriveState(res.Quote, requestExpired, now, h.quotes.ExpiryConfig())
	actionable := res.Request.Active() && !requestExpired &&
		res.Quote.Status == quote.StatusPending && !derived.IsExpired
	c.JSON(http.StatusOK, fromQuote(res.Quote, derived, actionable))
}

// GetRequest handles GET /v1/requests/:id for the authenticated owner.
func (h *Handler) GetRequest(c *gin.Context) {
	actorID, actorRole := actorFrom(c)

	view, err := h.projection.GetByID(c.Request.Context(), request.GetParams{
		RequestID: c.Param("id"),
		ActorID:   actorID,
		ActorRole: actorRole,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, fromView(view))
}

// TrackRequest handles GET /v1/requests/track?trackingCode=...&email=... for
// unauthenticated customers.
func (h *Handler) TrackRequest(c *gin.Context) {
	view, err := h.projection.GetByTracking(c.Request.Context(), c.Query("trackingCode"), c.Query("email"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, fromView(view))
}

// CreateRequest handles POST /v1/requests.
func (h *Handler) CreateRequest(c *gin.Context) {
	var payload createRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request payload", Status: http.StatusBadRequest})
		return
	}

	actorID, _ := actorFrom(c)
	created, err := h.requests.Create(c.Request.Context(), request.CreateParams{
		CustomerID:  actorID,
		VehicleDesc: payload.VehicleDesc,
		ServiceDesc: payload.ServiceDesc,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, fromRequest(created))
}

// CancelRequest handles POST /v1/requests/:id/cancel.
func (h *Handler) CancelRequest(c *gin.Context) {
	// Body is optional; a missing or malformed reason just cancels without one.
	var payload cancelRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		payload = cancelRequestPayload{}
	}

	actorID, actorRole := actorFrom(c)
	cancelled, err := h.requests.Cancel(c.Request.Context(), request.CancelParams{
		RequestID: c.Param("id"),
		ActorID:   actorID,
		ActorRole: actorRole,
		Reason:    payload.Reason,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, fromRequest(cancelled))
}

// SubmitQuote handles POST /v1/requests/:id/quotes for garage users.
func (h *Handler) SubmitQuote(c *gin.Context) {
	var payload submitQuotePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "invalid quote payload", Status: http.StatusBadRequest})
		return
	}

	actorID, actorRole := actorFrom(c)
	user, err := h.users.GetUserByID(c.Request.Context(), actorID)
	if err != nil {
		writeError(c, err)
		return
	}
	if user.GarageID == nil {
		writeError(c, quote.ErrForbidden)
		return
	}

	q, err := h.quotes.Submit(c.Request.Context(), quote.SubmitParams{
		RequestID:  c.Param("id"),
		GarageID:   *user.GarageID,
		ActorRole:  actorRole,
		Amount:     payload.Amount,
		Message:    payload.Message,
		ValidUntil: payload.ValidUntil,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	// The submit transaction only commits under an active, unlapsed request,
	// so the fresh quote derives against a live parent.
	derived := quote.DeriveState(q, false, timeNow(), h.quotes.ExpiryConfig())
	c.JSON(http.StatusCreated, fromQuote(q, derived, true))
}
