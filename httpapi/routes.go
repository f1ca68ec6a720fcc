package httpapi

import "github.com/gin-gonic/gin"

// NewRouter wires the HTTP surface. Tracking lookups are public; everything
// that acts on a specific account goes through the auth middleware.
func NewRouter(h *Handler, verifier TokenVerifier) *gin.Engine {
	router := gin.Default()

	v1 := router.Group("/v1")
	{
		v1.POST("/auth/register", h.Register)
		v1.POST("/auth/login", h.Login)

		v1.GET("/garages", h.ListGarages)
		v1.GET("/garages/:id", h.GetGarage)

		v1.GET("/requests/track", h.TrackRequest)
	}

	authed := router.Group("/v1")
	authed.Use(AuthRequired(verifier))
	{
		authed.POST("/requests", h.CreateRequest)
		authed.GET("/requests/:id", h.GetRequest)
		authed.POST("/requests/:id/cancel", h.CancelRequest)
		authed.POST("/requests/:id/quotes", h.SubmitQuote)

		authed.POST("/quotes/:id/view", h.TrackView)
		authed.POST("/quotes/:id/accept", h.AcceptQuote)
	}

	return router
}
