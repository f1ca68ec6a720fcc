package httpapi

import (
	"time"

	"quoteflow/auth"
	"quoteflow/garage"
	"quoteflow/quote"
	"quoteflow/request"
)

type registerPayload struct {
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required"`
	FullName string  `json:"fullName" binding:"required"`
	Role     string  `json:"role"`
	GarageID *string `json:"garageId"`
}

type loginPayload struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type createRequestPayload struct {
	VehicleDesc string `json:"vehicleDesc" binding:"required"`
	ServiceDesc string `json:"serviceDesc"`
}

type cancelRequestPayload struct {
	Reason *string `json:"reason"`
}

type submitQuotePayload struct {
	Amount     int64     `json:"quotedAmount" binding:"required,min=1"`
	Message    *string   `json:"message"`
	ValidUntil time.Time `json:"validUntil" binding:"required"`
}

type acceptedQuoteResponse struct {
	ID           string `json:"id"`
	GarageName   string `json:"garageName"`
	QuotedAmount int64  `json:"quotedAmount"`
}

type acceptResponse struct {
	Success bool                  `json:"success"`
	Quote   acceptedQuoteResponse `json:"quote"`
}

type quoteResponse struct {
	ID               string     `json:"id"`
	QuoteRequestID   string     `json:"quoteRequestId"`
	GarageID         string     `json:"garageId"`
	QuotedAmount     int64      `json:"quotedAmount"`
	Message          *string    `json:"message,omitempty"`
	Status           string     `json:"status"`
	ValidUntil       time.Time  `json:"validUntil"`
	FirstViewedAt    *time.Time `json:"firstViewedAt,omitempty"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	AcceptedAt       *time.Time `json:"acceptedAt,omitempty"`
	DeclinedAt       *time.Time `json:"declinedAt,omitempty"`
	DeclineReason    *string    `json:"declineReason,omitempty"`
	IsExpired        bool       `json:"isExpired"`
	IsExpiringSoon   bool       `json:"isExpiringSoon"`
	RemainingSeconds int64      `json:"remainingSeconds"`
	Actionable       bool       `json:"actionable"`
	CreatedAt        time.Time  `json:"createdAt"`
}

type requestResponse struct {
	ID              string    `json:"id"`
	TrackingCode    string    `json:"trackingCode"`
	VehicleDesc     string    `json:"vehicleDesc"`
	ServiceDesc     string    `json:"serviceDesc,omitempty"`
	Status          string    `json:"status"`
	QuotesReceived  int       `json:"quotesReceived"`
	AcceptedQuoteID *string   `json:"acceptedQuoteId,omitempty"`
	ExpiresAt       time.Time `json:"expiresAt"`
	CreatedAt       time.Time `json:"createdAt"`
}

type requestWithQuotesResponse struct {
	QuoteRequest requestResponse `json:"quoteRequest"`
	Quotes       []quoteResponse `json:"quotes"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Role      string    `json:"role"`
	GarageID  *string   `json:"garageId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type garageResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	City     string  `json:"city"`
	Phone    *string `json:"phone,omitempty"`
	Verified bool    `json:"verified"`
}

func fromUser(u auth.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      string(u.Role),
		GarageID:  u.GarageID,
		CreatedAt: u.CreatedAt,
	}
}

func fromGarage(p garage.Profile) garageResponse {
	return garageResponse{
		ID:       p.ID,
		Name:     p.Name,
		City:     p.City,
		Phone:    p.Phone,
		Verified: p.Verified,
	}
}

func fromRequest(r request.Request) requestResponse {
	return requestResponse{
		ID:              r.ID,
		TrackingCode:    r.TrackingCode,
		VehicleDesc:     r.VehicleDesc,
		ServiceDesc:     r.ServiceDesc,
		Status:          string(r.Status),
		QuotesReceived:  r.QuotesReceived,
		AcceptedQuoteID: r.AcceptedQuoteID,
		ExpiresAt:       r.ExpiresAt,
		CreatedAt:       r.CreatedAt,
	}
}

func fromQuote(q quote.Quote, derived quote.Derived, actionable bool) quoteResponse {
	return quoteResponse{
		ID:               q.ID,
		QuoteRequestID:   q.RequestID,
		GarageID:         q.GarageID,
		QuotedAmount:     q.Amount,
		Message:          q.Message,
		Status:           string(derived.DisplayStatus),
		ValidUntil:       q.ValidUntil,
		FirstViewedAt:    q.FirstViewedAt,
		ExpiresAt:        q.ExpiresAt,
		AcceptedAt:       q.AcceptedAt,
		DeclinedAt:       q.DeclinedAt,
		DeclineReason:    q.DeclineReason,
		IsExpired:        derived.IsExpired,
		IsExpiringSoon:   derived.IsExpiringSoon,
		RemainingSeconds: int64(derived.Remaining.Seconds()),
		Actionable:       actionable,
		CreatedAt:        q.CreatedAt,
	}
}

func fromView(v request.View) requestWithQuotesResponse {
	quotes := make([]quoteResponse, 0, len(v.Quotes))
	for _, qv := range v.Quotes {
		quotes = append(quotes, fromQuote(qv.Quote, qv.Derived, qv.Actionable))
	}
	return requestWithQuotesResponse{
		QuoteRequest: fromRequest(v.Request),
		Quotes:       quotes,
	}
}
