package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robertarktes/venue-ticketing/internal/auth"
	"github.com/robertarktes/venue-ticketing/internal/observability"
)

func SetupRouter(h *Handlers, logger observability.Logger, authn *auth.Authenticator, rl Limiter, idemp IdempotencyStore) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(authn))
		if rl != nil {
			r.Use(RateLimitMiddleware(rl))
		}
		if idemp != nil {
			r.Use(IdempotencyMiddleware(idemp))
		}

		r.Get("/venues", h.ListVenues)
		r.Get("/venues/{venueID}", h.GetVenue)
		r.Get("/venues/{venueID}/seats", h.VenueSeats)
		r.Get("/events", h.ListEvents)
		r.Get("/events/{eventID}", h.GetEvent)
		r.Get("/events/{eventID}/seats", h.SeatMap)
		r.Post("/tickets/validate", h.ValidateQR)

		r.Group(func(r chi.Router) {
			r.Use(RequireActor)

			r.Post("/admins", h.ProvisionAdmin)

			r.Post("/venues", h.CreateVenue)
			r.Put("/venues/{venueID}", h.UpdateVenue)
			r.Delete("/venues/{venueID}", h.DeleteVenue)
			r.Put("/venues/{venueID}/seats/status", h.SetSeatStatus)

			r.Post("/events", h.CreateEvent)
			r.Put("/events/{eventID}", h.UpdateEvent)
			r.Delete("/events/{eventID}", h.DeleteEvent)
			r.Get("/events/{eventID}/tickets", h.EventTickets)
			r.Post("/events/{eventID}/purchase", h.PurchaseByType)
			r.Post("/tickets/event/{eventID}/purchase", h.PurchaseByType)

			r.Get("/me/tickets", h.MyTickets)
			r.Post("/tickets/checkin", h.CheckInToken)
			r.Get("/tickets/{ticketID}", h.GetTicket)
			r.Get("/tickets/{ticketID}/qrcode", h.QRCode)
			r.Get("/tickets/{ticketID}/history", h.TicketHistory)
			r.Post("/tickets/{ticketID}/book", h.Book)
			r.Post("/tickets/{ticketID}/cancel", h.Cancel)
			r.Post("/tickets/{ticketID}/refund", h.Refund)
			r.Post("/tickets/{ticketID}/withdraw", h.Withdraw)
			r.Post("/tickets/{ticketID}/checkin", h.CheckIn)

			r.Post("/seats/reserve", h.Reserve)
			r.Post("/seats/release", h.Release)
		})
	})

	return r
}
