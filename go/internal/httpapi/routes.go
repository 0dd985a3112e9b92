package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mkalra/gavel/go/internal/auction/gateway"
	"github.com/mkalra/gavel/go/internal/identity"
)

// SetupRoutes builds the router. The identity middleware runs on every
// route so authenticated users are always available in context; the
// operator gate wraps only the auction controls.
func SetupRoutes(h *Handler, ws *gateway.WebSocketHandler, auth *identity.Authenticator) http.Handler {
	r := chi.NewRouter()
	r.Use(auth.Middleware)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/operator", h.OperatorToken)
		r.Get("/session", h.GetSession)

		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.ListPlayers)
			r.Get("/{itemID}", h.GetPlayer)
			r.Post("/{itemID}/bids", h.PlaceBid)

			r.Group(func(r chi.Router) {
				r.Use(identity.RequireOperator)
				r.Post("/", h.CreatePlayer)
				r.Post("/{itemID}/open", h.OpenAuction)
				r.Post("/{itemID}/withdraw", h.WithdrawAuction)
				r.Post("/{itemID}/image", h.UploadPlayerImage)
			})
		})

		r.With(identity.RequireOperator).Post("/session/settlement/retry", h.RetrySettlement)

		r.Route("/buyers", func(r chi.Router) {
			r.Post("/", h.RegisterBuyer)
			r.Get("/{buyerID}", h.GetBuyer)
			r.Get("/{buyerID}/team", h.GetBuyerTeam)
			r.With(identity.RequireOperator).Post("/{buyerID}/deposit", h.Deposit)
		})
	})

	if ws != nil {
		ws.RegisterRoutes(r)
	}

	return r
}
