package handler

import (
	"github.com/go-chi/chi/v5"

	"donation-rewards-api/internal/auth"
	"donation-rewards-api/internal/middleware"
)

// Mount registers the health check and the /api routes on r. Everything
// under /api except register and login requires a bearer token; /api/admin
// and bin management also require the admin role.
func (h *Handler) Mount(r chi.Router, tokens *auth.TokenManager) {
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(tokens))

			r.Get("/auth/profile", h.Profile)

			r.Route("/bins", func(r chi.Router) {
				r.Get("/code/{binCode}", h.GetBinByCode)
				r.Get("/nearby", h.NearbyBins)

				r.With(middleware.RequireAdmin).Post("/", h.RegisterBin)
				r.With(middleware.RequireAdmin).Patch("/{id}/status", h.UpdateBinStatus)
			})

			r.Route("/donations", func(r chi.Router) {
				r.Get("/", h.ListDonations)
				r.Post("/start", h.StartDonation)
				r.Post("/upload", h.UploadMedia)
				r.Get("/{id}", h.GetDonation)
				r.Post("/{id}/media", h.UploadMediaFile)
			})

			r.Route("/vouchers", func(r chi.Router) {
				r.Get("/available", h.ListVouchers)
				r.Get("/check-eligibility", h.CheckEligibility)
				r.Post("/claim", h.ClaimVoucher)
				r.Get("/mine", h.MyVouchers)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				r.Get("/donations/pending", h.PendingDonations)
				r.Post("/donations/{id}/approve", h.ApproveDonation)
				r.Post("/donations/{id}/reject", h.RejectDonation)
				r.Get("/stats", h.Stats)
				r.Post("/vouchers", h.CreateVoucher)
				r.Get("/features", h.Features)
			})
		})
	})
}
