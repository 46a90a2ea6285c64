package handler

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"donation-rewards-api/internal/auth"
	"donation-rewards-api/internal/geo"
	"donation-rewards-api/internal/models"
	"donation-rewards-api/internal/service"
	"donation-rewards-api/internal/validation"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	service      *service.Service
	log          *zap.Logger
	maxBodySize  int64
	maxMediaSize int64
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize  int64
	MaxMediaSize int64
	Logger       *zap.Logger
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize:  10 << 20, // 10MB default
		MaxMediaSize: 20 << 20,
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts NewHandlerOptions) *Handler {
	defaults := DefaultHandlerOptions()
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = defaults.MaxBodySize
	}
	if opts.MaxMediaSize <= 0 {
		opts.MaxMediaSize = defaults.MaxMediaSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Handler{
		service:      svc,
		log:          opts.Logger,
		maxBodySize:  opts.MaxBodySize,
		maxMediaSize: opts.MaxMediaSize,
	}
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.log.Error("health check failed", zap.Error(err))
		h.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Register handles POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, resp)
}

// Login handles POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// Profile handles GET /api/auth/profile
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	id := identity(r)

	user, err := h.service.Profile(r.Context(), id.UserID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, user)
}

// GetBinByCode handles GET /api/bins/code/{binCode}
func (h *Handler) GetBinByCode(w http.ResponseWriter, r *http.Request) {
	bin, err := h.service.GetBinByCode(r.Context(), chi.URLParam(r, "binCode"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, bin)
}

// NearbyBins handles GET /api/bins/nearby?latitude=&longitude=&radius=
func (h *Handler) NearbyBins(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := parseRequiredFloat(q.Get("latitude"), "latitude")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	lng, err := parseRequiredFloat(q.Get("longitude"), "longitude")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	var radius float64
	if raw := validation.SanitizeString(q.Get("radius")); raw != "" {
		radius, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid 'radius' parameter, must be a number of kilometers")
			return
		}
	}

	bins, err := h.service.NearbyBins(r.Context(), geo.Point{Lat: lat, Lng: lng}, radius)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, bins)
}

// RegisterBin handles POST /api/bins
func (h *Handler) RegisterBin(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterBinRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	bin, err := h.service.RegisterBin(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, bin)
}

// UpdateBinStatus handles PATCH /api/bins/{id}/status
func (h *Handler) UpdateBinStatus(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateBinStatusRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	bin, err := h.service.UpdateBinStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, bin)
}

// StartDonation handles POST /api/donations/start
func (h *Handler) StartDonation(w http.ResponseWriter, r *http.Request) {
	var req models.StartDonationRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.StartDonation(r.Context(), identity(r).UserID, req.BinCode)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, resp)
}

// UploadMedia handles POST /api/donations/upload
func (h *Handler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	var req models.UploadMediaRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.UploadMedia(r.Context(), identity(r).UserID, service.UploadMediaInput{
		DonationID: req.DonationID,
		MediaURL:   req.MediaURL,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// UploadMediaFile handles POST /api/donations/{id}/media as multipart form
// data with a "media" file and optional "latitude" and "longitude" fields.
func (h *Handler) UploadMediaFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxMediaSize)

	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "media exceeds the upload limit")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("media")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "media file is required")
		return
	}
	defer file.Close()

	lat, err := parseOptionalFloat(r.FormValue("latitude"), "latitude")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	lng, err := parseOptionalFloat(r.FormValue("longitude"), "longitude")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}

	resp, err := h.service.UploadMediaFile(r.Context(), identity(r).UserID, chi.URLParam(r, "id"), service.MediaFile{
		Reader:      file,
		ContentType: contentType,
		Size:        header.Size,
		Latitude:    lat,
		Longitude:   lng,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// ListDonations handles GET /api/donations
func (h *Handler) ListDonations(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.parseLimit(w, r)
	if !ok {
		return
	}

	donations, err := h.service.ListDonations(r.Context(), identity(r).UserID, limit)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, donations)
}

// GetDonation handles GET /api/donations/{id}
func (h *Handler) GetDonation(w http.ResponseWriter, r *http.Request) {
	donation, err := h.service.GetDonation(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, donation)
}

// ListVouchers handles GET /api/vouchers/available
func (h *Handler) ListVouchers(w http.ResponseWriter, r *http.Request) {
	vouchers, err := h.service.ListVouchers(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, vouchers)
}

// CheckEligibility handles GET /api/vouchers/check-eligibility
func (h *Handler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.CheckEligibility(r.Context(), identity(r).UserID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// ClaimVoucher handles POST /api/vouchers/claim
func (h *Handler) ClaimVoucher(w http.ResponseWriter, r *http.Request) {
	var req models.ClaimVoucherRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	claim, err := h.service.ClaimVoucher(r.Context(), identity(r).UserID, req.VoucherID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, claim)
}

// MyVouchers handles GET /api/vouchers/mine
func (h *Handler) MyVouchers(w http.ResponseWriter, r *http.Request) {
	claims, err := h.service.MyVouchers(r.Context(), identity(r).UserID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, claims)
}

// PendingDonations handles GET /api/admin/donations/pending
func (h *Handler) PendingDonations(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.parseLimit(w, r)
	if !ok {
		return
	}

	donations, err := h.service.PendingReview(r.Context(), limit)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, donations)
}

// ApproveDonation handles POST /api/admin/donations/{id}/approve
func (h *Handler) ApproveDonation(w http.ResponseWriter, r *http.Request) {
	var req models.ReviewRequest
	if !h.decodeOptionalJSON(w, r, &req) {
		return
	}

	resp, err := h.service.ApproveDonation(r.Context(), identity(r).UserID, chi.URLParam(r, "id"), req.Notes)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// RejectDonation handles POST /api/admin/donations/{id}/reject
func (h *Handler) RejectDonation(w http.ResponseWriter, r *http.Request) {
	var req models.ReviewRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.RejectDonation(r.Context(), identity(r).UserID, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// Stats handles GET /api/admin/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, stats)
}

// CreateVoucher handles POST /api/admin/vouchers
func (h *Handler) CreateVoucher(w http.ResponseWriter, r *http.Request) {
	var req models.CreateVoucherRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	voucher, err := h.service.CreateVoucher(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, voucher)
}

// Features handles GET /api/admin/features
func (h *Handler) Features(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.service.Features())
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

// decodeJSON reads a required JSON body.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	// Limit request body size to prevent abuse
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return false
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return false
	}
	return true
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func (h *Handler) decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && err != io.EOF {
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return false
	}
	return true
}

func (h *Handler) parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := validation.SanitizeString(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		h.respondError(w, http.StatusBadRequest, "invalid 'limit' parameter, must be a positive integer")
		return 0, false
	}
	return limit, true
}

func parseRequiredFloat(raw, field string) (float64, error) {
	v, err := parseOptionalFloat(raw, field)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, &validation.ValidationError{Field: field, Message: "is required"}
	}
	return *v, nil
}

func parseOptionalFloat(raw, field string) (*float64, error) {
	raw = validation.SanitizeString(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, &validation.ValidationError{Field: field, Message: "must be a number"}
	}
	return &v, nil
}

// respondServiceError maps service errors onto HTTP responses. Unexpected
// errors are logged and reported without detail.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr     *validation.ValidationError
		conflict *service.ConflictError
		limited  *service.RateLimitError
	)

	switch {
	case errors.As(err, &verr):
		h.respondError(w, http.StatusBadRequest, verr.Error())
	case errors.As(err, &limited):
		retryAfter := int(math.Ceil(time.Until(limited.ResetAt).Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		resetAt := limited.ResetAt.UTC()
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limited.Limit))
		h.respondJSON(w, http.StatusTooManyRequests, models.ErrorResponse{
			Error:   limited.Reason,
			ResetAt: &resetAt,
		})
	case errors.As(err, &conflict):
		h.respondJSON(w, http.StatusConflict, models.ErrorResponse{
			Error:         conflict.Reason,
			CurrentStatus: conflict.CurrentStatus,
		})
	case errors.Is(err, service.ErrNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		h.respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden):
		h.respondError(w, http.StatusForbidden, "forbidden")
	default:
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		h.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
