package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ThureinS/bookreview/internal/service"
	"github.com/ThureinS/bookreview/pkg/httputil"
	"github.com/ThureinS/bookreview/pkg/pagination"
	"github.com/ThureinS/bookreview/pkg/validator"
)

// ReviewHandler handles HTTP requests for review endpoints.
type ReviewHandler struct {
	service *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: svc,
		logger:  logger,
	}
}

// CreateReviewRequest is the JSON request body for submitting a review.
// Rating range and minimum body length are checked by the review service.
type CreateReviewRequest struct {
	Rating int    `json:"rating"`
	Body   string `json:"body" validate:"max=10000"`
}

// ListReviews handles GET /api/v1/books/{id}/reviews
// @Summary List a book's reviews
// @Description Returns reviews newest first
// @Tags reviews
// @Produce json
// @Param id path string true "Book UUID"
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page (max 100)" default(20)
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/books/{id}/reviews [get]
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	page := pagination.FromRequest(r)

	reviews, total, err := h.service.ListReviews(r.Context(), id.String(), page.Page, page.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(reviews, total, page.Page, page.PerPage))
}

// CreateReview handles POST /api/v1/books/{id}/reviews
// @Summary Submit a review
// @Description Limited to three submissions per hour per user or client address
// @Tags reviews
// @Accept json
// @Produce json
// @Param id path string true "Book UUID"
// @Param X-User-ID header string false "Authenticated user id"
// @Param request body CreateReviewRequest true "Review to submit"
// @Success 201 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{}
// @Router /api/v1/books/{id}/reviews [post]
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req CreateReviewRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	review, err := h.service.SubmitReview(r.Context(), &service.SubmitReviewInput{
		BookID:   id.String(),
		Identity: identityFromContext(r.Context()),
		Rating:   req.Rating,
		Body:     req.Body,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: review})
}
