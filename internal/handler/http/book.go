package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ThureinS/bookreview/internal/domain"
	"github.com/ThureinS/bookreview/internal/service"
	"github.com/ThureinS/bookreview/pkg/httputil"
	"github.com/ThureinS/bookreview/pkg/pagination"
	"github.com/ThureinS/bookreview/pkg/validator"
)

const maxBodyBytes = 1 << 20

// BookHandler handles HTTP requests for book endpoints.
type BookHandler struct {
	service *service.BookService
	logger  *slog.Logger
}

// NewBookHandler creates a new book HTTP handler.
func NewBookHandler(svc *service.BookService, logger *slog.Logger) *BookHandler {
	return &BookHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateBookRequest is the JSON request body for creating a book.
type CreateBookRequest struct {
	Title       string    `json:"title" validate:"required,trimmed_min=1,max=500"`
	Author      string    `json:"author" validate:"required,trimmed_min=1,max=255"`
	PublishedAt time.Time `json:"published_at" validate:"required"`
	CoverURL    string    `json:"cover_url" validate:"omitempty,url"`
}

// UpdateBookRequest is the JSON request body for updating a book.
type UpdateBookRequest struct {
	Title       *string    `json:"title" validate:"omitempty,trimmed_min=1,max=500"`
	Author      *string    `json:"author" validate:"omitempty,trimmed_min=1,max=255"`
	PublishedAt *time.Time `json:"published_at"`
	CoverURL    *string    `json:"cover_url" validate:"omitempty,url"`
}

// --- Handlers ---

// ListBooks handles GET /api/v1/books
// @Summary List ranked books
// @Description Returns books ranked by the selected filter, optionally restricted by title
// @Tags books
// @Produce json
// @Param filter query string false "Ranking filter" Enums(latest,popular_last_month,popular_last_6months,highest_rated_last_month,highest_rated_last_6months) default(latest)
// @Param title query string false "Case-insensitive title substring"
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page (max 100)" default(20)
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/books [get]
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	filter, err := domain.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: err.Error()},
		})
		return
	}
	page := pagination.FromRequest(r)

	ranked, err := h.service.ListBooks(r.Context(), filter, r.URL.Query().Get("title"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK,
		httputil.NewPaginatedResponse(pagination.Slice(ranked, page), len(ranked), page.Page, page.PerPage))
}

// GetBook handles GET /api/v1/books/{id}
// @Summary Get a book page
// @Description Returns the book with its all-time stats and newest reviews
// @Tags books
// @Produce json
// @Param id path string true "Book UUID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/books/{id} [get]
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	detail, err := h.service.GetBook(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: detail})
}

// CreateBook handles POST /api/v1/books
// @Summary Create a book
// @Tags books
// @Accept json
// @Produce json
// @Param request body CreateBookRequest true "Book to create"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/books [post]
func (h *BookHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req CreateBookRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	book, err := h.service.CreateBook(r.Context(), &service.CreateBookInput{
		Title:       req.Title,
		Author:      req.Author,
		PublishedAt: req.PublishedAt,
		CoverURL:    req.CoverURL,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: book})
}

// UpdateBook handles PUT /api/v1/books/{id}
// @Summary Update a book
// @Tags books
// @Accept json
// @Produce json
// @Param id path string true "Book UUID"
// @Param request body UpdateBookRequest true "Fields to update"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/books/{id} [put]
func (h *BookHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req UpdateBookRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	book, err := h.service.UpdateBook(r.Context(), id.String(), &service.UpdateBookInput{
		Title:       req.Title,
		Author:      req.Author,
		PublishedAt: req.PublishedAt,
		CoverURL:    req.CoverURL,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: book})
}

// DeleteBook handles DELETE /api/v1/books/{id}
// @Summary Delete a book and its reviews
// @Tags books
// @Param id path string true "Book UUID"
// @Success 204
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/books/{id} [delete]
func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeleteBook(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
