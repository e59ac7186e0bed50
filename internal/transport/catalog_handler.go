package transport

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pricebook/internal/domain"
	"pricebook/internal/middleware"
	"pricebook/internal/repository"
	"pricebook/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AddComponentRequest represents the component edge creation payload
type AddComponentRequest struct {
	ComponentSKU string `json:"component_sku" validate:"required"`
	Qty          string `json:"qty" validate:"required"`
}

// AddMembershipRequest represents the collection membership payload
type AddMembershipRequest struct {
	SKU       string `json:"sku" validate:"required"`
	IsPrimary bool   `json:"is_primary"`
	SortOrder int    `json:"sort_order"`
}

// SetPrimaryRequest marks a membership as the product's primary collection
type SetPrimaryRequest struct {
	SKU string `json:"sku" validate:"required"`
}

// SetParentRequest rewires a collection's parent; null detaches.
type SetParentRequest struct {
	ParentSlug *string `json:"parent_slug"`
}

// PriceResponse is the price resolution result
type PriceResponse struct {
	SKU         string `json:"sku"`
	Qty         string `json:"qty"`
	ListingCode string `json:"listing_code,omitempty"`
	TotalPriceQ int64  `json:"total_price_q"`
}

// ExpandResponse is the single-level bundle expansion result
type ExpandResponse struct {
	SKU        string                   `json:"sku"`
	Qty        string                   `json:"qty"`
	Components []domain.BundleComponent `json:"components"`
}

// MarginResponse reports the margin percent, when a cost is known
type MarginResponse struct {
	SKU           string `json:"sku"`
	MarginPercent string `json:"margin_percent,omitempty"`
	Known         bool   `json:"known"`
}

// CollectionResponse is a collection with its rendered path and children
type CollectionResponse struct {
	Collection *domain.Collection   `json:"collection"`
	FullPath   string               `json:"full_path"`
	Valid      bool                 `json:"valid"`
	Children   []*domain.Collection `json:"children"`
}

// CatalogHandler handles HTTP requests for catalog operations
type CatalogHandler struct {
	catalog     service.CatalogService
	products    repository.ProductRepository
	collections repository.CollectionRepository
	logger      *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(
	catalog service.CatalogService,
	products repository.ProductRepository,
	collections repository.CollectionRepository,
	logger *zap.Logger,
) *CatalogHandler {
	return &CatalogHandler{
		catalog:     catalog,
		products:    products,
		collections: collections,
		logger:      logger,
	}
}

// RegisterRoutes registers all catalog routes
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/catalog", func(r chi.Router) {
		r.Get("/products", h.GetMany)
		r.Get("/products/{sku}", h.Get)
		r.Get("/products/{sku}/price", h.Price)
		r.Get("/products/{sku}/price/detail", h.PriceDetail)
		r.Get("/products/{sku}/expand", h.Expand)
		r.Get("/products/{sku}/validate", h.Validate)
		r.Get("/products/{sku}/margin", h.Margin)
		r.Get("/search", h.Search)
		r.Get("/collections/{slug}", h.GetCollection)
		r.Get("/listings/{code}/products", h.AvailableProducts)
		r.Get("/listings/{code}/products/{sku}/available", h.IsAvailable)

		r.Post("/products/{sku}/components", h.AddComponent)
		r.Delete("/products/{sku}/components/{componentSku}", h.RemoveComponent)
		r.Post("/collections/{slug}/memberships", h.AddMembership)
		r.Post("/collections/{slug}/primary", h.SetPrimary)
		r.Put("/collections/{slug}/parent", h.SetParent)
	})
}

// Get returns a single product; unknown SKUs are 404
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")

	product, err := h.catalog.Get(r.Context(), sku)
	if err != nil {
		h.logger.Error("Failed to get product", zap.Error(err), zap.String("sku", sku))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get product")
		return
	}
	if product == nil {
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// GetMany returns a SKU-keyed map; missing SKUs are omitted, never an error
func (h *CatalogHandler) GetMany(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("skus")
	if raw == "" {
		middleware.RespondWithError(w, http.StatusBadRequest, "skus query parameter is required")
		return
	}

	products, err := h.catalog.GetMany(r.Context(), strings.Split(raw, ","))
	if err != nil {
		h.logger.Error("Failed to get products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// Price resolves a total price with silent listing fallback
func (h *CatalogHandler) Price(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")

	qty, ok := parseQty(w, r)
	if !ok {
		return
	}
	channel := r.URL.Query().Get("channel")
	priceList := r.URL.Query().Get("price_list")

	total, err := h.catalog.Price(r.Context(), sku, qty, channel, priceList)
	if err != nil {
		h.respondError(w, err, "failed to resolve price")
		return
	}

	listingCode := priceList
	if listingCode == "" {
		listingCode = channel
	}
	middleware.RespondWithJSON(w, http.StatusOK, PriceResponse{
		SKU:         sku,
		Qty:         qty.String(),
		ListingCode: listingCode,
		TotalPriceQ: total.Int64(),
	})
}

// PriceDetail resolves a strict price with the unit/total split
func (h *CatalogHandler) PriceDetail(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")

	qty, ok := parseQty(w, r)
	if !ok {
		return
	}

	detail, err := h.catalog.PriceDetail(r.Context(), sku, qty, r.URL.Query().Get("listing"))
	if err != nil {
		h.respondError(w, err, "failed to resolve price")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, detail)
}

// Expand flattens one level of a bundle
func (h *CatalogHandler) Expand(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")

	qty, ok := parseQty(w, r)
	if !ok {
		return
	}

	components, err := h.catalog.Expand(r.Context(), sku, qty)
	if err != nil {
		h.respondError(w, err, "failed to expand bundle")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ExpandResponse{
		SKU:        sku,
		Qty:        qty.String(),
		Components: components,
	})
}

// Validate returns structured SKU information; missing SKUs are a negative
// result with status 200, not an error
func (h *CatalogHandler) Validate(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")

	validation, err := h.catalog.Validate(r.Context(), sku)
	if err != nil {
		h.logger.Error("Failed to validate SKU", zap.Error(err), zap.String("sku", sku))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to validate SKU")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, validation)
}

// Margin reports the margin percent when the cost provider knows a cost
func (h *CatalogHandler) Margin(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")

	margin, known, err := h.catalog.Margin(r.Context(), sku)
	if err != nil {
		h.respondError(w, err, "failed to compute margin")
		return
	}

	resp := MarginResponse{SKU: sku, Known: known}
	if known {
		resp.MarginPercent = margin.String()
	}
	middleware.RespondWithJSON(w, http.StatusOK, resp)
}

// Search filters products through the repository
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 20
	if rawLimit := q.Get("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed <= 0 {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	filter := repository.SearchFilter{
		Query:          q.Get("q"),
		CollectionSlug: q.Get("collection"),
		OnlyPublished:  q.Get("include_unpublished") == "",
		OnlyAvailable:  q.Get("include_unavailable") == "",
		Limit:          limit,
	}
	if keywords := q.Get("keywords"); keywords != "" {
		filter.Keywords = strings.Split(keywords, ",")
	}

	products, err := h.catalog.Search(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to search products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to search products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// AvailableProducts returns the products satisfying the availability
// conjunction for a listing
func (h *CatalogHandler) AvailableProducts(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	products, err := h.catalog.AvailableProducts(r.Context(), code)
	if err != nil {
		h.logger.Error("Failed to list available products", zap.Error(err), zap.String("listing", code))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list available products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// IsAvailable checks the five-flag availability conjunction for one product
func (h *CatalogHandler) IsAvailable(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	sku := chi.URLParam(r, "sku")

	product, err := h.catalog.Get(r.Context(), sku)
	if err != nil {
		h.logger.Error("Failed to get product", zap.Error(err), zap.String("sku", sku))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to check availability")
		return
	}

	available := false
	if product != nil {
		available, err = h.catalog.IsProductAvailable(r.Context(), product, code)
		if err != nil {
			h.logger.Error("Failed to check availability", zap.Error(err), zap.String("sku", sku))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to check availability")
			return
		}
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"sku":       sku,
		"listing":   code,
		"available": available,
	})
}

// AddComponent creates a validated composition edge
func (h *CatalogHandler) AddComponent(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")

	var req AddComponentRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	qty, err := decimal.NewFromString(req.Qty)
	if err != nil || qty.Sign() <= 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "qty must be a positive decimal")
		return
	}

	edge := &domain.ComponentEdge{
		ParentSKU:    sku,
		ComponentSKU: req.ComponentSKU,
		Qty:          qty,
	}

	if err := h.products.AddComponent(r.Context(), edge); err != nil {
		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		case errors.Is(err, repository.ErrComponentExists):
			middleware.RespondWithError(w, http.StatusConflict, "component edge already exists")
		default:
			h.respondError(w, err, "failed to add component")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, edge)
}

// RemoveComponent deletes a composition edge
func (h *CatalogHandler) RemoveComponent(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	componentSKU := chi.URLParam(r, "componentSku")

	if err := h.products.RemoveComponent(r.Context(), sku, componentSKU); err != nil {
		if errors.Is(err, repository.ErrComponentMissing) {
			middleware.RespondWithError(w, http.StatusNotFound, "component edge not found")
			return
		}
		h.respondError(w, err, "failed to remove component")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetCollection returns a collection with its full display path and children
func (h *CatalogHandler) GetCollection(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	collection, err := h.collections.FindBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, repository.ErrCollectionNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "collection not found")
			return
		}
		h.respondError(w, err, "failed to get collection")
		return
	}

	fullPath, err := h.collections.FullPath(r.Context(), slug)
	if err != nil {
		h.respondError(w, err, "failed to build collection path")
		return
	}

	children, err := h.collections.Children(r.Context(), slug)
	if err != nil {
		h.respondError(w, err, "failed to list child collections")
		return
	}
	if children == nil {
		children = []*domain.Collection{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, CollectionResponse{
		Collection: collection,
		FullPath:   fullPath,
		Valid:      collection.ValidAt(time.Now()),
		Children:   children,
	})
}

// AddMembership places a product in a collection
func (h *CatalogHandler) AddMembership(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	var req AddMembershipRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	membership := &domain.CollectionMembership{
		CollectionSlug: slug,
		ProductSKU:     req.SKU,
		IsPrimary:      req.IsPrimary,
		SortOrder:      req.SortOrder,
	}

	if err := h.collections.AddMembership(r.Context(), membership); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}
		h.respondError(w, err, "failed to add membership")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, membership)
}

// SetPrimary atomically makes a membership the product's primary collection
func (h *CatalogHandler) SetPrimary(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	var req SetPrimaryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.collections.SetPrimary(r.Context(), slug, req.SKU); err != nil {
		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		case errors.Is(err, repository.ErrMembershipNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "membership not found")
		default:
			h.respondError(w, err, "failed to set primary membership")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetParent rewires a collection's parent edge with hierarchy validation
func (h *CatalogHandler) SetParent(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	var req SetParentRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.collections.SetParent(r.Context(), slug, req.ParentSlug); err != nil {
		if errors.Is(err, repository.ErrCollectionNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "collection not found")
			return
		}
		h.respondError(w, err, "failed to set collection parent")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// respondError routes catalog errors to their mapped statuses and logs the
// rest as internal failures.
func (h *CatalogHandler) respondError(w http.ResponseWriter, err error, fallback string) {
	var catalogErr *domain.CatalogError
	if errors.As(err, &catalogErr) {
		middleware.RespondWithCatalogError(w, catalogErr)
		return
	}

	h.logger.Error(fallback, zap.Error(err))
	middleware.RespondWithError(w, http.StatusInternalServerError, fallback)
}

func parseQty(w http.ResponseWriter, r *http.Request) (decimal.Decimal, bool) {
	raw := r.URL.Query().Get("qty")
	if raw == "" {
		return decimal.NewFromInt(1), true
	}

	qty, err := decimal.NewFromString(raw)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "qty must be a decimal number")
		return decimal.Decimal{}, false
	}
	return qty, true
}
