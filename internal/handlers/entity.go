// Package handlers exposes the rolebook services over HTTP with gin.
package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/mesh-intelligence/rolebook/internal/service"
	"github.com/mesh-intelligence/rolebook/pkg/patch"
	"github.com/mesh-intelligence/rolebook/pkg/query"
)

// Paging defaults for list endpoints.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListResponse is the body of a list endpoint.
type ListResponse[T any] struct {
	Items    []*T `json:"items"`
	Total    int  `json:"total"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
}

// CreateResponse is the body returned by a create endpoint.
type CreateResponse struct {
	ID string `json:"id"`
}

// EntityHandler serves the CRUD endpoints of one entity.
type EntityHandler[T any] struct {
	svc *service.Service[T]
	// whereKeys are query parameters forwarded to the store as prefilters.
	whereKeys []string
}

// NewEntityHandler creates an EntityHandler for svc. Query parameters named
// in whereKeys are passed to the store's Fetch filter.
func NewEntityHandler[T any](svc *service.Service[T], whereKeys ...string) *EntityHandler[T] {
	return &EntityHandler[T]{svc: svc, whereKeys: whereKeys}
}

// Register mounts the handler's routes on rg.
func (h *EntityHandler[T]) Register(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.PATCH("/:id", h.Patch)
	rg.DELETE("/:id", h.Delete)
}

// List returns one page of entities.
func (h *EntityHandler[T]) List(c *gin.Context) {
	req, err := h.listRequest(c)
	if err != nil {
		abort(c, err)
		return
	}
	res, err := h.svc.List(req)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse[T]{
		Items:    res.Items,
		Total:    res.Total,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
}

func (h *EntityHandler[T]) listRequest(c *gin.Context) (service.ListRequest, error) {
	page, err := intParam(c, "page", 1)
	if err != nil {
		return service.ListRequest{}, err
	}
	size, err := intParam(c, "page_size", DefaultPageSize)
	if err != nil {
		return service.ListRequest{}, err
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	filters, err := query.ParseCriteria([]byte(c.Query("filters")))
	if err != nil {
		return service.ListRequest{}, err
	}

	req := service.ListRequest{Request: query.Request{
		Filters:   filters,
		Search:    c.Query("search"),
		Page:      page,
		PageSize:  size,
		SortField: c.Query("sort_field"),
		SortOrder: c.Query("sort_order"),
	}}
	for _, key := range h.whereKeys {
		if v, ok := c.GetQuery(key); ok {
			if req.Where == nil {
				req.Where = make(map[string]any)
			}
			req.Where[key] = v
		}
	}
	return req, nil
}

func intParam(c *gin.Context, name string, def int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, BadRequest(fmt.Sprintf("%s must be an integer, got %q", name, raw))
	}
	return n, nil
}

// Get returns one entity.
func (h *EntityHandler[T]) Get(c *gin.Context) {
	rec, err := h.svc.GetByID(c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Create stores the entity in the request body and returns its new id.
func (h *EntityHandler[T]) Create(c *gin.Context) {
	rec, err := decodeBody[T](c)
	if err != nil {
		abort(c, err)
		return
	}
	id, err := h.svc.Create(rec)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreateResponse{ID: id})
}

// Update replaces an entity with the request body.
func (h *EntityHandler[T]) Update(c *gin.Context) {
	rec, err := decodeBody[T](c)
	if err != nil {
		abort(c, err)
		return
	}
	if err := h.svc.Update(c.Param("id"), rec); err != nil {
		abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Patch applies the JSON patch document in the request body.
func (h *EntityHandler[T]) Patch(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abort(c, BadRequest("reading request body"))
		return
	}
	doc, err := patch.Parse(body)
	if err != nil {
		abort(c, err)
		return
	}
	if err := h.svc.Patch(c.Param("id"), doc); err != nil {
		abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete removes an entity.
func (h *EntityHandler[T]) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Param("id")); err != nil {
		abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func decodeBody[T any](c *gin.Context) (*T, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, BadRequest("reading request body")
	}
	var rec T
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, BadRequest(fmt.Sprintf("invalid request body: %v", err))
	}
	return &rec, nil
}
