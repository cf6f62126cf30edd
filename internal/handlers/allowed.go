package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/rolebook/internal/authz"
	"github.com/mesh-intelligence/rolebook/internal/service"
	"github.com/mesh-intelligence/rolebook/pkg/types"
)

// AllowedResponse is the body of the entitlement check endpoint.
type AllowedResponse struct {
	UserID      string   `json:"user_id"`
	Entitlement string   `json:"entitlement"`
	Scope       string   `json:"scope"`
	Allowed     bool     `json:"allowed"`
	Roles       []string `json:"roles"`
}

// AllowedHandler answers entitlement checks. The enforcer is rebuilt from
// the store for each request so checks see the latest grants.
type AllowedHandler struct {
	store types.Store
	users *service.Service[types.User]
}

// NewAllowedHandler creates an AllowedHandler.
func NewAllowedHandler(store types.Store, users *service.Service[types.User]) *AllowedHandler {
	return &AllowedHandler{store: store, users: users}
}

// Check handles GET /users/:id/allowed?entitlement=&scope=.
func (h *AllowedHandler) Check(c *gin.Context) {
	userID := c.Param("id")
	if _, err := h.users.GetByID(userID); err != nil {
		abort(c, err)
		return
	}

	scope := c.DefaultQuery("scope", types.ScopeGlobal)
	enforcer, err := authz.Load(h.store)
	if err != nil {
		abort(c, err)
		return
	}
	allowed, err := enforcer.Allowed(userID, c.Query("entitlement"), scope)
	if err != nil {
		abort(c, err)
		return
	}
	roles, err := enforcer.RolesFor(userID)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, AllowedResponse{
		UserID:      userID,
		Entitlement: c.Query("entitlement"),
		Scope:       scope,
		Allowed:     allowed,
		Roles:       roles,
	})
}
