package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/rolebook/internal/log"
	"github.com/mesh-intelligence/rolebook/internal/middleware"
	"github.com/mesh-intelligence/rolebook/internal/service"
	"github.com/mesh-intelligence/rolebook/pkg/types"
)

// NewRouter builds the gin engine serving the rolebook API over store.
func NewRouter(store types.Store) (*gin.Engine, error) {
	users, err := service.NewUsers(store)
	if err != nil {
		return nil, err
	}
	roles, err := service.NewClaimRoleModels(store)
	if err != nil {
		return nil, err
	}
	ents, err := service.NewRoleEntitlements(store)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log.Get()))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, NotFound("route not found"))
	})

	api := r.Group("/api")
	NewEntityHandler(users, "role_id").Register(api.Group("/users"))
	NewEntityHandler(roles).Register(api.Group("/claim-roles"))
	NewEntityHandler(ents, "role_id", "enabled").Register(api.Group("/role-entitlements"))
	api.GET("/users/:id/allowed", NewAllowedHandler(store, users).Check)

	return r, nil
}
