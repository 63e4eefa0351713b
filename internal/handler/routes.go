package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scholchat/scholchat-api/internal/middleware"
	"github.com/scholchat/scholchat-api/internal/models"
)

// Routes groups what RegisterRoutes mounts.
type Routes struct {
	APIPrefix        string
	Tokens           middleware.TokenValidator
	ScheduledCourses *ScheduledCourseHandler
	Metrics          *MetricsHandler
	ExportsEnabled   bool
}

// RegisterRoutes mounts the probes at the root and the lifecycle API under the prefix.
func RegisterRoutes(r gin.IRouter, routes Routes) {
	if routes.Metrics != nil {
		r.GET("/health", routes.Metrics.Health)
		r.GET("/ready", routes.Metrics.Ready)
		r.GET("/metrics", routes.Metrics.Prometheus)
	}

	prefix := "/" + strings.Trim(routes.APIPrefix, "/")
	if prefix == "/" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix, middleware.JWT(routes.Tokens), middleware.Actor(), middleware.WithResponseMeta())

	managers := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin, models.RoleProfessor)
	h := routes.ScheduledCourses

	courses := api.Group("/scheduled-courses")
	courses.POST("", managers, h.Schedule)
	courses.GET("", h.List)
	if routes.ExportsEnabled {
		courses.GET("/export", managers, h.Export)
	}
	courses.GET("/:id", h.Get)
	courses.PATCH("/:id", managers, h.Reschedule)
	courses.POST("/:id/start", managers, h.Start)
	courses.POST("/:id/complete", managers, h.Complete)
	courses.POST("/:id/cancel", managers, h.Cancel)
	courses.GET("/:id/participants", h.Participants)

	api.GET("/classes/:classId/roster", managers, h.Roster)
}
