package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mission-gateway/internal/middleware"
	"github.com/noah-isme/mission-gateway/internal/models"
)

// Handlers groups the HTTP handlers mounted under the API prefix.
type Handlers struct {
	Sessions       *SessionHandler
	Missions       *MissionHandler
	StudentMission *StudentMissionHandler
	Conversations  *ConversationHandler
	Dashboard      *DashboardHandler
	Journal        *JournalHandler
	Directory      *DirectoryHandler
}

// RegisterRoutes mounts the gateway API. auth must resolve the caller's session.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, auth gin.HandlerFunc) {
	api.POST("/sessions", h.Sessions.Login)

	secured := api.Group("")
	secured.Use(auth)
	secured.GET("/sessions/me", h.Sessions.Me)
	secured.DELETE("/sessions", h.Sessions.Logout)

	staff := middleware.RequireStaff()
	missions := secured.Group("/missions")
	missions.GET("", middleware.RequireRoles(models.RoleTeacher, models.RoleInstitution, models.RoleStudent), h.Missions.List)
	missions.GET("/management", staff, h.Missions.Management)
	missions.GET("/export", staff, h.Missions.Export)
	missions.GET("/:id/actions", h.Missions.Actions)
	missions.PUT("/:id", staff, h.Missions.Edit)
	missions.POST("/:id/approve", staff, h.Missions.Approve)
	missions.PUT("/:id/status", staff, h.Missions.Transition)
	missions.DELETE("/:id", staff, h.Missions.Discard)
	missions.GET("/:id/assignments", staff, h.Missions.Assignments)
	missions.POST("/:id/enrollments", staff, h.Missions.Enroll)
	secured.GET("/students", staff, h.Missions.Students)
	secured.GET("/teachers", staff, h.Directory.Teachers)
	secured.GET("/academic-structure", staff, h.Directory.AcademicStructure)

	admin := secured.Group("/admin", middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/institutions", h.Directory.Institutions)
	admin.GET("/users", h.Directory.Users)

	student := middleware.RequireRoles(models.RoleStudent)
	secured.GET("/student/missions", student, h.StudentMission.Board)
	secured.POST("/student/missions/:id/enroll", student, h.StudentMission.Enroll)
	secured.PUT("/assignments/:id/evidence", student, h.StudentMission.SubmitEvidence)

	conversations := secured.Group("/conversations")
	conversations.GET("", h.Conversations.List)
	conversations.POST("", h.Conversations.Create)
	conversations.GET("/active", h.Conversations.Active)
	conversations.PUT("/active", h.Conversations.Activate)
	conversations.PUT("/:id", h.Conversations.Rename)
	conversations.DELETE("/:id", h.Conversations.Delete)
	conversations.GET("/:id/messages", h.Conversations.History)
	conversations.POST("/:id/messages", h.Conversations.Send)

	secured.GET("/dashboard", middleware.WithResponseMeta(), h.Dashboard.Get)
	secured.GET("/journal", middleware.RequireRoles(models.RoleTeacher, models.RoleInstitution, models.RoleAdmin), h.Journal.List)
}
