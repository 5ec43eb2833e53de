package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/univ-erp-api/internal/middleware"
	"github.com/noah-isme/univ-erp-api/internal/models"
)

// Handlers groups every HTTP handler mounted by Register.
type Handlers struct {
	Auth       *AuthHandler
	Admin      *AdminHandler
	Settings   *SettingsHandler
	Student    *StudentHandler
	Instructor *InstructorHandler
	Metrics    *MetricsHandler
}

// Register mounts the operational endpoints at the root and the API under prefix.
func (h Handlers) Register(r *gin.Engine, prefix string, tokens middleware.TokenValidator, logger *zap.Logger) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)
	api.Use(middleware.WithResponseMeta())

	auth := api.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.PUT("/password", middleware.JWT(tokens), h.Auth.ChangePassword)

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))
	secured.GET("/catalog", h.Student.Catalog)

	admin := secured.Group("/admin", middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/users", middleware.Audit(logger, "account.create"), h.Admin.CreateUser)
	admin.GET("/courses", h.Admin.ListCourses)
	admin.POST("/courses", middleware.Audit(logger, "course.create"), h.Admin.CreateCourse)
	admin.PUT("/courses/:id", middleware.Audit(logger, "course.update"), h.Admin.UpdateCourse)
	admin.GET("/courses/:id/sections", h.Admin.ListCourseSections)
	admin.POST("/sections", middleware.Audit(logger, "section.create"), h.Admin.CreateSection)
	admin.PUT("/sections/:id", middleware.Audit(logger, "section.update"), h.Admin.UpdateSection)
	admin.DELETE("/sections/:id", middleware.Audit(logger, "section.delete"), h.Admin.DeleteSection)
	admin.PUT("/sections/:id/instructor", middleware.Audit(logger, "section.assign"), h.Admin.AssignInstructor)
	admin.DELETE("/sections/:id/instructor", middleware.Audit(logger, "section.unassign"), h.Admin.UnassignInstructor)
	admin.GET("/instructors", h.Admin.ListInstructors)
	admin.GET("/metrics", h.Metrics.Summary)
	admin.GET("/settings", h.Settings.Get)
	admin.PUT("/settings/maintenance", middleware.Audit(logger, "settings.maintenance"), h.Settings.SetMaintenance)
	admin.PUT("/settings/registration-deadline", middleware.Audit(logger, "settings.registration_deadline"), h.Settings.SetRegistrationDeadline)
	admin.PUT("/settings/drop-deadline", middleware.Audit(logger, "settings.drop_deadline"), h.Settings.SetDropDeadline)
	admin.PUT("/settings/term", middleware.Audit(logger, "settings.term"), h.Settings.SetTerm)

	student := secured.Group("/student", middleware.RequireRoles(models.RoleStudent))
	student.GET("/registrations", h.Student.Registrations)
	student.POST("/registrations", h.Student.Register)
	student.DELETE("/registrations/:id", h.Student.Drop)
	student.GET("/grades", h.Student.Grades)
	student.GET("/timetable", h.Student.Timetable)
	student.GET("/transcript", h.Student.Transcript)

	instructor := secured.Group("/instructor", middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin))
	instructor.GET("/sections", middleware.RequireRoles(models.RoleInstructor), h.Instructor.Sections)
	instructor.GET("/sections/:id/gradebook", h.Instructor.Gradebook)
	instructor.GET("/sections/:id/statistics", h.Instructor.Statistics)
	instructor.PUT("/scores", h.Instructor.EnterScore)
	instructor.POST("/sections/:id/final-grades", h.Instructor.FinalGrades)
}
