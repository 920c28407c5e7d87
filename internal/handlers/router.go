package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smartpresence/attendance-service/internal/metrics"
	"github.com/smartpresence/attendance-service/internal/models"
	"github.com/smartpresence/attendance-service/internal/services"
	"github.com/smartpresence/attendance-service/internal/utils"
)

type HandlerManager struct {
	authHandler       *AuthHandler
	userHandler       *UserHandler
	locationHandler   *LocationHandler
	subjectHandler    *SubjectHandler
	faceHandler       *FaceHandler
	gpsHandler        *GPSHandler
	attendanceHandler *AttendanceHandler
	dashboardHandler  *DashboardHandler
	authMiddleware    *JWTAuthMiddleware

	health  func(ctx context.Context) error
	metrics *metrics.Metrics
}

func NewHandlerManager(serviceManager services.ServiceManager, logger utils.Logger, m *metrics.Metrics) *HandlerManager {
	return &HandlerManager{
		authHandler:       NewAuthHandler(serviceManager.Auth(), logger),
		userHandler:       NewUserHandler(serviceManager.User(), logger),
		locationHandler:   NewLocationHandler(serviceManager.Location(), logger),
		subjectHandler:    NewSubjectHandler(serviceManager.Subject(), logger),
		faceHandler:       NewFaceHandler(serviceManager.Face(), logger),
		gpsHandler:        NewGPSHandler(serviceManager.GPS(), logger),
		attendanceHandler: NewAttendanceHandler(serviceManager.CheckIn(), serviceManager.Attendance(), logger),
		dashboardHandler:  NewDashboardHandler(serviceManager.Dashboard(), logger),
		authMiddleware:    NewJWTAuthMiddleware(serviceManager.Auth()),
		health:            serviceManager.HealthCheck,
		metrics:           m,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	requireStudent := hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent)
	requireStaff := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher)
	requireAdmin := hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin)

	api := router.Group("/api")

	// Public auth routes
	auth := api.Group("/auth")
	{
		auth.POST("/login", hm.authHandler.Login)
		auth.POST("/sso", hm.authHandler.LoginWithSSO)
	}

	v1 := api.Group("")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		v1.GET("/auth/me", hm.authHandler.Me)
		v1.POST("/auth/change-password", hm.authHandler.ChangePassword)

		// Face routes
		face := v1.Group("/face")
		{
			face.POST("/register", hm.faceHandler.Register)
			face.POST("/recognize", hm.faceHandler.Recognize)
			face.POST("/identify", requireAdmin, hm.faceHandler.Identify)
			face.DELETE("/:user_id", requireAdmin, hm.faceHandler.Delete)
		}

		v1.POST("/gps/validate-location", hm.gpsHandler.ValidateLocation)

		// Attendance routes
		attendance := v1.Group("/attendance")
		{
			// Students
			attendance.POST("/check-in", requireStudent, hm.attendanceHandler.CheckIn)
			attendance.GET("/status/:subject_id", requireStudent, hm.attendanceHandler.Status)
			attendance.GET("/me", requireStudent, hm.attendanceHandler.MyAttendance)

			// Teachers and Admins
			attendance.GET("", requireStaff, hm.attendanceHandler.ListAttendance)
			attendance.GET("/export", requireStaff, hm.attendanceHandler.ExportAttendance)
			attendance.GET("/:id", requireStaff, hm.attendanceHandler.GetAttendance)
			attendance.POST("", requireStaff, hm.attendanceHandler.CreateAttendance)
			attendance.PUT("/:id", requireStaff, hm.attendanceHandler.UpdateAttendance)
			attendance.DELETE("/:id", requireAdmin, hm.attendanceHandler.DeleteAttendance)
		}

		// Subject routes
		subjects := v1.Group("/subjects")
		{
			subjects.GET("", hm.subjectHandler.ListSubjects)
			subjects.GET("/me", requireStudent, hm.subjectHandler.MySubjects)
			subjects.GET("/:id", hm.subjectHandler.GetSubject)
			subjects.GET("/:id/students", requireStaff, hm.subjectHandler.ListStudents)

			subjects.POST("", requireAdmin, hm.subjectHandler.CreateSubject)
			subjects.PUT("/:id", requireAdmin, hm.subjectHandler.UpdateSubject)
			subjects.DELETE("/:id", requireAdmin, hm.subjectHandler.DeleteSubject)
			subjects.POST("/:id/students", requireAdmin, hm.subjectHandler.EnrollStudents)
			subjects.DELETE("/:id/students/:student_id", requireAdmin, hm.subjectHandler.UnenrollStudent)
		}

		// Location routes
		locations := v1.Group("/locations")
		{
			locations.GET("", hm.locationHandler.ListLocations)
			locations.GET("/:id", hm.locationHandler.GetLocation)
			locations.POST("", requireAdmin, hm.locationHandler.CreateLocation)
			locations.PUT("/:id", requireAdmin, hm.locationHandler.UpdateLocation)
			locations.DELETE("/:id", requireAdmin, hm.locationHandler.DeleteLocation)
		}

		// User routes - Admins only
		users := v1.Group("/users")
		users.Use(requireAdmin)
		{
			users.GET("", hm.userHandler.ListUsers)
			users.POST("", hm.userHandler.CreateUser)
			users.GET("/:id", hm.userHandler.GetUser)
			users.PUT("/:id", hm.userHandler.UpdateUser)
			users.DELETE("/:id", hm.userHandler.DeactivateUser)
			users.POST("/:id/reset-password", hm.userHandler.ResetPassword)
		}

		// Dashboard routes - Teachers and Admins only
		dashboard := v1.Group("/dashboard")
		dashboard.Use(requireStaff)
		{
			dashboard.GET("/stats", hm.dashboardHandler.GetDashboardStats)
			dashboard.GET("/subjects", hm.dashboardHandler.GetSubjectStats)
			dashboard.GET("/recent", hm.dashboardHandler.GetRecentCheckIns)
		}
	}

	router.GET("/health", hm.healthCheck)
	if hm.metrics != nil {
		router.GET("/metrics", gin.WrapH(hm.metrics.Handler()))
	}
}

func (hm *HandlerManager) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := hm.health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"service": "attendance-service",
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "attendance-service",
	})
}
