package cmd

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/vibast-solutions/ms-go-uptask/app/auth"
	"github.com/vibast-solutions/ms-go-uptask/app/controller"
	uptaskgrpc "github.com/vibast-solutions/ms-go-uptask/app/grpc"
	"github.com/vibast-solutions/ms-go-uptask/app/mailer"
	"github.com/vibast-solutions/ms-go-uptask/app/middleware"
	"github.com/vibast-solutions/ms-go-uptask/app/repository"
	"github.com/vibast-solutions/ms-go-uptask/app/service"
	"github.com/vibast-solutions/ms-go-uptask/config"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  `Start the UpTask HTTP API (Echo) and the internal gRPC session service.`,
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

type services struct {
	userAuth     service.UserAuthService
	projects     service.ProjectService
	tasks        service.TaskService
	team         service.TeamService
	notes        service.NoteService
	internalAuth service.InternalAuthService
}

func buildServices(cfg *config.Config, db *sql.DB, rdb redis.UniversalClient, sender mailer.Sender) *services {
	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	noteRepo := repository.NewNoteRepository(db)
	tokenRepo := repository.NewTokenRepository(rdb, cfg.Redis.KeyPrefix, cfg.Tokens.TTL)

	tokens := service.NewTokenIssuer(tokenRepo, sender)
	sessions := service.NewSessionIssuer(cfg.JWT.Secret)

	return &services{
		userAuth:     service.NewUserAuthService(db, userRepo, tokens, sessions, cfg),
		projects:     service.NewProjectService(db, projectRepo, taskRepo),
		tasks:        service.NewTaskService(db, taskRepo, noteRepo),
		team:         service.NewTeamService(userRepo, projectRepo),
		notes:        service.NewNoteService(noteRepo),
		internalAuth: service.NewInternalAuthService(repository.NewInternalAPIKeyRepository(db)),
	}
}

func runServe(_ *cobra.Command, _ []string) {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	rdb, err := openRedis(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to redis")
	}
	defer rdb.Close()

	sender, closer, err := requestSender(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to configure mail sender")
	}
	if closer != nil {
		defer closer.Close()
	}
	logrus.WithField("driver", cfg.Mail.Driver).Info("Mail sender configured")

	svc := buildServices(cfg, db, rdb, sender)

	grpcServer, err := startGRPCServer(cfg, svc)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to start gRPC server")
	}

	e := newHTTPServer(cfg, rdb, svc)
	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("HTTP shutdown failed")
	}
	grpcServer.GracefulStop()
}

func newHTTPServer(cfg *config.Config, rdb redis.UniversalClient, svc *services) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.IPExtractor = ipExtractor(cfg.App.TrustedProxies)

	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"request_id": v.RequestID,
				"remote_ip":  v.RemoteIP,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			if identity, ok := auth.IdentityFrom(c.Request().Context()); ok {
				fields["user_id"] = identity.UserID
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     []string{cfg.App.FrontendURL},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderXCSRFToken},
		AllowCredentials: true,
	}))

	registerRoutes(e, cfg, rdb, svc)
	return e
}

func registerRoutes(e *echo.Echo, cfg *config.Config, rdb redis.UniversalClient, svc *services) {
	production := cfg.App.IsProduction()

	authController := controller.NewUserAuthController(svc.userAuth, cfg.Cookie, production)
	projectController := controller.NewProjectController(svc.projects)
	taskController := controller.NewTaskController(svc.tasks)
	teamController := controller.NewTeamController(svc.team)
	noteController := controller.NewNoteController(svc.notes)
	internalController := controller.NewInternalAuthController(svc.userAuth)

	authMiddleware := middleware.NewAuthMiddleware(svc.userAuth, cfg.Cookie.Name)
	projectMiddleware := middleware.NewProjectMiddleware(svc.projects, svc.tasks)
	rateLimiter := middleware.NewRateLimiter(rdb, cfg.RateLimit, cfg.Redis.KeyPrefix)
	apiKeyMiddleware := middleware.NewAPIKeyMiddleware(svc.internalAuth, service.SessionAccess)

	api := e.Group("/api")

	public := api.Group("/auth", rateLimiter.Limit)
	public.POST("/create-account", authController.Register)
	public.POST("/confirm-account", authController.ConfirmAccount)
	public.POST("/login", authController.Login)
	public.POST("/request-code", authController.RequestConfirmationCode)
	public.POST("/forgot-password", authController.ForgotPassword)
	public.POST("/validate-token", authController.ValidateToken)
	public.POST("/update-password/:token", authController.ResetPassword)

	protected := []echo.MiddlewareFunc{authMiddleware.RequireAuth}
	if cfg.App.CSRFEnabled {
		protected = append(protected, csrfMiddleware(cfg.Cookie, production))
	}

	account := api.Group("/auth", protected...)
	account.POST("/logout", authController.Logout)
	account.GET("/user", authController.CurrentUser)
	account.PATCH("/profile", authController.UpdateProfile)
	account.PATCH("/update-password", authController.ChangePassword)
	account.POST("/check-password", authController.CheckPassword)

	projects := api.Group("/projects", protected...)
	projects.POST("", projectController.Create)
	projects.GET("", projectController.List)

	member := projectMiddleware.RequireMember
	manager := projectMiddleware.RequireManager
	resolveTask := projectMiddleware.ResolveTask

	project := projects.Group("/:projectId", projectMiddleware.ResolveProject)
	project.GET("", projectController.Get, member)
	project.PUT("", projectController.Update, manager)
	project.DELETE("", projectController.Delete, manager)

	project.POST("/tasks", taskController.Create, manager)
	project.GET("/tasks", taskController.List, member)
	project.GET("/tasks/:taskId", taskController.Get, member, resolveTask)
	project.PUT("/tasks/:taskId", taskController.Update, manager, resolveTask)
	project.DELETE("/tasks/:taskId", taskController.Delete, manager, resolveTask)
	project.PATCH("/tasks/:taskId/status", taskController.UpdateStatus, member, resolveTask)

	project.POST("/team/find", teamController.FindMember, manager)
	project.GET("/team", teamController.List, member)
	project.POST("/team", teamController.Add, manager)
	project.DELETE("/team/:userId", teamController.Remove, manager)

	project.POST("/tasks/:taskId/notes", noteController.Create, member, resolveTask)
	project.GET("/tasks/:taskId/notes", noteController.List, member, resolveTask)
	project.DELETE("/tasks/:taskId/notes/:noteId", noteController.Delete, member, resolveTask)

	internal := e.Group("/internal", apiKeyMiddleware.RequireAPIKey)
	internal.POST("/sessions/verify", internalController.VerifySession)
}

// ipExtractor decides which address the rate limiter and request log see.
// Forwarding headers are only honoured when they come from a configured proxy.
func ipExtractor(trusted []*net.IPNet) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}

	options := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, ipNet := range trusted {
		options = append(options, echo.TrustIPRange(ipNet))
	}
	return echo.ExtractIPFromXFFHeader(options...)
}

// csrfMiddleware implements the double-submit cookie check for authenticated
// requests. The frontend echoes the readable _csrf cookie in X-CSRF-Token.
func csrfMiddleware(cookie config.CookieConfig, production bool) echo.MiddlewareFunc {
	sameSite := http.SameSiteLaxMode
	if production {
		sameSite = http.SameSiteNoneMode
	}
	return echomiddleware.CSRFWithConfig(echomiddleware.CSRFConfig{
		TokenLookup:    "header:" + echo.HeaderXCSRFToken,
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieDomain:   cookie.Domain,
		CookieSecure:   production,
		CookieSameSite: sameSite,
		ErrorHandler: func(err error, c echo.Context) error {
			logrus.WithError(err).WithField("uri", c.Request().RequestURI).Warn("CSRF check failed")
			return c.JSON(http.StatusForbidden, map[string]string{"error": "invalid csrf token"})
		},
	})
}

func startGRPCServer(cfg *config.Config, svc *services) (*grpc.Server, error) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return nil, err
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(uptaskgrpc.APIKeyUnaryInterceptor(svc.internalAuth, service.SessionAccess)),
		grpc.StreamInterceptor(uptaskgrpc.APIKeyStreamInterceptor(svc.internalAuth, service.SessionAccess)),
	)
	uptaskgrpc.RegisterSessionServer(grpcServer, uptaskgrpc.NewSessionServer(svc.userAuth))

	go func() {
		logrus.WithField("addr", grpcAddr).Info("Starting gRPC server")
		if err := grpcServer.Serve(lis); err != nil {
			logrus.WithError(err).Error("gRPC server stopped")
		}
	}()
	return grpcServer, nil
}
