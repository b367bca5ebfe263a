package bootstrap

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	httpapi "github.com/sitecraft-ai/sitecraft-backend/internal/api/http"
	apimw "github.com/sitecraft-ai/sitecraft-backend/internal/api/http/middleware"
	"github.com/sitecraft-ai/sitecraft-backend/internal/attachments"
	"github.com/sitecraft-ai/sitecraft-backend/internal/auth"
	authmw "github.com/sitecraft-ai/sitecraft-backend/internal/auth/middleware"
	enthttp "github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/http"
	galleryhttp "github.com/sitecraft-ai/sitecraft-backend/internal/gallery/http"
	genhttp "github.com/sitecraft-ai/sitecraft-backend/internal/generation/http"
	wshttp "github.com/sitecraft-ai/sitecraft-backend/internal/workspace/http"
)

type RouterDeps struct {
	ServiceName    string
	Version        string
	AllowedOrigins []string
	DB             *pgxpool.Pool
	Redis          *redis.Client

	// Verifier checks Firebase ID tokens. Nil trusts X-User-Id (local
	// development only).
	Verifier authmw.TokenVerifier

	Session     *enthttp.Handler
	Workspace   *wshttp.Handler
	Generation  *genhttp.Handler
	Gallery     *galleryhttp.Handler
	Attachments *attachments.Handler
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(apimw.RequestIDMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     dep.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB, dep.Redis)
	healthHandler.RegisterRoutes(r)

	api := r.Group("/api/v1")
	if dep.Verifier != nil {
		api.Use(authmw.FirebaseAuthMiddleware(dep.Verifier))
	} else {
		api.Use(auth.DevUser())
	}

	if dep.Session != nil {
		dep.Session.Register(api)
	}
	if dep.Workspace != nil {
		dep.Workspace.Register(api)
	}
	if dep.Generation != nil {
		dep.Generation.Register(api)
	}
	if dep.Gallery != nil {
		dep.Gallery.Register(api)
	}
	if dep.Attachments != nil {
		dep.Attachments.Register(api)
	}

	return r
}
