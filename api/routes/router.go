package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/coursemarket-backend/api/controllers"
	"github.com/angelmondragon/coursemarket-backend/api/middleware"
	"github.com/angelmondragon/coursemarket-backend/internal/auth"
	"github.com/angelmondragon/coursemarket-backend/internal/catalog"
	"github.com/angelmondragon/coursemarket-backend/internal/courses"
	"github.com/angelmondragon/coursemarket-backend/internal/marketplace"
	"github.com/angelmondragon/coursemarket-backend/pkg/config"
	"github.com/angelmondragon/coursemarket-backend/pkg/db"
	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
	"github.com/angelmondragon/coursemarket-backend/pkg/logger"
	"github.com/angelmondragon/coursemarket-backend/pkg/redis"
)

// sequencer is both the submission queue and the receipt store.
type sequencer interface {
	controllers.Submitter
	controllers.TransactionReader
}

// Params carries everything the HTTP surface is built from.
type Params struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       *redis.Client
	Gatherer    prometheus.Gatherer
	Catalog     *catalog.Catalog
	Marketplace marketplace.Service
	Sequencer   sequencer
	Auth        auth.Service
	Courses     courses.Service
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger
	market := cfg.Marketplace

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	noncePolicy := middleware.NewAuthRateLimitPolicy(
		"nonce",
		cfg.Auth.LoginWindow,
		cfg.Auth.LoginIPLimit,
		0,
	)
	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.Auth.LoginWindow,
		cfg.Auth.LoginIPLimit,
		cfg.Auth.LoginAddressLimit,
	)

	nonceLimit, loginLimit := passthrough, passthrough
	var idemStore redis.IdempotencyStore
	if p.Redis != nil {
		nonceLimit = middleware.AuthRateLimit(noncePolicy, p.Redis, logg)
		loginLimit = middleware.AuthRateLimit(loginPolicy, p.Redis, logg)
		idemStore = p.Redis
	}

	deps := map[string]controllers.Pinger{}
	if p.DB != nil {
		deps["database"] = p.DB
	}
	if p.Redis != nil {
		deps["redis"] = p.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})
	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(nonceLimit).Post("/nonce", controllers.AuthNonce(p.Auth, logg))
		r.With(loginLimit).Post("/login", controllers.AuthLogin(p.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// public reads
		r.Get("/catalog", controllers.CatalogList(p.Catalog, logg))
		r.Get("/catalog/{slug}", controllers.CatalogBySlug(p.Catalog, logg))
		r.Get("/contract", controllers.ContractStatus(p.Marketplace, logg))
		r.Get("/courses/hash", controllers.CourseHash(p.Courses, logg))
		r.Get("/courses/index/{index}", controllers.CourseHashAtIndex(p.Marketplace, logg))
		r.Get("/courses/{hash}", controllers.CourseByHash(p.Marketplace, logg))
		r.Get("/transactions/{id}", controllers.TransactionByID(p.Sequencer, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(idemStore, logg))

			r.Get("/me/courses", controllers.MyCourses(p.Courses, logg))
			r.Get("/me/courses/{courseId}", controllers.MyCourse(p.Courses, logg))
			r.Get("/me/transactions", controllers.MyTransactions(p.Sequencer, logg))
			r.Get("/me/balance", controllers.MyBalance(p.Marketplace, logg))

			r.Post("/purchases", controllers.Purchase(p.Catalog, p.Sequencer, market, logg))
			r.Post("/purchases/{hash}/repurchase", controllers.Repurchase(p.Sequencer, market, logg))
			r.Post("/contract/deposit", controllers.ContractDeposit(p.Sequencer, market, logg))

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.WalletRoleAdmin))

				r.Route("/courses", func(r chi.Router) {
					r.Get("/", controllers.AdminCourses(p.Courses, logg))
					r.Get("/search", controllers.AdminSearchCourse(p.Courses, logg))
					r.Post("/{hash}/verify", controllers.AdminVerifyCourse(p.Courses, logg))
					r.Post("/{hash}/activate", controllers.AdminCourseTransition(enums.MethodActivateCourse, p.Sequencer, market, logg))
					r.Post("/{hash}/deactivate", controllers.AdminCourseTransition(enums.MethodDeactivateCourse, p.Sequencer, market, logg))
				})

				r.Route("/contract", func(r chi.Router) {
					r.Post("/withdraw", controllers.AdminWithdraw(p.Sequencer, market, logg))
					r.Post("/pause", controllers.AdminContractCall(enums.MethodPauseContract, p.Sequencer, market, logg))
					r.Post("/unpause", controllers.AdminContractCall(enums.MethodUnpauseContract, p.Sequencer, market, logg))
					r.Post("/emergency-withdraw", controllers.AdminContractCall(enums.MethodEmergencyWithdraw, p.Sequencer, market, logg))
					r.Post("/self-destruct", controllers.AdminContractCall(enums.MethodSelfDestruct, p.Sequencer, market, logg))
					r.Post("/transfer-ownership", controllers.AdminTransferOwnership(p.Sequencer, market, logg))
				})
			})
		})
	})

	if !cfg.App.IsProd() && cfg.FeatureFlags.Faucet {
		r.Route("/api/dev/v1", func(r chi.Router) {
			r.Post("/faucet", controllers.DevFaucet(p.Marketplace, logg))
		})
	}

	return r
}

func passthrough(next http.Handler) http.Handler {
	return next
}
