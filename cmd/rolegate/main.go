package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/rolegate/rolegate/pkg/client"
	"github.com/rolegate/rolegate/pkg/config"
	"github.com/rolegate/rolegate/pkg/iam"
	"github.com/rolegate/rolegate/pkg/login"
	"github.com/rolegate/rolegate/pkg/rbac"
	"github.com/rolegate/rolegate/pkg/tokengenerator"
)

func main() {
	logHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(logHandler))

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found", "err", err)
	}

	cfg := config.Config{}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed reading config from env", "err", err)
		os.Exit(-1)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.ToDatabaseURL())
	if err != nil {
		slog.Error("Failed creating dbpool", "db", cfg.Database.Database, "host", cfg.Database.Host, "err", err)
		os.Exit(-1)
	}
	defer pool.Close()

	var blacklist tokengenerator.TokenBlacklist = tokengenerator.NoopTokenBlacklist{}
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Error("Failed connecting to redis", "addr", cfg.Redis.Addr, "err", err)
			os.Exit(-1)
		}
		blacklist = tokengenerator.NewRedisTokenBlacklist(redisClient, "")
		slog.Info("Refresh token blacklist enabled", "addr", cfg.Redis.Addr)
	} else {
		slog.Warn("No redis configured, logout falls back to client-side token discard")
	}

	generator := tokengenerator.NewJwtTokenGenerator(cfg.Jwt.Secret, cfg.Jwt.Issuer, cfg.Jwt.Audience)
	jwtService := tokengenerator.NewJwtService(generator,
		tokengenerator.WithAccessTokenExpiry(cfg.Jwt.AccessTokenExpiry),
		tokengenerator.WithRefreshTokenExpiry(cfg.Jwt.RefreshTokenExpiry),
	)
	tokenAuth := jwtauth.New("HS256", []byte(cfg.Jwt.Secret), nil)

	userRepo := login.NewPostgresUserRepository(pool)
	rbacRepo := rbac.NewPostgresRbacRepository(pool)

	rbacService := rbac.NewRbacService(rbacRepo)
	loginService := login.NewLoginService(userRepo, rbacService, jwtService)
	iamService := iam.NewIamService(userRepo, rbacService)

	if cfg.SeedDefaults {
		if err := rbacService.EnsureDefaults(ctx); err != nil {
			slog.Error("Failed seeding default roles", "err", err)
			os.Exit(-1)
		}
	}

	loginHandle := login.NewHandle(loginService, jwtService, blacklist)
	iamHandle := iam.NewHandle(iamService)
	rbacHandle := rbac.NewHandle(rbacService)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Mount("/auth", loginHandle.Routes(tokenAuth))

	r.Route("/idm", func(r chi.Router) {
		r.Use(jwtauth.Verifier(tokenAuth))
		r.Use(client.AuthUserMiddleware)
		r.Use(client.RequireRole(rbac.RoleAdmin))

		r.Mount("/users", iamHandle.Routes())
		r.Mount("/roles", rbacHandle.RoleRoutes())
		r.Mount("/permissions", rbacHandle.PermissionRoutes())
		r.Mount("/user-roles", rbacHandle.UserRoleRoutes())
	})

	slog.Info("Starting rolegate", "addr", cfg.Server.Addr())
	if err := http.ListenAndServe(cfg.Server.Addr(), r); err != nil {
		slog.Error("Server stopped", "err", err)
		os.Exit(-1)
	}
}
