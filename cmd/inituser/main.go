// Command inituser bootstraps a user with a role, typically the first ADMIN
// account after the schema is migrated.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/rolegate/rolegate/pkg/config"
	"github.com/rolegate/rolegate/pkg/iam"
	"github.com/rolegate/rolegate/pkg/login"
	"github.com/rolegate/rolegate/pkg/rbac"
)

func main() {
	username := flag.String("username", "", "Username for the new user (required)")
	password := flag.String("password", "", "Password for the new user (required)")
	email := flag.String("email", "", "Email for the new user (required)")
	roleName := flag.String("role", rbac.RoleAdmin, "Role to assign to the user")
	flag.Parse()

	if *username == "" || *password == "" || *email == "" {
		fmt.Println("Error: username, password, and email are required")
		flag.Usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found", "err", err)
	}

	cfg := config.Config{}
	cleanenv.ReadEnv(&cfg)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.ToDatabaseURL())
	if err != nil {
		slog.Error("Failed creating dbpool", "db", cfg.Database.Database, "host", cfg.Database.Host, "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	userRepo := login.NewPostgresUserRepository(pool)
	rbacService := rbac.NewRbacService(rbac.NewPostgresRbacRepository(pool))
	iamService := iam.NewIamService(userRepo, rbacService)

	if err := rbacService.EnsureDefaults(ctx); err != nil {
		slog.Error("Failed seeding default roles", "err", err)
		os.Exit(1)
	}

	role, err := findRoleByName(ctx, rbacService, *roleName)
	if err != nil {
		slog.Error("Failed resolving role", "role", *roleName, "err", err)
		os.Exit(1)
	}

	user, err := iamService.CreateUser(ctx, iam.CreateUserParams{
		Username: *username,
		Email:    *email,
		Password: *password,
		IsActive: true,
		RoleIDs:  []int64{role.ID},
	}, nil)
	if err != nil {
		if errors.Is(err, login.ErrUsernameTaken) || errors.Is(err, login.ErrEmailTaken) {
			slog.Error("User already exists", "username", *username, "email", *email)
			os.Exit(1)
		}
		slog.Error("Failed creating user", "username", *username, "err", err)
		os.Exit(1)
	}

	slog.Info("User created", "userId", user.User.ID, "username", user.User.Username, "roles", user.Roles)
}

func findRoleByName(ctx context.Context, rbacService *rbac.RbacService, name string) (rbac.Role, error) {
	roles, err := rbacService.FindRoles(ctx, false)
	if err != nil {
		return rbac.Role{}, err
	}
	for _, role := range roles {
		if role.Name == name {
			return role, nil
		}
	}
	return rbac.Role{}, rbac.ErrRoleNotFound
}
