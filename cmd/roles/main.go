package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-roles/pkg/cache"
	"github.com/tendant/simple-roles/pkg/client"
	"github.com/tendant/simple-roles/pkg/config"
	"github.com/tendant/simple-roles/pkg/notification"
	"github.com/tendant/simple-roles/pkg/policy"
	"github.com/tendant/simple-roles/pkg/role"
	roleapi "github.com/tendant/simple-roles/pkg/role/api"
	"github.com/tendant/simple-roles/pkg/user"
)

type Config struct {
	AppConfig     app.AppConfig
	DbConfig      config.DatabaseConfig
	RedisConfig   config.RedisConfig
	EmailConfig   config.EmailConfig
	JwtConfig     config.JWTConfig
	TenantConfig  config.TenantConfig
	StorageConfig config.StorageConfig
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := Config{}
	cleanenv.ReadEnv(&cfg)

	server := app.Default()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	tenant := cfg.TenantConfig.ToTenant()
	engine := policy.NewEngine(tenant)

	repo, users := buildStorage(cfg, tenant)

	var opts []role.RoleServiceOption
	if cfg.RedisConfig.Addr != "" {
		redisClient, err := cache.New(context.Background(), cfg.RedisConfig.Addr, cfg.RedisConfig.Password)
		if err != nil {
			slog.Error("Failed connecting to redis", "addr", cfg.RedisConfig.Addr, "err", err)
			os.Exit(-1)
		}
		ttl := time.Duration(cfg.RedisConfig.TTL) * time.Second
		opts = append(opts, role.WithCache(cache.NewRolesCache(redisClient, ttl)))
		slog.Info("Listing cache enabled", "addr", cfg.RedisConfig.Addr, "ttl", ttl)
	}
	if cfg.EmailConfig.Host != "" {
		notifier, err := notification.NewEmailNotifier(cfg.EmailConfig.ToSMTPConfig())
		if err != nil {
			slog.Error("Failed creating email notifier", "host", cfg.EmailConfig.Host, "err", err)
			os.Exit(-1)
		}
		opts = append(opts, role.WithNotifier(notifier))
		slog.Info("Membership notices enabled", "host", cfg.EmailConfig.Host)
	}

	roleService := role.NewRoleService(repo, users, engine, opts...)
	roleHandle := roleapi.NewHandle(roleService)

	tokenAuth := jwtauth.New("HS256", []byte(cfg.JwtConfig.Secret), nil)
	server.R.Group(func(r chi.Router) {
		r.Use(client.Verifier(tokenAuth))
		r.Use(jwtauth.Authenticator(tokenAuth))
		r.Use(client.AuthUserMiddleware)
		roleapi.Routes(r, roleHandle)
	})

	slog.Info("Role administration service ready",
		"tenantId", tenant.ID,
		"storage", cfg.StorageConfig.Mode)

	server.Run()
}

// buildStorage wires the persistence backend the instance runs on. Memory
// mode is self-contained and seeds the tenant's administration anchors so
// the API is usable immediately.
func buildStorage(cfg Config, tenant policy.Tenant) (role.RoleRepository, user.Directory) {
	switch cfg.StorageConfig.Mode {
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.DbConfig.ToDatabaseURL())
		if err != nil {
			slog.Error("Failed creating dbpool",
				"db", cfg.DbConfig.Database, "host", cfg.DbConfig.Host,
				"port", cfg.DbConfig.Port, "user", cfg.DbConfig.User, "err", err)
			os.Exit(-1)
		}
		return role.NewPostgresRoleRepository(pool), user.NewPostgresDirectory(pool)
	case "memory":
		repo := role.NewInMemoryRoleRepository()
		users := user.NewInMemoryDirectory()
		seedMemoryStorage(repo, users, tenant)
		return repo, users
	default:
		slog.Error("Unknown storage mode", "mode", cfg.StorageConfig.Mode)
		os.Exit(-1)
		return nil, nil
	}
}

func seedMemoryStorage(repo *role.InMemoryRoleRepository, users *user.InMemoryDirectory, tenant policy.Tenant) {
	repo.SeedRole(tenant.ID, policy.Role{
		ID:         tenant.AdministratorRoleID,
		Name:       tenant.AdministratorRoleName,
		SystemRole: true,
		GroupID:    policy.UnsetID,
		Status:     policy.RoleStatusApproved,
	})
	repo.SeedRole(tenant.ID, policy.Role{
		ID:         tenant.AdministratorRoleID + 1,
		Name:       "Registered Users",
		SystemRole: true,
		GroupID:    policy.UnsetID,
		Status:     policy.RoleStatusApproved,
	})
	users.SeedUser(tenant.ID, user.User{
		ID:          tenant.AdministratorUserID,
		Username:    "admin",
		DisplayName: "Administrator",
		Email:       "admin@example.com",
		Roles:       []string{tenant.AdministratorRoleName},
	})
	repo.SeedMembership(tenant.ID, policy.Membership{
		UserID:      tenant.AdministratorUserID,
		RoleID:      tenant.AdministratorRoleID,
		DisplayName: "Administrator",
		Status:      policy.RoleStatusApproved,
	})
	slog.Info("Seeded in-memory storage",
		"adminRole", tenant.AdministratorRoleName,
		"adminUserId", tenant.AdministratorUserID)
}
