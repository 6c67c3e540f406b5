package config

import (
	"fmt"

	"github.com/tendant/simple-roles/pkg/notification"
	"github.com/tendant/simple-roles/pkg/policy"
)

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host     string `env:"ROLES_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"ROLES_PG_PORT" env-default:"5432"`
	Database string `env:"ROLES_PG_DATABASE" env-default:"roles_db"`
	User     string `env:"ROLES_PG_USER" env-default:"roles"`
	Password string `env:"ROLES_PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"ROLES_PG_SCHEMA" env-default:"public"`
}

// ToDatabaseURL converts the config to a PostgreSQL connection URL.
func (d DatabaseConfig) ToDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s,public",
		d.User, d.Password, d.Host, d.Port, d.Database, d.Schema)
}

// RedisConfig holds the optional listing cache configuration. An empty Addr
// disables caching.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" env-default:""`
	Password string `env:"REDIS_PASSWORD" env-default:""`
	TTL      int    `env:"REDIS_TTL_SECONDS" env-default:"300"`
}

// EmailConfig holds SMTP configuration for membership notices. An empty Host
// disables email.
type EmailConfig struct {
	Host     string `env:"EMAIL_HOST" env-default:""`
	Port     uint16 `env:"EMAIL_PORT" env-default:"1025"`
	Username string `env:"EMAIL_USERNAME" env-default:"noreply@example.com"`
	Password string `env:"EMAIL_PASSWORD" env-default:"pwd"`
	From     string `env:"EMAIL_FROM" env-default:"noreply@example.com"`
	TLS      bool   `env:"EMAIL_TLS" env-default:"false"`
}

// ToSMTPConfig converts the config to a notification.SMTPConfig.
func (e EmailConfig) ToSMTPConfig() notification.SMTPConfig {
	return notification.SMTPConfig{
		Host:     e.Host,
		Port:     int(e.Port),
		Username: e.Username,
		Password: e.Password,
		From:     e.From,
		TLS:      e.TLS,
	}
}

// JWTConfig holds JWT authentication configuration.
type JWTConfig struct {
	Secret string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
}

// TenantConfig identifies the tenant served by this instance and its
// administration anchors.
type TenantConfig struct {
	TenantID              int32  `env:"TENANT_ID" env-default:"1"`
	AdministratorRoleID   int32  `env:"ADMIN_ROLE_ID" env-default:"1"`
	AdministratorUserID   int32  `env:"ADMIN_USER_ID" env-default:"1"`
	AdministratorRoleName string `env:"ADMIN_ROLE_NAME" env-default:"Administrators"`
}

// ToTenant converts the config to the policy engine's tenant value.
func (t TenantConfig) ToTenant() policy.Tenant {
	return policy.Tenant{
		ID:                    t.TenantID,
		AdministratorRoleID:   t.AdministratorRoleID,
		AdministratorUserID:   t.AdministratorUserID,
		AdministratorRoleName: t.AdministratorRoleName,
	}
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Mode string `env:"STORAGE_MODE" env-default:"memory"` // memory or postgres
}
