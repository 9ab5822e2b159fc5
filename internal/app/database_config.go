package app

import (
	"strings"

	"github.com/charlesng35/accountd/internal/database"
	"github.com/charlesng35/accountd/internal/identity"
	"github.com/charlesng35/accountd/internal/store"
)

// DriverMongo selects the document store instead of GORM.
const DriverMongo = "mongo"

// UsesMongo reports whether users live in MongoDB.
func (c DatabaseConfig) UsesMongo() bool {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	return driver == DriverMongo || driver == "mongodb"
}

// GormConfig converts DatabaseConfig into database.Open parameters.
func (c DatabaseConfig) GormConfig() database.Config {
	cfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:   c.Path,
		DSN:    c.DSN,
	}

	var host DBAuthConfig
	switch cfg.Driver {
	case "postgres", "postgresql":
		host = c.Postgres
	case "mysql":
		host = c.MySQL
	default:
		return cfg
	}

	cfg.Host = host.Host
	cfg.Port = host.Port
	cfg.Name = host.Database
	cfg.User = host.Username
	cfg.Password = host.Password
	return cfg
}

// MongoStoreConfig converts DatabaseConfig into store.OpenMongo parameters.
func (c DatabaseConfig) MongoStoreConfig() store.MongoConfig {
	uri := c.Mongo.URI
	if strings.TrimSpace(uri) == "" {
		uri = c.DSN
	}
	return store.MongoConfig{
		URI:        uri,
		Database:   c.Mongo.Database,
		Collection: c.Mongo.Collection,
		Timeout:    c.Mongo.Timeout,
	}
}

// PaystackConfig converts IdentityConfig into resolver parameters.
func (c IdentityConfig) PaystackConfig() identity.PaystackConfig {
	return identity.PaystackConfig{
		BaseURL:        c.BaseURL,
		APIKey:         c.APIKey,
		Timeout:        c.Timeout,
		MaxRetries:     c.MaxRetries,
		RetryBaseDelay: c.RetryBaseDelay,
	}
}
