package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 999, cfg.Cart.ItemCeiling)
	assert.Equal(t, 24*time.Hour, cfg.Cart.TTL)
	assert.Equal(t, 30*time.Minute, cfg.Checkout.SessionTTL)
	assert.Equal(t, 5, cfg.Checkout.OrdersPageSize)
	assert.Equal(t, 10, cfg.Checkout.AdminOrdersPageSize)
	assert.Equal(t, 6, cfg.Catalog.SkipRows)
	assert.Equal(t, "xlsx", cfg.Catalog.Source)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.HTTPAddress())
	assert.Equal(t, "localhost:6379", cfg.Redis.Address())
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("CART_ITEM_CEILING", "10")
	t.Setenv("ADMIN_IDS", "100,200")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("DB_HOST", "mysql")
	t.Setenv("DB_NAME", "shop")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Cart.ItemCeiling)
	assert.Equal(t, []int64{100, 200}, cfg.App.AdminIDs)
	assert.True(t, cfg.App.IsAdmin(200))
	assert.False(t, cfg.App.IsAdmin(300))
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "root:root@tcp(mysql:3306)/shop?parseTime=true&multiStatements=true", cfg.Database.DSN())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"zero ceiling", "CART_ITEM_CEILING", "0"},
		{"unknown store", "STORE_TYPE", "etcd"},
		{"unknown catalog", "CATALOG_SOURCE", "csv"},
		{"zero page size", "ORDERS_PAGE_SIZE", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestCatalogConfig_PostgresDSN(t *testing.T) {
	c := CatalogConfig{User: "u", Password: "p", Host: "h", Port: 5432, Name: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/n?sslmode=disable", c.PostgresDSN())
}
