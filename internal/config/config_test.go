package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/card-hold/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{
		"STRIPE_SECRET_KEY":      "sk_test_123",
		"STRIPE_PUBLISHABLE_KEY": "pk_test_123",
		"STRIPE_WEBHOOK_SECRET":  "whsec_123",
		"STRIPE_PUBLIC_KEY":      "",
		"ORDER_ITEM_PRICES":      "",
		"ORDER_DEFAULT_ITEM":     "",
		"PORT":                   "",
		"GATEWAY_TIMEOUT":        "",
		"WEBHOOK_CAPTURE_AMOUNT": "",
		"FULFILLMENT_RETENTION":  "",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(baseEnv())
	require.NoError(t, err)
	require.Equal(t, ":4242", cfg.HTTPAddr())
	require.Equal(t, int64(1400), cfg.OrderItemPrices["photo-subscription"])
	require.Equal(t, "photo-subscription", cfg.OrderDefaultItem)
	require.Equal(t, "usd", cfg.OrderDefaultCurrency)
	require.Equal(t, 30*time.Second, cfg.GatewayTimeout)
	require.Equal(t, int64(64<<10), cfg.WebhookMaxBodyBytes)
	require.Zero(t, cfg.WebhookCaptureAmount)
	require.Equal(t, 7*24*time.Hour, cfg.FulfillmentRetention)
}

func TestLoadRequiresStripeKeys(t *testing.T) {
	for _, key := range []string{"STRIPE_SECRET_KEY", "STRIPE_PUBLISHABLE_KEY", "STRIPE_WEBHOOK_SECRET"} {
		t.Run(key, func(t *testing.T) {
			env := baseEnv()
			env[key] = ""
			_, err := config.LoadForTests(env)
			require.Error(t, err)
			require.Contains(t, err.Error(), key)
		})
	}
}

func TestLoadParsesItemPrices(t *testing.T) {
	env := baseEnv()
	env["ORDER_ITEM_PRICES"] = "photo-subscription:1400, print-pack:2500"
	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"photo-subscription": 1400, "print-pack": 2500}, cfg.OrderItemPrices)

	env["ORDER_ITEM_PRICES"] = "photo-subscription:abc"
	_, err = config.LoadForTests(env)
	require.Error(t, err)

	env["ORDER_ITEM_PRICES"] = "print-pack:2500"
	_, err = config.LoadForTests(env)
	require.ErrorContains(t, err, "ORDER_DEFAULT_ITEM")
}

func TestLoadRejectsNegativeCaptureAmount(t *testing.T) {
	env := baseEnv()
	env["WEBHOOK_CAPTURE_AMOUNT"] = "-5"
	_, err := config.LoadForTests(env)
	require.Error(t, err)
}

func TestLoadRejectsNonPositiveRetention(t *testing.T) {
	env := baseEnv()
	env["FULFILLMENT_RETENTION"] = "-1h"
	_, err := config.LoadForTests(env)
	require.ErrorContains(t, err, "FULFILLMENT_RETENTION")
}

func TestHTTPAddrKeepsColonPrefix(t *testing.T) {
	cfg := &config.Config{Port: ":9000"}
	require.Equal(t, ":9000", cfg.HTTPAddr())
}

func TestLoadAcceptsPublicKeyAlias(t *testing.T) {
	env := baseEnv()
	env["STRIPE_PUBLISHABLE_KEY"] = ""
	env["STRIPE_PUBLIC_KEY"] = "pk_test_alias"
	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, "pk_test_alias", cfg.StripePublishableKey)
}
