package config

import (
	"testing"

	"github.com/fatflowers/creator-cashier/pkg/types"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Database:  DBConfig{Driver: DBDriverPostgres, DSN: "postgres://localhost/app"},
		NMI:       NMIConfig{SecurityKey: "sk", TransactURL: "https://gw/transact", QueryHosts: []string{"https://gw"}},
		Reconcile: ReconcileConfig{DefaultDays: 30},
		NodeID:    1,
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_RequiresSecurityKey(t *testing.T) {
	c := validConfig()
	c.NMI.SecurityKey = ""
	err := c.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "nmi.security_key")
}

func TestValidate_PayPalCredentialsWhenEnabled(t *testing.T) {
	c := validConfig()
	c.PayPal.Enabled = true
	require.ErrorContains(t, c.Validate(), "paypal.client_id")

	c.PayPal.ClientID, c.PayPal.ClientSecret = "id", "secret"
	require.NoError(t, c.Validate())
}

func TestValidate_RejectsUnknownDriverAndBadSeeds(t *testing.T) {
	c := validConfig()
	c.Database.Driver = "sqlite"
	c.Offers = []types.OfferSeed{{SKU: "", PriceCents: 100}}
	err := c.Validate()
	require.ErrorContains(t, err, "database.driver")
	require.ErrorContains(t, err, "invalid offer seed")
}

func TestNew_FailsFastWithoutSecurityKey(t *testing.T) {
	t.Setenv("APP_CONFIG_NAME", "does-not-exist")
	t.Setenv("APP_NMI_SECURITY_KEY", "")
	_, err := New()
	require.ErrorContains(t, err, "nmi.security_key")
}

func TestNew_ReadsSecurityKeyFromEnv(t *testing.T) {
	t.Setenv("APP_CONFIG_NAME", "does-not-exist")
	t.Setenv("APP_NMI_SECURITY_KEY", "from-env")
	c, err := New()
	require.NoError(t, err)
	require.Equal(t, "from-env", c.NMI.SecurityKey)
	require.Equal(t, 30, c.Reconcile.DefaultDays)
	require.Equal(t, []string{"https://secure.nmi.com", "https://secure.networkmerchants.com"}, c.NMI.QueryHosts)
}

func TestIsPinnedSKU(t *testing.T) {
	c := validConfig()
	c.Checkout.PinnedPriceSKUs = []string{"monthly-creator-pass"}
	require.True(t, c.IsPinnedSKU("monthly-creator-pass"))
	require.False(t, c.IsPinnedSKU("other"))
	require.False(t, c.IsPinnedSKU(""))
}
