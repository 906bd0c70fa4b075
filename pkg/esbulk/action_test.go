package esbulk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAction_Defaults(t *testing.T) {
	cfg, err := NewAction(&ActionConfig{})
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost"}, cfg.Servers)
	assert.Equal(t, DefaultPortValue, cfg.DefaultPort)
	assert.Equal(t, defaultMaxBytes, cfg.MaxBytes)
	assert.Equal(t, -1, cfg.RebindInterval)
	assert.NotNil(t, cfg.Logger)
	assert.NotNil(t, cfg.Stats)
	assert.Equal(t, "system", cfg.Index.Static, "unset esversion.major must still apply the <8 legacy defaults")
	assert.Equal(t, "events", cfg.Type.Static)
}

func TestNewAction_LegacyDefaultsBelowESv8(t *testing.T) {
	cfg, err := NewAction(&ActionConfig{ESVersionMajor: 7})
	require.NoError(t, err)

	assert.Equal(t, "system", cfg.Index.Static)
	assert.Equal(t, "events", cfg.Type.Static)
}

func TestNewAction_ESv8DoesNotGetLegacyDefaults(t *testing.T) {
	cfg, err := NewAction(&ActionConfig{ESVersionMajor: 8})
	require.NoError(t, err)

	assert.Empty(t, cfg.Index.Static)
	assert.Empty(t, cfg.Type.Static)
}

func TestValidate_DynamicFieldRequiresTemplateName(t *testing.T) {
	_, err := NewAction(&ActionConfig{Index: DynamicField{Dynamic: true}})
	assert.Error(t, err)
}

func TestValidate_CreateRequiresBulkID(t *testing.T) {
	_, err := NewAction(&ActionConfig{WriteOperation: WriteCreate})
	assert.ErrorContains(t, err, "bulkid")

	cfg, err := NewAction(&ActionConfig{
		WriteOperation: WriteCreate,
		BulkID:         DynamicField{Static: "id_tpl", Dynamic: true},
	})
	require.NoError(t, err)
	assert.Equal(t, WriteCreate, cfg.WriteOperation)
}

func TestValidate_PasswordRequiresUsername(t *testing.T) {
	_, err := NewAction(&ActionConfig{Password: "secret"})
	assert.ErrorContains(t, err, "uid")
}

func TestValidate_ClientCertRequiresKey(t *testing.T) {
	_, err := NewAction(&ActionConfig{TLS: TLSConfig{ClientCert: "cert.pem"}})
	assert.ErrorContains(t, err, "myprivkey")
}

func TestNewAction_RetryFailuresConstructsDefaultLimiter(t *testing.T) {
	cfg, err := NewAction(&ActionConfig{
		WriteOperation: WriteCreate,
		BulkID:         DynamicField{Static: "id_tpl", Dynamic: true},
		RetryFailures:  true,
	})
	require.NoError(t, err)
	require.NotNil(t, cfg.Limiter)
	assert.True(t, cfg.Limiter.Allow())
}
