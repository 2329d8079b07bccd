package config

import (
	"testing"
	"time"

	"github.com/pyama86/slaffic-ticket/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) string {
	return func(key string) string {
		return m[key]
	}
}

func baseEnv() map[string]string {
	return map[string]string{
		"SLACK_BOT_TOKEN":      "xoxb-dummy",
		"SLACK_APP_TOKEN":      "xapp-dummy",
		"ADMIN_USER_ID":        "UADMIN",
		"IT_CHANNEL_ID":        "CIT",
		"IT_MANAGER_ID":        "UIT",
		"MARKETING_CHANNEL_ID": "CMKT",
		"DASHBOARD_CHANNEL_ID": "CDASH",
	}
}

func TestFromEnv(t *testing.T) {
	cfg, err := FromEnv(envFrom(baseEnv()))
	require.NoError(t, err)

	assert.Equal(t, "UADMIN", cfg.AdminID)
	require.Len(t, cfg.Departments, 2)
	assert.Equal(t, model.Department("IT"), cfg.Departments[0].Code)
	assert.Equal(t, "UIT", cfg.Departments[0].ManagerID)
	assert.Equal(t, "CIT", cfg.Departments[0].ChannelID)
	assert.Equal(t, "🖥 IT", cfg.Departments[0].Label)
	// マネージャ未設定は起動を止めない
	assert.Equal(t, "", cfg.Departments[1].ManagerID)

	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 30*time.Minute, cfg.DraftTTL)
	assert.Equal(t, 9, cfg.DigestHour)
	assert.False(t, cfg.TaskTracking)
	assert.Equal(t, []string{"CDASH"}, cfg.AnnounceChannelIDs)
	assert.Equal(t, []string{"CDASH", "CIT", "CMKT"}, cfg.AnnounceRecipientIDs)
}

func TestFromEnv_MissingRequired(t *testing.T) {
	tests := []struct {
		name string
		drop string
	}{
		{"bot token", "SLACK_BOT_TOKEN"},
		{"app token", "SLACK_APP_TOKEN"},
		{"admin", "ADMIN_USER_ID"},
		{"department channel", "IT_CHANNEL_ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := baseEnv()
			delete(env, tt.drop)
			_, err := FromEnv(envFrom(env))
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
			assert.Contains(t, err.Error(), tt.drop)
		})
	}
}

func TestFromEnv_Departments(t *testing.T) {
	env := baseEnv()
	env["DEPARTMENTS"] = "it, ops, it"
	env["OPS_CHANNEL_ID"] = "COPS"
	env["OPS_LABEL"] = "Ops Team"
	env["TASK_TRACKING"] = "true"
	env["TICKET_TIMEZONE"] = "Asia/Tokyo"

	cfg, err := FromEnv(envFrom(env))
	require.NoError(t, err)
	require.Len(t, cfg.Departments, 2)
	assert.Equal(t, model.Department("OPS"), cfg.Departments[1].Code)
	assert.Equal(t, "Ops Team", cfg.Departments[1].Label)
	assert.True(t, cfg.TaskTracking)
	assert.Equal(t, "Asia/Tokyo", cfg.Location.String())
}

func TestFromEnv_Invalid(t *testing.T) {
	for key, value := range map[string]string{
		"DEPARTMENTS":     "I-T",
		"DB_DRIVER":       "mysql",
		"DRAFT_TTL":       "soon",
		"DIGEST_HOUR":     "25",
		"TICKET_TIMEZONE": "Mars/Olympus",
	} {
		t.Run(key, func(t *testing.T) {
			env := baseEnv()
			env[key] = value
			_, err := FromEnv(envFrom(env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestParseCSV(t *testing.T) {
	assert.Nil(t, ParseCSV("  "))
	assert.Equal(t, []string{"a", "b"}, ParseCSV(" a, ,b ,"))
}
