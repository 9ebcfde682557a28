package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	"github.com/goliatone/go-config/koanf/providers/env"
	sqlstore "github.com/goliatone/go-postwork/store/sql"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "POSTWORK_"
	envDelim      = "__"
	daemonSection = "daemon"
)

// loadEnv reads POSTWORK_* variables into a nested tree. A double underscore
// separates sections: POSTWORK_DISPATCH__TIMEOUT becomes dispatch.timeout.
// Blank values are skipped so defaults apply.
func loadEnv() (map[string]any, error) {
	k := koanf.New(".")
	provider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		value = strings.TrimSpace(value)
		if value == "" {
			return "", nil
		}
		path := strings.ToLower(strings.TrimPrefix(key, envPrefix))
		return strings.ReplaceAll(path, envDelim, "."), value
	})
	if err := k.Load(provider, json.Parser()); err != nil {
		return nil, fmt.Errorf("postworkd: load env: %w", err)
	}
	return k.Raw(), nil
}

// envConfigLoader feeds core.CfgxConfigProvider with the service sections of
// the environment tree. String values are decoded by cfgx.
type envConfigLoader struct{}

func (envConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	tree, err := loadEnv()
	if err != nil {
		return nil, err
	}
	delete(tree, daemonSection)
	return tree, nil
}

// daemonSettings holds process level settings that are not part of core.Config.
type daemonSettings struct {
	Addr        string        `mapstructure:"addr"`
	RoutePrefix string        `mapstructure:"route_prefix"`
	DBDriver    string        `mapstructure:"db_driver"`
	DBDSN       string        `mapstructure:"db_dsn"`
	DBDebug     bool          `mapstructure:"db_debug"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	LogLevel    string        `mapstructure:"log_level"`
}

func defaultDaemonSettings() daemonSettings {
	return daemonSettings{
		Addr:        ":8080",
		RoutePrefix: "/postwork",
		DBDriver:    sqlstore.DriverSQLite,
		DBDSN:       "file:postwork.db?cache=shared&_foreign_keys=on",
		CacheTTL:    5 * time.Minute,
		LogLevel:    "info",
	}
}

// loadDaemonSettings decodes the POSTWORK_DAEMON__* section over the defaults.
func loadDaemonSettings() (daemonSettings, error) {
	tree, err := loadEnv()
	if err != nil {
		return daemonSettings{}, err
	}
	section, _ := tree[daemonSection].(map[string]any)
	if section == nil {
		section = map[string]any{}
	}
	settings, err := cfgx.Build[daemonSettings](section,
		cfgx.WithDefaults(defaultDaemonSettings()),
		cfgx.WithValidatorFunc(func(s daemonSettings) error {
			if s.CacheTTL < 0 {
				return fmt.Errorf("cache_ttl must not be negative")
			}
			return nil
		}),
	)
	if err != nil {
		return daemonSettings{}, fmt.Errorf("postworkd: daemon settings: %w", err)
	}
	settings.DBDriver = sqlstore.NormalizeDriver(settings.DBDriver)
	return settings, nil
}
