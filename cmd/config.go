package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"db-shuttle/internal/database"
	"db-shuttle/internal/engine"
)

// ConnectionConfig is one named endpoint from the `connections` list.
type ConnectionConfig struct {
	Name                string `mapstructure:"name"`
	database.Descriptor `mapstructure:",squash"`
}

// LoadConnections returns the configured connections.
func LoadConnections() ([]ConnectionConfig, error) {
	var configs []ConnectionConfig
	if err := viper.UnmarshalKey("connections", &configs); err != nil {
		return nil, fmt.Errorf("failed to parse connections config: %w", err)
	}
	return configs, nil
}

// FindConnection returns the connection called name. The password may be
// given through DBSHUTTLE_<NAME>_PASSWORD instead of the config file.
func FindConnection(name string) (database.Descriptor, error) {
	configs, err := LoadConnections()
	if err != nil {
		return database.Descriptor{}, err
	}

	var found *ConnectionConfig
	for i := range configs {
		if strings.EqualFold(configs[i].Name, name) {
			if found != nil {
				return database.Descriptor{}, fmt.Errorf("connection %q is defined more than once", name)
			}
			found = &configs[i]
		}
	}
	if found == nil {
		return database.Descriptor{}, fmt.Errorf("no connection named %q in config", name)
	}

	desc := found.Descriptor
	if desc.Password == "" {
		desc.Password = viper.GetString(passwordKey(found.Name))
	}
	return desc, nil
}

func passwordKey(name string) string {
	return strings.ToLower(strings.NewReplacer("-", "_", " ", "_").Replace(name)) + "_password"
}

// transferOptions reads the settings section (flags override it).
func transferOptions() engine.Options {
	return engine.Options{
		ProgressEvery: viper.GetInt64("settings.progress_every"),
		StopOnError:   viper.GetBool("settings.stop_on_error"),
		CountRows:     !viper.GetBool("settings.no_progress"),
	}
}
