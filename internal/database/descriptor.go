package database

import (
	"fmt"
	"strings"

	"db-shuttle/internal/dialect"
)

// Descriptor holds the parameters of one database endpoint.
type Descriptor struct {
	Driver   string `mapstructure:"driver" yaml:"driver,omitempty"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port,omitempty"`
	Database string `mapstructure:"database" yaml:"database"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"-"`
}

// Dialect resolves the descriptor's driver.
func (d Descriptor) Dialect() (dialect.Dialect, error) {
	return dialect.Get(d.Driver)
}

// WithDefaults fills in the driver and the engine's standard port.
func (d Descriptor) WithDefaults() Descriptor {
	if strings.TrimSpace(d.Driver) == "" {
		d.Driver = dialect.DefaultDriver
	}
	if d.Port == 0 {
		if dl, err := d.Dialect(); err == nil {
			d.Port = dl.DefaultPort()
		}
	}
	return d
}

// Validate checks the fields needed to build a connection string.
// Credentials are only checked by an actual connection attempt.
func (d Descriptor) Validate() error {
	var missing []string
	if strings.TrimSpace(d.Host) == "" {
		missing = append(missing, "host")
	}
	if strings.TrimSpace(d.Database) == "" {
		missing = append(missing, "database")
	}
	if strings.TrimSpace(d.User) == "" {
		missing = append(missing, "user")
	}
	if len(missing) > 0 {
		return fmt.Errorf("connection is missing %s", strings.Join(missing, ", "))
	}
	if d.Port < 0 || d.Port > 65535 {
		return fmt.Errorf("invalid port %d", d.Port)
	}
	if _, err := d.Dialect(); err != nil {
		return err
	}
	return nil
}

// DSN builds the driver connection string for the descriptor's database.
func (d Descriptor) DSN() (string, error) {
	return d.dsn(d.Database)
}

// ServerDSN builds a connection string that does not select the descriptor's
// database, for server-level operations such as existence checks.
func (d Descriptor) ServerDSN() (string, error) {
	dl, err := d.Dialect()
	if err != nil {
		return "", err
	}
	return d.dsn(dl.ServerDatabase())
}

func (d Descriptor) dsn(database string) (string, error) {
	d = d.WithDefaults()
	if err := d.Validate(); err != nil {
		return "", err
	}
	dl, err := d.Dialect()
	if err != nil {
		return "", err
	}
	return dl.FormatDSN(d.Host, d.Port, d.User, d.Password, database), nil
}

// String renders the descriptor without its password.
func (d Descriptor) String() string {
	d = d.WithDefaults()
	return fmt.Sprintf("%s://%s@%s:%d/%s", d.Driver, d.User, d.Host, d.Port, d.Database)
}
