// Package creds resolves harvesting-account credentials from a YAML file
// with environment-variable overrides. The file maps an account alias to
// its login identity and secret; nothing else in the system ever sees the
// file, only the resolved pair.
package creds

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Credentials is one account's login pair.
type Credentials struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Source is a loaded credentials file.
type Source struct {
	accounts map[string]Credentials
}

type fileFormat struct {
	Accounts map[string]Credentials `yaml:"accounts"`
}

// Load reads a credentials file. The expected shape is:
//
//	accounts:
//	  alias:
//	    email: user@example.com
//	    password: hunter2
func Load(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("creds: read %s: %w", path, err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("creds: parse %s: %w", path, err)
	}
	if len(f.Accounts) == 0 {
		return nil, fmt.Errorf("creds: %s contains no accounts", path)
	}
	return &Source{accounts: f.Accounts}, nil
}

// Lookup resolves an alias. Environment variables
// QHARVEST_<ALIAS>_EMAIL and QHARVEST_<ALIAS>_PASSWORD override the file,
// and can also introduce an alias absent from it.
func (s *Source) Lookup(alias string) (Credentials, error) {
	var c Credentials
	var ok bool
	if s != nil {
		c, ok = s.accounts[alias]
	}

	prefix := "QHARVEST_" + strings.ToUpper(alias) + "_"
	if v := os.Getenv(prefix + "EMAIL"); v != "" {
		c.Email = v
	}
	if v := os.Getenv(prefix + "PASSWORD"); v != "" {
		c.Password = v
	}

	if c.Email == "" || c.Password == "" {
		if !ok {
			return Credentials{}, fmt.Errorf("creds: unknown account %q", alias)
		}
		return Credentials{}, fmt.Errorf("creds: account %q is missing email or password", alias)
	}
	return c, nil
}
