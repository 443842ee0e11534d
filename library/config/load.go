// Package config loads settings for the admin client.
package config

import (
	"os"
	"path/filepath"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	"github.com/Laisky/zap"
	"github.com/joho/godotenv"

	"github.com/Laisky/laisky-cms-admin/library/log"
)

// LoadFromFile loads the yaml settings file into gconfig.Shared.
// A missing file is skipped unless required is true.
func LoadFromFile(cfgPath string, required bool) error {
	if cfgPath == "" {
		return nil
	}

	if _, err := os.Stat(cfgPath); err != nil {
		if os.IsNotExist(err) && !required {
			log.Logger.Debug("settings file not found, skip", zap.String("config", cfgPath))
			return nil
		}

		return errors.Wrapf(err, "stat config %q", cfgPath)
	}

	gconfig.Shared.Set("cfg_dir", filepath.Dir(cfgPath))
	if err := gconfig.Shared.LoadFromFile(cfgPath); err != nil {
		return errors.Wrapf(err, "load configuration %q", cfgPath)
	}

	log.Logger.Info("load configuration", zap.String("config", cfgPath))
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs into the process environment.
// Variables that are already set win over the file.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.Wrapf(err, "stat env file %q", p)
		}
		existing = append(existing, p)
	}

	if len(existing) == 0 {
		return nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return errors.Wrap(err, "load env file")
	}

	log.Logger.Debug("load env file", zap.Strings("files", existing))
	return nil
}
