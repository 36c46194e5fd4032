package utils

import (
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// LoadConfig reads an optional .env file from path and primes viper so
// environment variables are visible through viper.Get* lookups.
func LoadConfig(path string) {
	if err := godotenv.Load(filepath.Join(path, ".env")); err != nil {
		logrus.Debugf("[CONFIG] No .env file loaded: %v", err)
	}
	viper.AutomaticEnv()
}
