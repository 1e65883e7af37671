package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Env holds settings that only come from the process environment.
type Env struct {
	OpenAIKey string `env:"OPENAI_API_KEY"`
	AuthKey   string `env:"READALOUD_AUTH_KEY"`
	LogFile   string `env:"READALOUD_LOG_FILE"`

	// MockAudio plays into a silent device that keeps real time.
	MockAudio bool `env:"READALOUD_MOCK_AUDIO"`
	CI        bool `env:"CI"`
}

// LoadEnv reads a .env file from the working directory, if there is one,
// and parses the environment.
func LoadEnv(files ...string) (Env, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Env{}, fmt.Errorf("unable to load .env: %w", err)
	}
	return ParseEnv()
}

// ParseEnv parses the environment without reading any file.
func ParseEnv() (Env, error) {
	e, err := env.ParseAs[Env]()
	if err != nil {
		return Env{}, fmt.Errorf("error parsing environment: %w", err)
	}
	return e, nil
}

// Headless reports whether audio should go to a silent device.
func (e Env) Headless() bool {
	return e.MockAudio || e.CI
}

// Key returns the API key from the environment, preferring the
// readaloud-specific variable.
func (e Env) Key() string {
	if e.AuthKey != "" {
		return e.AuthKey
	}
	return e.OpenAIKey
}
