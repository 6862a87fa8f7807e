package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Env holds settings read from the process environment.
// A .env file in the working directory is loaded first if present; real
// environment variables win over it.
type Env struct {
	GeminiAPIKey   string `envconfig:"GEMINI_API_KEY"`
	Provider       string `envconfig:"VECTORIZE_PROVIDER"`
	EmbeddingModel string `envconfig:"VECTORIZE_EMBEDDING_MODEL"`
	TEIURL         string `envconfig:"VECTORIZE_TEI_URL"`
	UserAgent      string `envconfig:"VECTORIZE_USER_AGENT"`
	ServerAddr     string `envconfig:"VECTORIZE_ADDR"`
}

// LoadEnv reads the environment, after loading the given dotenv files.
// Missing dotenv files are ignored.
func LoadEnv(dotenvFiles ...string) (Env, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Env{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return Env{}, fmt.Errorf("failed to process environment: %w", err)
	}
	return env, nil
}

// ApplyEnv overlays non-empty environment values onto c.
func (c *Config) ApplyEnv(env Env) {
	if env.GeminiAPIKey != "" {
		c.GeminiAPIKey = env.GeminiAPIKey
	}
	if env.Provider != "" {
		c.Provider = env.Provider
	}
	if env.EmbeddingModel != "" {
		c.EmbeddingModel = env.EmbeddingModel
	}
	if env.TEIURL != "" {
		c.TEIURL = env.TEIURL
	}
	if env.UserAgent != "" {
		c.UserAgent = env.UserAgent
	}
	if env.ServerAddr != "" {
		c.ServerAddr = env.ServerAddr
	}
}
