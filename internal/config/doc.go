// Package config holds the vectorize configuration.
//
// Settings are layered, lowest precedence first:
//
//  1. NewConfig defaults
//  2. the YAML config file (.vectorize), merged per seed host with ApplyFile
//  3. the environment and an optional .env file, via LoadEnv and ApplyEnv
//  4. explicitly set command line flags
//
// The Gemini API key is only ever read from the environment.
//
// # Config File
//
//	defaults:
//	  maxPages: 20
//	  delay: 1s
//	  extractor: text
//	sites:
//	  docs.example.com:
//	    maxPages: 50
//	    ignorePatterns: ["/api/*"]
//	embedding:
//	  provider: tei
//	  teiURL: http://localhost:8081
package config
