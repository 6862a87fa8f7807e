// Package log provides slog-based logging that keeps credentials and page
// bodies out of log output.
//
// The SecureHandler wraps any slog.Handler and:
//   - masks embedding API keys (Gemini "AIza..." keys, bearer tokens, JWTs)
//   - masks request headers configured per site (Authorization, Cookie)
//   - shortens string values longer than MaxValueLength, so that page text
//     logged while debugging a crawl does not flood the terminal
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//	logger.Debug("embedding page", "url", u, "api_key", key) // api_key is masked
package log
