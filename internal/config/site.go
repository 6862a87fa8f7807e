package config

import (
	"maps"
	"time"
)

// SiteConfig holds crawl settings for one host.
// Zero values mean "not set" and leave the inherited value in place.
type SiteConfig struct {
	// MaxPages overrides the crawl budget.
	MaxPages int `yaml:"maxPages,omitempty"`

	// Delay overrides the politeness delay, e.g. "500ms" or "2s".
	Delay time.Duration `yaml:"delay,omitempty"`

	// SameDomainOnly overrides the domain restriction. A pointer, since
	// false is a meaningful override.
	SameDomainOnly *bool `yaml:"sameDomainOnly,omitempty"`

	// UserAgent overrides the User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Headers are extra HTTP headers sent to this host.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Extractor overrides the text extractor ("text" or "readability").
	Extractor string `yaml:"extractor,omitempty"`

	// IgnorePatterns are URL path glob patterns to skip, e.g. "/tag/*".
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`
}

// EmbeddingConfig holds provider settings from the config file.
// The Gemini API key is deliberately absent: it comes from the environment.
type EmbeddingConfig struct {
	Provider      string `yaml:"provider,omitempty"`
	Model         string `yaml:"model,omitempty"`
	Dimensions    int    `yaml:"dimensions,omitempty"`
	TEIURL        string `yaml:"teiURL,omitempty"`
	MaxEmbedChars int    `yaml:"maxEmbedChars,omitempty"`
}

// File represents the structure of the .vectorize configuration file.
type File struct {
	// Defaults apply to every host unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites maps host names (e.g. "docs.example.com") to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding,omitempty"`
}

// GetSiteConfig returns the configuration for a host, merging the
// host-specific entry over the defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if cf.Defaults.Headers != nil {
		result.Headers = maps.Clone(cf.Defaults.Headers)
	}

	site, ok := cf.Sites[host]
	if !ok {
		return result
	}

	if site.MaxPages != 0 {
		result.MaxPages = site.MaxPages
	}
	if site.Delay != 0 {
		result.Delay = site.Delay
	}
	if site.SameDomainOnly != nil {
		result.SameDomainOnly = site.SameDomainOnly
	}
	if site.UserAgent != "" {
		result.UserAgent = site.UserAgent
	}
	if site.Extractor != "" {
		result.Extractor = site.Extractor
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	return result
}

// ApplyFile merges the config file into c for the given seed host.
// Values from the file only replace defaults; call it before applying
// explicitly set CLI flags.
func (c *Config) ApplyFile(cf *File, host string) {
	if cf == nil {
		return
	}
	c.SiteConfigs = cf

	site := cf.GetSiteConfig(host)
	if site.MaxPages != 0 {
		c.MaxPages = site.MaxPages
	}
	if site.Delay != 0 {
		c.CrawlDelay = site.Delay
	}
	if site.SameDomainOnly != nil {
		c.SameDomainOnly = *site.SameDomainOnly
	}
	if site.UserAgent != "" {
		c.UserAgent = site.UserAgent
	}
	if site.Extractor != "" {
		c.Extractor = site.Extractor
	}
	if len(site.Headers) > 0 {
		c.Headers = site.Headers
	}
	if len(site.IgnorePatterns) > 0 {
		c.IgnorePatterns = site.IgnorePatterns
	}

	e := cf.Embedding
	if e.Provider != "" {
		c.Provider = e.Provider
	}
	if e.Model != "" {
		c.EmbeddingModel = e.Model
	}
	if e.Dimensions != 0 {
		c.EmbeddingDimensions = e.Dimensions
	}
	if e.TEIURL != "" {
		c.TEIURL = e.TEIURL
	}
	if e.MaxEmbedChars != 0 {
		c.MaxEmbedChars = e.MaxEmbedChars
	}
}
