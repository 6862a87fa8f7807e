// Package pipeline runs the stages of a vectorize run in sequence.
//
// A run crawls the target, embeds the crawled pages and builds the
// figures: CrawlStep, EmbedStep and VisualizeStep. Each Step receives the
// session.Run and adds its results to it. A failing step is recorded in
// Run.Errors; whatever was produced before the failure stays in the run.
//
// The CLI runs all three steps at once. The HTTP API runs CrawlStep and
// then EmbedStep with VisualizeStep as separate requests.
package pipeline
