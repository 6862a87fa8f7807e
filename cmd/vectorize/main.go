// Package main provides the entry point for the vectorize CLI.
//
// vectorize crawls a website, embeds the text of each page and projects
// the embeddings to 2D and 3D with PCA and UMAP.
//
// Usage:
//
//	vectorize run https://example.com/
//	vectorize serve --addr :8080
//
// See --help for all available options.
package main

func main() {
	Execute()
}
