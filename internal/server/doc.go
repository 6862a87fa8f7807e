// Package server provides the vectorize HTTP API.
//
// A client opens a session, crawls a site into it, embeds the crawled
// pages and then fetches figures, an export or an HTML plot page:
//
//	POST   /api/sessions                  open a session
//	DELETE /api/sessions/{id}             close it
//	POST   /api/sessions/{id}/crawl       {"url": ..., "max_pages": 20, "same_domain": true}
//	POST   /api/sessions/{id}/vectorize   embed the crawled pages
//	GET    /api/sessions/{id}/visualize   PCA and UMAP figures as JSON
//	GET    /api/sessions/{id}/export      ?format=json|csv|markdown
//	GET    /api/sessions/{id}/plot        interactive HTML page
//	GET    /healthz
//	GET    /metrics
//
// Crawl and vectorize run inside the request. A session runs one of them
// at a time; a second request while one is running gets 409 Conflict.
package server
