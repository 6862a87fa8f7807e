// Package plot turns reduced embedding coordinates into scatter figures and
// renders them as an interactive HTML page.
//
// A Figure is plain data (it is what the HTTP API returns as JSON). Each
// Point carries the page title, URL and content preview shown on hover.
package plot
