// Package web holds the single page served at /.
package web

import "embed"

// FS contains index.html and its script and stylesheet.
//
//go:embed index.html app.js style.css
var FS embed.FS
