// Package web holds the templates and static assets for the server's pages.
package web

import (
	"embed"
	"html/template"
	"io/fs"
)

var (
	//go:embed templates/*.gotmpl
	templates embed.FS

	//go:embed static
	static embed.FS
)

// Parse returns every template, named by file name.
func Parse() (*template.Template, error) {
	return template.ParseFS(templates, "templates/*.gotmpl")
}

// Static returns the files served under /public.
func Static() fs.FS {
	sub, _ := fs.Sub(static, "static")
	return sub
}
