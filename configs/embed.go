// Package configs provides embedded configuration templates for geoflow.
//
// Templates are embedded at build time with go:embed so they ship in
// every distribution. `geoflow init` writes them out for editing.
package configs

import _ "embed"

// ConfigTemplate is the annotated geoflow.yaml starting point.
//
//go:embed geoflow.example.yaml
var ConfigTemplate string

// AgentsTemplate is the annotated agents.yaml starting point.
//
//go:embed agents.example.yaml
var AgentsTemplate string
