// Package openapi embeds the HTTP API description served by the dashboard.
package openapi

import _ "embed"

// APISpec contains the OpenAPI document for the cluster review API.
//
//go:embed ecod-api.yaml
var APISpec []byte

// Spec returns a copy of the embedded OpenAPI YAML.
func Spec() []byte {
	return append([]byte(nil), APISpec...)
}
