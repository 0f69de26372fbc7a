// Package api embeds the OpenAPI document served by the docs UI.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPI []byte
