package server

import _ "embed"

//go:embed page.html
var page []byte
