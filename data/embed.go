// Package data holds the configuration files compiled into the binary.
package data

import "embed"

var (
	//go:embed captchamodal.yaml
	Config embed.FS
)
