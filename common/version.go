// Package common holds process-level helpers shared by the commands:
// logger setup and build metadata.
package common

// PackageName is used to namespace metrics and log tags.
const PackageName = "go-hns"

// Version is set at build time via -ldflags.
var Version = "dev"
