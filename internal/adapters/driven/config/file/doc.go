// Package file loads the idsync TOML configuration and serves the resources
// it declares through a read-only ResourceStore.
package file
