// Package config provides configuration structures and utilities for linkscan.
// It defines the crawl limits, output preferences and the optional
// per-site YAML configuration file.
package config
