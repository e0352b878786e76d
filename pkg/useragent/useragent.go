// Package useragent provides utilities for generating user agent strings.
//
// Dependency downloads identify themselves with a stable product token so that
// hosting providers can attribute traffic, e.g.
//
//	diagramcheck/v1.2.0 (linux; amd64)
package useragent

import (
	"fmt"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/toozej/diagramcheck/pkg/version"
)

// Product is the product token used in every user agent string.
const Product = "diagramcheck"

// Get returns the user agent for the running binary.
func Get() string {
	ua := WithVersion(version.Version)
	log.Debugf("Using user agent %q", ua)
	return ua
}

// WithVersion constructs a user agent string with a specific version.
//
// Example:
//
//	userAgent := useragent.WithVersion("v1.0.0")
//	// Returns: "diagramcheck/v1.0.0 (linux; amd64)"
func WithVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		v = "dev"
	}
	return fmt.Sprintf("%s/%s (%s; %s)", Product, v, runtime.GOOS, runtime.GOARCH)
}
