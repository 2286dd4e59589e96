// Package infra contains technical adapters such as metrics exporters
// and external platform clients. These packages should depend only on
// the interfaces defined in the core packages.
package infra
