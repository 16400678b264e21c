// Package config defines the format-agnostic configuration model for a
// rig, along with the Loader interface for reading it from various sources.
//
// The `config.Model` is the single source of truth for the `plan` and
// `executor` packages. Concrete loader implementations, such as for HCL,
// are provided in separate packages.
package config
