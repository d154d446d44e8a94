// Package types defines the entity-type enumeration, lifecycle states,
// runtime configuration, verification report structures, and standard
// error values for the porter migration engine.
// See docs/ARCHITECTURE.md § Data Model.
package types
