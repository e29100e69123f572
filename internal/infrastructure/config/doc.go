// Package config loads and validates PestGuard Core configuration.
//
// Configuration comes from three layers, later layers overriding earlier:
//
//  1. Hardcoded defaults (a four-relay rig with the standard sensor set)
//  2. A YAML file (configs/config.yaml by default)
//  3. PESTGUARD_* environment variables
//
// The loaded Config is immutable after startup: components receive the
// sections they need at construction and never reload.
//
// Validation is strict and happens once, inside Load(). A config with an
// unknown role channel, a non-positive sensor interval, or risk thresholds
// that are not monotonically ordered never reaches the orchestrator.
package config
