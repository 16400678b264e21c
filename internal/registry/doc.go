// Package registry provides the central "glue" for the module system.
//
// The Registry stores mappings between the step kinds used in rig files
// (e.g., "fetch_file") and the compiled Go functions and input types that
// implement them. Modules register themselves at startup; the planner then
// validates every step in a rig against the registered kinds before
// anything executes.
package registry
