// Package hclrig implements the config.Loader interface for HCL rig
// files. It discovers and parses .hcl files, translates them into the
// format-agnostic config model, and builds the evaluation context rig
// expressions are resolved against.
package hclrig
