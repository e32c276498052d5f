// Package build provides the canonical docrun pipeline.
//
// A run is strictly ordered: lock the root, verify the submodule dependency,
// copy the generator config into it, then invoke the documentation generator.
// The first failing step aborts every step after it. All execution paths
// (build, validate, watch) route through BuildService.
package build
