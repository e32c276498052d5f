// Package submodule verifies that a documentation dependency is checked out
// and declared as a git submodule before anything touches it.
//
// Three checks run in order and the first failure wins: the dependency
// directory exists, the declaration file exists, and the declaration text
// contains the marker. The marker check is authoritative; the structured
// .gitmodules parse only enriches logging.
package submodule
