// Package daemon ties the workflow manager and the HTTP API into a single
// lifecycle with flock-based locking to prevent multiple instances from
// sharing one database.
package daemon
