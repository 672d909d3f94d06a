// Package emuharness is a black-box validation harness for hardware
// emulators.
package emuharness

// Version is the emuharness release, overridden at link time.
var Version = "dev"
