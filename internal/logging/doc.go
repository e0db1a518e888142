// Package logging provides leveled logging on top of the standard
// library logger. The level is taken from the LOG_LEVEL environment
// variable (debug, info, warn, error), with DEBUG=true as a shortcut
// for debug level.
package logging
