// Package mediatypes defines the accepted upload formats and the MIME
// types used when serving stored media and HLS artifacts.
package mediatypes
