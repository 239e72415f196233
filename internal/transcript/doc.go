// Package transcript defines the timed-segment value types shared by every
// pipeline phase and the output format converters built on them.
package transcript
