// Package captions models pre-existing subtitle tracks and decodes them into
// transcript segments. Track selection and both decoders are pure functions so
// the fast path of the pipeline is fully table-testable.
package captions
