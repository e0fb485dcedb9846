// Package extract turns raw geometry into the feature vectors the
// tracking core consumes.
//
// Responsibilities: the Extractor boundary between host data types
// and feature.Vector, a Composite that concatenates extractors over
// one data type, and reference extractors for points and polylines.
// Key types: Extractor, Composite, PointExtractor, LineExtractor.
//
// Extractors must emit the same feature layout for every sample of a
// data type, degenerate inputs included, so a filter template derived
// from one frame stays valid for the next.
package extract
