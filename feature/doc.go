// Package feature provides the schema-carrying observation container
// shared by the tracking core.
//
// Responsibilities: named, typed feature blocks over one flat float64
// vector, with stable offsets so the filtering layer can derive state
// layouts from a template observation.
// Key types: Vector, Descriptor, Type.
//
// Accessors return copies; callers never alias the backing storage.
package feature
