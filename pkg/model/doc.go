// Package model defines the metadata vocabulary the engine consumes: field,
// column and action descriptors grouped under an EntityConfig. The types carry
// no behaviour beyond validation, defaults and wire decoding; resolvers,
// renderers and dispatchers live in sibling packages.
//
// Actions and form definitions are tagged unions. Exactly one shape is
// populated per instance and decoders reject payloads that mix shapes.
package model
