// Package store keeps domain objects in SQLite, one row per bookmark.
//
// A row holds the object's captured state as an external memento string,
// a digest of (logical_type, identifier, state) from canon.ObjectStateDigest
// and a version that only moves when the digest changes. Saving the same
// state twice leaves the row alone.
//
// Databases are migrated forward on Open; PRAGMA user_version records the
// last applied migration. Listings sort by logical_type, identifier COLLATE
// BINARY.
package store
