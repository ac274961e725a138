// Package sync moves content records between a Store and a tree of record
// files, in both directions.
//
// # Dump (store to files)
//
// Dump lists every live record, attaches its metadata and writes it to the
// canonical path computed by schema.Resolve. When a record's title changed
// since the last dump, the file that still declares its id is removed so
// the repository holds exactly one file per record.
//
// # Load (files to store)
//
// Load walks the repository (see Walk) and runs two explicit phases per
// file:
//
//  1. LoadRecord parses the file, normalizes the body, and updates or
//     inserts the record and its metadata.
//  2. DumpRecord writes the stored result back, passing the source file as
//     previousPath so an edited title renames the file.
//
// # Failures
//
// Bulk passes never stop on a single record: failures are collected in the
// Report with the path and id they concern. Single-file and single-id
// operations return their error directly.
//
// # Deletion
//
// Records are never deleted. DeleteOld reports stored records without a
// file so they can be trashed by the owning application; stale metadata
// keys are likewise left in place.
package sync
