// Package regen validates and performs the destructive half of table
// regeneration: wiping derived tables, optionally only for some activities,
// so that an ingest pipeline can repopulate them.
//
// A regeneration runs in three steps:
//
//  1. FilterTables rejects table names outside the catalog.
//  2. Validator.ValidateDependencies refuses child-only regeneration for
//     activities that are not in the parent table. The storage layer has no
//     foreign keys, so this check is the only thing preventing orphaned
//     child rows.
//  3. Deleter removes the rows in one transaction. Either every requested
//     table loses its rows or none does.
//
// Regenerator chains the three and hands the emptied tables to an Inserter.
// body_composition is not keyed by activity and is never deleted here.
package regen
