// Package sheetstore treats a human-edited spreadsheet as a record store.
//
// The package is layered leaves first:
//
//   - Codec: pure conversion between a typed record and a flat row of cells
//     in a fixed column order. Decoding never fails; malformed cells degrade
//     to absent fields and rows without a patient name are dropped.
//   - Index: resolves a record identity to the 1-based row that currently
//     holds it. Positions shift whenever other rows are inserted or removed,
//     so a position is resolved right before every positional write.
//   - Store: List, Append, Update and Delete on top of the codec and index.
//
// # Column Contract
//
// Column A always holds the identity. The remaining columns are fixed per
// record kind:
//
//	Exam      A:F  id | patient | received (dd/MM/yyyy) | withdrawn by | obs | attachments (JSON)
//	Recoleta  A:E  id | patient | ubs | notified (SIM/NÃO) | obs
//
// Row 1 is a header row and is never decoded.
//
// # Concurrency
//
// The store holds no lock over sheet contents. Update and Delete read the
// identity column and then write, so two writers racing on the same record
// resolve last-write-wins. An Update whose record was deleted in between is
// appended again with the same identity.
//
// # Errors
//
// Backend failures are wrapped in [ErrBackendUnavailable]. Records that
// cannot be encoded fail with [ErrInvalidRecord]. A missing spreadsheet id
// or backend fails construction with [ErrConfiguration].
package sheetstore
