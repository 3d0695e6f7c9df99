// Package format parses the exchange master files into uniform rows.
//
// Every master file layout is a distinct [Format] value. The set is closed:
// formats are selected through the catalogue descriptor, never by name.
//
// Three slicing strategies recur across the layouts:
//
//   - [Table]: an ordered list of column widths that must exactly cover the
//     segment it is applied to.
//   - [Delimited]: tab or pipe separated records with a fixed column list.
//   - [Spans]: explicit start:end ranges where negative offsets are anchored
//     to the end of the line.
//
// Widths and offsets are measured in columns of the legacy double-byte
// encoding the files are published in: ASCII characters occupy one column,
// every other character two. This keeps offsets stable after the text has
// been decoded to UTF-8.
//
// Parsing never fails for "no data". Malformed input yields a result with
// [StatusMalformed]; callers degrade it to an empty row set. A source that is
// absent altogether is only acceptable for formats whose AllowsAbsent reports
// true, and is reported as [StatusAbsent] rather than as an error.
package format
