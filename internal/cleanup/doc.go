// Package cleanup removes expired terminal task records.
//
// A sweep runs in two steps. Plan snapshots the complete and failed records
// whose file modification time is at or before the cutoff; Execute removes
// exactly those records and nothing created or finished afterwards. Pending
// and running records are never candidates, however old.
//
// Result files are kept by default because they continue to satisfy
// dependency checks after their records are gone.
package cleanup
