package record

import "context"

// Repository is the persistence contract for test records. The store is
// append-only: there is no update or delete.
type Repository interface {
	// Create inserts one record atomically. A primary-key collision maps
	// to ErrDuplicateRecord.
	Create(ctx context.Context, r *TestRecord) error

	// List returns the filtered records ordered by CreatedAt descending
	// (ties broken by ID descending), plus the total count of matching
	// records ignoring pagination.
	List(ctx context.Context, f Filter, p Page) ([]*TestRecord, int64, error)

	// CountAll counts every record matching the filter.
	CountAll(ctx context.Context, f Filter) (int64, error)

	// LatestPerDevice reduces the filtered set to one record per device
	// (maximum CreatedAt, ties broken by maximum ID) and counts how many
	// of those latest records passed.
	LatestPerDevice(ctx context.Context, f Filter) (PassCounts, error)

	// DistinctSerialNumbers returns every non-empty serial number ever
	// stored, deduplicated and sorted ascending. Filters do not apply.
	DistinctSerialNumbers(ctx context.Context) ([]string, error)

	// ExportRows returns the full filtered set, unpaginated, ordered by
	// CreatedAt descending, with stored blobs kept as raw text.
	ExportRows(ctx context.Context, f Filter) ([]ExportRow, error)
}
