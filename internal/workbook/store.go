// Package workbook is the shared datastore behind the assistant: one
// workbook with a tab per resource (sites, support log, hardware,
// implementation, stock, feedback). The write executor depends on this
// contract but does not own the schema.
package workbook

import "context"

// Row is one record keyed by snake_case field names, the same keys the
// classifier extracts. Values are strings; qty is kept as its decimal
// representation the way a spreadsheet cell would hold it.
type Row map[string]string

// Clone returns a shallow copy so callers can hand out snapshots.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Store is the read/write contract the pipeline needs. Implementations
// must be safe for concurrent use.
type Store interface {
	// Sites
	ReadSites(ctx context.Context) ([]Row, error)
	CreateSite(ctx context.Context, row Row) error
	UpdateSite(ctx context.Context, siteID string, updates Row) error

	// Support log. AppendSupport assigns and returns the ticket ID.
	ReadSupport(ctx context.Context, siteID string) ([]Row, error)
	AppendSupport(ctx context.Context, row Row) (string, error)
	// FindSupportRow locates a row by ticket ID, or the most recent
	// unresolved entry for a site when ticketID is empty. Returns a
	// 1-based index stable for the following UpdateSupportRow.
	FindSupportRow(ctx context.Context, siteID, ticketID string) (int, error)
	UpdateSupportRow(ctx context.Context, rowIndex int, updates Row) error
	ListOpenTickets(ctx context.Context, siteID string) ([]Row, error)

	// Hardware inventory
	ReadHardware(ctx context.Context, siteID string) ([]Row, error)
	AppendHardware(ctx context.Context, row Row) error

	// Implementation details, one wide row per site
	ReadImplementation(ctx context.Context, siteID string) (Row, error)
	ReadAllImplementation(ctx context.Context) ([]Row, error)
	UpdateImplementation(ctx context.Context, siteID string, updates Row) error

	// Stock ledger. location == "" reads all locations.
	ReadStock(ctx context.Context, location string) ([]Row, error)
	AppendStock(ctx context.Context, row Row) error

	// Feedback tab, append-only
	AppendFeedback(ctx context.Context, row Row) error

	// NextSiteID proposes the next sequence number for a site ID prefix
	// and region (e.g. "MIG", "TR" -> MIG-TR-03).
	NextSiteID(ctx context.Context, prefix, region string) (string, error)
}
