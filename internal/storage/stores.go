package storage

import (
	"context"
	"fmt"

	"pagebuilder/internal/domain"
)

// DriverMongo selects the MongoDB backend.
const DriverMongo = "mongodb"

// Stores bundles the persistence backends selected by configuration.
type Stores struct {
	Documents domain.DocumentStore
	Revisions domain.RevisionStore
	close     func() error
}

// Close releases the underlying connection.
func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStores opens the document and revision stores for driver. database
// names the Mongo database and is ignored by SQL drivers.
func OpenStores(ctx context.Context, driver, dsn, database string, revisionLimit int) (*Stores, error) {
	if driver == DriverMongo {
		m, err := OpenMongo(ctx, dsn, database, revisionLimit)
		if err != nil {
			return nil, err
		}
		return &Stores{Documents: m, Revisions: m, close: m.Close}, nil
	}

	db, err := Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	return &Stores{
		Documents: NewDocumentStore(db),
		Revisions: NewRevisionStore(db, revisionLimit),
		close:     db.Close,
	}, nil
}
