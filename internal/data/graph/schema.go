package graph

import (
	"context"
	"fmt"
)

// EnsureSchema creates constraints and indexes. Each statement runs in its
// own transaction; an existing equivalent constraint or index is logged and
// skipped, any other failure is returned.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.runner == nil {
		return ErrNotInitialized
	}
	for _, st := range schemaStatements {
		st := st
		err := s.write(ctx, "schema", func(ctx context.Context, tx Tx) error {
			_, err := tx.Run(ctx, st, nil)
			return err
		})
		if err == nil {
			continue
		}
		if isAlreadyExists(err) {
			s.log.Warn("neo4j schema statement skipped (already exists)", "statement", st.String(), "error", err)
			continue
		}
		return fmt.Errorf("graph schema %s: %w", st, err)
	}
	s.log.Info("neo4j schema ensured", "statements", len(schemaStatements))
	return nil
}
