package query

import (
	"context"
	"strings"

	"github.com/roach88/routebook/internal/model"
	"github.com/roach88/routebook/internal/store"
)

// likeEscaper escapes LIKE metacharacters for use with ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// searchFrom matches the folded pattern against every searchable field.
// fold(NULL) is NULL, so absent optional fields never match.
const searchFrom = `
  FROM clients c
  LEFT JOIN streets s ON s.id = c.street_id
  LEFT JOIN neighborhoods n ON n.id = s.neighborhood_id
 WHERE fold(c.name) LIKE ?1 ESCAPE '\'
    OR fold(c.phone) LIKE ?1 ESCAPE '\'
    OR fold(c.reference) LIKE ?1 ESCAPE '\'
    OR fold(c.house_number) LIKE ?1 ESCAPE '\'
    OR fold(c.note) LIKE ?1 ESCAPE '\'
    OR fold(s.name) LIKE ?1 ESCAPE '\'
    OR fold(n.name) LIKE ?1 ESCAPE '\'
 ORDER BY c.name COLLATE NOCASE, c.id
 LIMIT ?2`

// Search returns clients with term as a substring of any text field,
// ignoring case and accents. Wildcard characters in term match literally.
// A blank term returns no clients.
func (r *Reader) Search(ctx context.Context, term string, limit int) ([]*model.Client, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []*model.Client{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	pattern := "%" + likeEscaper.Replace(store.Fold(term)) + "%"
	return r.clients(ctx, "search",
		"SELECT "+store.ClientColumnsFor("c")+searchFrom,
		pattern, limit)
}
