package hydrate

import "fmt"

// FetchMode tells a hydrator which shape of result set it was handed.
type FetchMode int

const (
	// Flat means one row per entity, no child columns.
	Flat FetchMode = iota
	// Joined means a denormalized one-to-many join: parent columns repeat on
	// every row and only the prefixed child columns vary.
	Joined
)

func (m FetchMode) String() string {
	switch m {
	case Flat:
		return "flat"
	case Joined:
		return "joined"
	}
	return fmt.Sprintf("FetchMode(%d)", int(m))
}

// Group splits a joined result set into one slice per parent, keyed by the
// parent primary key column. Parents keep the order in which they first appear.
// Rows are never merged across distinct key values.
func Group(rows []Row, key string) ([][]Row, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	index := make(map[int64]int)
	var groups [][]Row
	for _, row := range rows {
		id, err := row.Int64(key)
		if err != nil {
			return nil, fmt.Errorf("group by %s: %w", key, err)
		}
		i, seen := index[id]
		if !seen {
			i = len(groups)
			index[id] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], row)
	}
	return groups, nil
}

// Fold maps every row of one parent group into children, skipping rows whose
// child key is NULL (a LEFT JOIN with no match).
func Fold[T any](rows []Row, childKey string, fn func(Row) (T, error)) ([]T, error) {
	children := make([]T, 0, len(rows))
	for _, row := range rows {
		if row.IsNull(childKey) {
			continue
		}
		child, err := fn(row)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

// Collect hydrates a whole result set. Flat rows map one-to-one through flat;
// joined rows are grouped by key and each group goes through joined.
func Collect[T any](rows []Row, mode FetchMode, key string, flat func(Row) (*T, error), joined func([]Row) (*T, error)) ([]T, error) {
	out := make([]T, 0, len(rows))
	switch mode {
	case Flat:
		for _, row := range rows {
			v, err := flat(row)
			if err != nil {
				return nil, err
			}
			out = append(out, *v)
		}
	case Joined:
		groups, err := Group(rows, key)
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			v, err := joined(g)
			if err != nil {
				return nil, err
			}
			if v != nil {
				out = append(out, *v)
			}
		}
	default:
		return nil, fmt.Errorf("unknown fetch mode %s", mode)
	}
	return out, nil
}
