package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/openexams/paperd/internal/core/domain"
	"github.com/openexams/paperd/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements driven.DocumentStore on a single JSONB table.
// Every collection shares the documents table; the collection column keys
// the namespace and the id column carries the store-assigned identifier.
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// InsertOne stores a new document under a generated identifier
func (s *DocumentStore) InsertOne(ctx context.Context, collection string, doc map[string]any) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}

	id := uuid.NewString()
	query := `INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)`
	if _, err := s.db.ExecContext(ctx, query, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

// FindOne returns the first document matching the filter, newest first
func (s *DocumentStore) FindOne(ctx context.Context, collection string, filter driven.Filter) (map[string]any, error) {
	cond, args, err := filterClause(filter, []any{collection})
	if err != nil {
		return nil, err
	}

	query := `
		SELECT d.id, d.doc
		FROM documents d
		WHERE d.collection = $1 AND ` + cond + `
		ORDER BY d.created_at DESC
		LIMIT 1
	`

	var id string
	var data []byte
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&id, &data)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeDocument(id, data)
}

// FindMany returns matching documents with pagination and ordering
func (s *DocumentStore) FindMany(ctx context.Context, collection string, filter driven.Filter, opts driven.FindOptions) ([]map[string]any, error) {
	cond, args, err := filterClause(filter, []any{collection})
	if err != nil {
		return nil, err
	}

	order, err := orderClause(opts.Sort)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT d.id, d.doc
		FROM documents d
		WHERE d.collection = $1 AND ` + cond + `
		ORDER BY ` + order + `
		LIMIT ` + placeholder(len(args)+1) + ` OFFSET ` + placeholder(len(args)+2)
	args = append(args, limitOrDefault(opts.Limit), opts.Skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []map[string]any
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		doc, err := decodeDocument(id, data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdateOne merges the update fields into the first matching document.
// The row is only touched when the merge changes it, so a byte-identical
// patch reports zero modifications, matching document-database semantics.
func (s *DocumentStore) UpdateOne(ctx context.Context, collection string, filter driven.Filter, update map[string]any) (int64, error) {
	patch, err := json.Marshal(update)
	if err != nil {
		return 0, fmt.Errorf("marshal update: %w", err)
	}

	cond, args, err := filterClause(filter, []any{collection, patch})
	if err != nil {
		return 0, err
	}

	query := `
		UPDATE documents SET doc = doc || $2::jsonb, updated_at = now()
		WHERE ctid = (
			SELECT d.ctid
			FROM documents d
			WHERE d.collection = $1 AND ` + cond + `
				AND d.doc IS DISTINCT FROM d.doc || $2::jsonb
			ORDER BY d.created_at DESC
			LIMIT 1
		)
	`

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteOne removes the first matching document
func (s *DocumentStore) DeleteOne(ctx context.Context, collection string, filter driven.Filter) (int64, error) {
	cond, args, err := filterClause(filter, []any{collection})
	if err != nil {
		return 0, err
	}

	query := `
		DELETE FROM documents
		WHERE ctid = (
			SELECT d.ctid
			FROM documents d
			WHERE d.collection = $1 AND ` + cond + `
			ORDER BY d.created_at DESC
			LIMIT 1
		)
	`

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountDocuments counts documents matching the filter
func (s *DocumentStore) CountDocuments(ctx context.Context, collection string, filter driven.Filter) (int64, error) {
	cond, args, err := filterClause(filter, []any{collection})
	if err != nil {
		return 0, err
	}

	query := `
		SELECT COUNT(*)
		FROM documents d
		WHERE d.collection = $1 AND ` + cond

	var count int64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// TextSearch returns documents with at least one matching nested question,
// each with the matched question/answer pairs aggregated alongside.
func (s *DocumentStore) TextSearch(ctx context.Context, collection string, filter driven.QuestionText, opts driven.FindOptions) ([]driven.SearchHit, error) {
	pattern := likePattern(filter.Query)

	query := `
		SELECT d.id, d.doc,
			jsonb_agg(jsonb_build_object(
				'question', q.value->>'question',
				'answer', q.value->>'answer'
			)) AS matched
		FROM documents d
		CROSS JOIN LATERAL jsonb_array_elements(d.doc->'sections') AS sec(value)
		CROSS JOIN LATERAL jsonb_array_elements(sec.value->'questions') AS q(value)
		WHERE d.collection = $1
			AND (q.value->>'question' ILIKE $2 OR q.value->>'answer' ILIKE $2)
		GROUP BY d.collection, d.id, d.created_at
		ORDER BY d.created_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := s.db.QueryContext(ctx, query, collection, pattern, limitOrDefault(opts.Limit), opts.Skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []driven.SearchHit
	for rows.Next() {
		var id string
		var data, matched []byte
		if err := rows.Scan(&id, &data, &matched); err != nil {
			return nil, err
		}
		doc, err := decodeDocument(id, data)
		if err != nil {
			return nil, err
		}
		var questions []driven.MatchedQuestion
		if err := json.Unmarshal(matched, &questions); err != nil {
			return nil, fmt.Errorf("decode matched questions: %w", err)
		}
		hits = append(hits, driven.SearchHit{Document: doc, MatchedQuestions: questions})
	}
	return hits, rows.Err()
}

// CreateIndexes ensures expression indexes over document fields exist.
// An existing index whose definition no longer matches the requested shape
// is dropped and recreated.
func (s *DocumentStore) CreateIndexes(ctx context.Context, collection string, specs []driven.IndexSpec) error {
	for _, spec := range specs {
		if err := validateIdent(spec.Name); err != nil {
			return fmt.Errorf("index %q: %w", spec.Name, err)
		}
		for _, key := range spec.Keys {
			if err := validateIdent(key); err != nil {
				return fmt.Errorf("index %q key %q: %w", spec.Name, key, err)
			}
		}

		def, err := s.indexDef(ctx, spec.Name)
		if err != nil {
			return err
		}
		if def != "" {
			if indexMatches(def, collection, spec) {
				continue
			}
			if _, err := s.db.ExecContext(ctx, `DROP INDEX IF EXISTS `+spec.Name); err != nil {
				return fmt.Errorf("drop index %s: %w", spec.Name, err)
			}
		}

		exprs := make([]string, len(spec.Keys))
		for i, key := range spec.Keys {
			exprs[i] = "(doc->>'" + key + "')"
		}
		unique := ""
		if spec.Unique {
			unique = "UNIQUE "
		}
		stmt := fmt.Sprintf(
			"CREATE %sINDEX IF NOT EXISTS %s ON documents (%s) WHERE collection = '%s'",
			unique, spec.Name, strings.Join(exprs, ", "), strings.ReplaceAll(collection, "'", "''"),
		)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index %s: %w", spec.Name, err)
		}
	}
	return nil
}

func (s *DocumentStore) indexDef(ctx context.Context, name string) (string, error) {
	var def string
	err := s.db.QueryRowContext(ctx,
		`SELECT indexdef FROM pg_indexes WHERE schemaname = current_schema() AND indexname = $1`,
		name,
	).Scan(&def)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return def, nil
}

// indexMatches reports whether an existing index definition still covers the
// spec: same uniqueness, same keys, same collection predicate.
func indexMatches(def, collection string, spec driven.IndexSpec) bool {
	if spec.Unique != strings.Contains(def, "UNIQUE") {
		return false
	}
	for _, key := range spec.Keys {
		if !strings.Contains(def, "->> '"+key+"'") {
			return false
		}
	}
	return strings.Contains(def, "'"+collection+"'")
}

// filterClause renders a filter into a WHERE fragment. The given args
// already hold leading positional parameters; the fragment's placeholders
// continue from there.
func filterClause(filter driven.Filter, args []any) (string, []any, error) {
	switch f := filter.(type) {
	case driven.Eq:
		return eqClause(f, args)
	case driven.QuestionText:
		args = append(args, likePattern(f.Query))
		cond := `EXISTS (
			SELECT 1
			FROM jsonb_array_elements(d.doc->'sections') AS sec(value)
			CROSS JOIN LATERAL jsonb_array_elements(sec.value->'questions') AS q(value)
			WHERE q.value->>'question' ILIKE ` + placeholder(len(args)) + `
				OR q.value->>'answer' ILIKE ` + placeholder(len(args)) + `
		)`
		return cond, args, nil
	case nil:
		return "TRUE", args, nil
	default:
		return "", nil, fmt.Errorf("unsupported filter type %T", filter)
	}
}

func eqClause(f driven.Eq, args []any) (string, []any, error) {
	if len(f) == 0 {
		return "TRUE", args, nil
	}

	var conds []string
	contains := map[string]any{}
	keys := make([]string, 0, len(f))
	for key := range f {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if key == "id" {
			args = append(args, f[key])
			conds = append(conds, "d.id = "+placeholder(len(args)))
			continue
		}
		contains[key] = f[key]
	}

	if len(contains) > 0 {
		data, err := json.Marshal(contains)
		if err != nil {
			return "", nil, fmt.Errorf("marshal filter: %w", err)
		}
		args = append(args, data)
		conds = append(conds, "d.doc @> "+placeholder(len(args))+"::jsonb")
	}

	return strings.Join(conds, " AND "), args, nil
}

func orderClause(sorts []driven.SortField) (string, error) {
	if len(sorts) == 0 {
		return "d.created_at DESC", nil
	}
	parts := make([]string, len(sorts))
	for i, s := range sorts {
		if err := validateIdent(s.Field); err != nil {
			return "", fmt.Errorf("sort field %q: %w", s.Field, err)
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		parts[i] = "d.doc->>'" + s.Field + "' " + dir
	}
	return strings.Join(parts, ", "), nil
}

func decodeDocument(id string, data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	doc["id"] = id
	return doc, nil
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 10
	}
	return limit
}

// likePattern wraps the query in wildcards and escapes LIKE metacharacters
// so user input only ever matches as a literal substring.
func likePattern(query string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(query)
	return "%" + escaped + "%"
}

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func validateIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier")
	}
	return nil
}
