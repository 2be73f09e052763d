package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/luarag/pkg/types"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// A single connection serialises writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, types.StoreError("open", dbPath, err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, types.StoreError("migrate", dbPath, err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, types.StoreError("begin", "", err)
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return types.StoreError("commit", "", err)
	}
	return nil
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *SQLiteStorage) querier() querier {
	return s.db
}

// File operations

func (s *SQLiteStorage) findFileByPathWithQuerier(ctx context.Context, q querier, path string) (*types.SourceFile, error) {
	query := `
		SELECT id, path, content_hash, size_bytes, last_modified, indexed_at
		FROM files
		WHERE path = ?
	`
	var file types.SourceFile
	var lastModified, indexedAt sql.NullTime
	err := q.QueryRowContext(ctx, query, path).Scan(
		&file.ID, &file.Path, &file.ContentHash, &file.SizeBytes, &lastModified, &indexedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, types.StoreError("find file", path, err)
	}
	file.LastModified = lastModified.Time
	file.IndexedAt = indexedAt.Time
	return &file, nil
}

func (s *SQLiteStorage) FindFileByPath(ctx context.Context, path string) (*types.SourceFile, error) {
	return s.findFileByPathWithQuerier(ctx, s.querier(), path)
}

func (s *SQLiteStorage) upsertFileWithQuerier(ctx context.Context, q querier, file *types.SourceFile) error {
	query := `
		INSERT INTO files (path, content_hash, size_bytes, last_modified, indexed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			content_hash = excluded.content_hash,
			size_bytes = excluded.size_bytes,
			last_modified = excluded.last_modified,
			indexed_at = excluded.indexed_at
		RETURNING id
	`
	now := time.Now()
	var lastModified interface{}
	if !file.LastModified.IsZero() {
		lastModified = file.LastModified
	}
	err := q.QueryRowContext(ctx, query,
		file.Path, file.ContentHash, file.SizeBytes, lastModified, now).Scan(&file.ID)
	if err != nil {
		return types.StoreError("upsert file", file.Path, err)
	}
	file.IndexedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertFile(ctx context.Context, file *types.SourceFile) error {
	return s.upsertFileWithQuerier(ctx, s.querier(), file)
}

// deleteFileWithQuerier removes the file row; chunks and embeddings cascade
func (s *SQLiteStorage) deleteFileWithQuerier(ctx context.Context, q querier, path string) (bool, error) {
	result, err := q.ExecContext(ctx, "DELETE FROM files WHERE path = ?", path)
	if err != nil {
		return false, types.StoreError("delete file", path, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, types.StoreError("delete file", path, err)
	}
	return n > 0, nil
}

func (s *SQLiteStorage) DeleteFile(ctx context.Context, path string) (bool, error) {
	return s.deleteFileWithQuerier(ctx, s.querier(), path)
}

func (s *SQLiteStorage) listFilesWithQuerier(ctx context.Context, q querier) ([]*types.SourceFile, error) {
	query := `
		SELECT id, path, content_hash, size_bytes, last_modified, indexed_at
		FROM files
		ORDER BY path
	`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, types.StoreError("list files", "", err)
	}
	defer func() { _ = rows.Close() }()

	files := make([]*types.SourceFile, 0)
	for rows.Next() {
		var file types.SourceFile
		var lastModified, indexedAt sql.NullTime
		if err := rows.Scan(&file.ID, &file.Path, &file.ContentHash, &file.SizeBytes, &lastModified, &indexedAt); err != nil {
			return nil, types.StoreError("list files", "", err)
		}
		file.LastModified = lastModified.Time
		file.IndexedAt = indexedAt.Time
		files = append(files, &file)
	}
	if err := rows.Err(); err != nil {
		return nil, types.StoreError("list files", "", err)
	}
	return files, nil
}

func (s *SQLiteStorage) ListFiles(ctx context.Context) ([]*types.SourceFile, error) {
	return s.listFilesWithQuerier(ctx, s.querier())
}

// Chunk operations

const chunkColumns = `
	c.id, c.file_id, f.path, c.ordinal_index, c.chunk_type, c.content,
	c.line_start, c.line_end, c.metadata, c.parent_chunk_id
`

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanChunk reads one row selected with chunkColumns plus any extra columns
func scanChunk(row rowScanner, extra ...interface{}) (*types.Chunk, error) {
	var c types.Chunk
	var chunkType, metadata string
	var parent sql.NullInt64

	dest := []interface{}{
		&c.ID, &c.FileID, &c.FilePath, &c.OrdinalIndex, &chunkType, &c.Content,
		&c.LineStart, &c.LineEnd, &metadata, &parent,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	c.ChunkType = types.ChunkType(chunkType)
	if parent.Valid {
		id := parent.Int64
		c.ParentChunkID = &id
	}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &c.Metadata); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", c.ID, err)
		}
	}
	return &c, nil
}

func collectChunks(rows *sql.Rows) ([]*types.Chunk, error) {
	chunks := make([]*types.Chunk, 0)
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStorage) deleteChunksForFileWithQuerier(ctx context.Context, q querier, fileID int64) (int, error) {
	result, err := q.ExecContext(ctx, "DELETE FROM chunks WHERE file_id = ?", fileID)
	if err != nil {
		return 0, types.StoreError("delete chunks", "", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, types.StoreError("delete chunks", "", err)
	}
	return int(n), nil
}

func (s *SQLiteStorage) DeleteChunksForFile(ctx context.Context, fileID int64) (int, error) {
	return s.deleteChunksForFileWithQuerier(ctx, s.querier(), fileID)
}

func (s *SQLiteStorage) insertChunkWithQuerier(ctx context.Context, q querier, chunk *types.Chunk) (int64, error) {
	if err := chunk.Validate(); err != nil {
		return 0, err
	}

	metadata, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return 0, types.StoreError("insert chunk", chunk.FilePath, err)
	}

	query := `
		INSERT INTO chunks (file_id, ordinal_index, chunk_type, content, line_start, line_end, metadata, parent_chunk_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	var parent interface{}
	if chunk.ParentChunkID != nil {
		parent = *chunk.ParentChunkID
	}
	result, err := q.ExecContext(ctx, query,
		chunk.FileID, chunk.OrdinalIndex, string(chunk.ChunkType), chunk.Content,
		chunk.LineStart, chunk.LineEnd, string(metadata), parent)
	if err != nil {
		return 0, types.StoreError("insert chunk", chunk.FilePath, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, types.StoreError("insert chunk", chunk.FilePath, err)
	}
	chunk.ID = id
	return id, nil
}

func (s *SQLiteStorage) InsertChunk(ctx context.Context, chunk *types.Chunk) (int64, error) {
	return s.insertChunkWithQuerier(ctx, s.querier(), chunk)
}

func (s *SQLiteStorage) getChunkWithQuerier(ctx context.Context, q querier, chunkID int64) (*types.Chunk, error) {
	query := `SELECT ` + chunkColumns + `
		FROM chunks c
		INNER JOIN files f ON c.file_id = f.id
		WHERE c.id = ?
	`
	c, err := scanChunk(q.QueryRowContext(ctx, query, chunkID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, types.StoreError("get chunk", "", err)
	}
	return c, nil
}

func (s *SQLiteStorage) GetChunk(ctx context.Context, chunkID int64) (*types.Chunk, error) {
	return s.getChunkWithQuerier(ctx, s.querier(), chunkID)
}

func (s *SQLiteStorage) findChunksByFileWithQuerier(ctx context.Context, q querier, path string) ([]*types.Chunk, error) {
	query := `SELECT ` + chunkColumns + `
		FROM chunks c
		INNER JOIN files f ON c.file_id = f.id
		WHERE f.path = ?
		ORDER BY c.ordinal_index
	`
	rows, err := q.QueryContext(ctx, query, path)
	if err != nil {
		return nil, types.StoreError("find chunks", path, err)
	}
	defer func() { _ = rows.Close() }()

	chunks, err := collectChunks(rows)
	if err != nil {
		return nil, types.StoreError("find chunks", path, err)
	}
	return chunks, nil
}

func (s *SQLiteStorage) FindChunksByFile(ctx context.Context, path string) ([]*types.Chunk, error) {
	return s.findChunksByFileWithQuerier(ctx, s.querier(), path)
}

// relatedChunksWithQuerier returns chunks of the same file as chunkID, nearest
// by start line first. An unknown chunk yields no rows.
func (s *SQLiteStorage) relatedChunksWithQuerier(ctx context.Context, q querier, chunkID int64, limit int) ([]*types.Chunk, error) {
	query := `SELECT ` + chunkColumns + `
		FROM chunks ref
		INNER JOIN chunks c ON c.file_id = ref.file_id AND c.id != ref.id
		INNER JOIN files f ON c.file_id = f.id
		WHERE ref.id = ?
		ORDER BY abs(c.line_start - ref.line_start), c.id
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, query, chunkID, limit)
	if err != nil {
		return nil, types.StoreError("related chunks", "", err)
	}
	defer func() { _ = rows.Close() }()

	chunks, err := collectChunks(rows)
	if err != nil {
		return nil, types.StoreError("related chunks", "", err)
	}
	return chunks, nil
}

func (s *SQLiteStorage) RelatedChunks(ctx context.Context, chunkID int64, limit int) ([]*types.Chunk, error) {
	return s.relatedChunksWithQuerier(ctx, s.querier(), chunkID, limit)
}

// Embedding operations

func (s *SQLiteStorage) insertEmbeddingWithQuerier(ctx context.Context, q querier, embedding *Embedding) error {
	if len(embedding.Vector) == 0 {
		return types.StoreError("insert embedding", "", errors.New("empty vector"))
	}
	if embedding.Dimension == 0 {
		embedding.Dimension = len(embedding.Vector)
	}
	if embedding.Dimension != len(embedding.Vector) {
		return types.StoreError("insert embedding", "",
			fmt.Errorf("dimension %d does not match vector length %d", embedding.Dimension, len(embedding.Vector)))
	}

	query := `
		INSERT INTO embeddings (chunk_id, model, dimensions, vector, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id, model) DO UPDATE SET
			dimensions = excluded.dimensions,
			vector = excluded.vector,
			created_at = excluded.created_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		embedding.ChunkID, embedding.Model, embedding.Dimension,
		serializeVector(embedding.Vector), now).Scan(&embedding.ID)
	if err != nil {
		return types.StoreError("insert embedding", "", err)
	}
	embedding.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) InsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return s.insertEmbeddingWithQuerier(ctx, s.querier(), embedding)
}

// Search operations

// textSearchWithQuerier matches pattern as a case-insensitive substring.
// Functions rank before tables, then everything else, then by position.
func (s *SQLiteStorage) textSearchWithQuerier(ctx context.Context, q querier, pattern string, limit int) ([]*types.Chunk, error) {
	query := `SELECT ` + chunkColumns + `
		FROM chunks c
		INNER JOIN files f ON c.file_id = f.id
		WHERE instr(lower(c.content), lower(?)) > 0
		ORDER BY
			CASE c.chunk_type WHEN 'function' THEN 0 WHEN 'table' THEN 1 ELSE 2 END,
			c.line_start, c.id
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, query, pattern, limit)
	if err != nil {
		return nil, types.StoreError("text search", "", err)
	}
	defer func() { _ = rows.Close() }()

	chunks, err := collectChunks(rows)
	if err != nil {
		return nil, types.StoreError("text search", "", err)
	}
	return chunks, nil
}

func (s *SQLiteStorage) TextSearch(ctx context.Context, pattern string, limit int) ([]*types.Chunk, error) {
	return s.textSearchWithQuerier(ctx, s.querier(), pattern, limit)
}

func (s *SQLiteStorage) VectorSearch(ctx context.Context, vector []float32, model string, limit int) ([]VectorResult, error) {
	return searchVector(ctx, s.querier(), vector, model, limit)
}

// Status operations

func (s *SQLiteStorage) getStatsWithQuerier(ctx context.Context, q querier) (*types.Stats, error) {
	stats := &types.Stats{
		ChunksByType:    make(map[string]int),
		EmbeddingModels: make(map[string]int),
	}

	counts := []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM files", &stats.TotalFiles},
		{"SELECT COUNT(*) FROM chunks", &stats.TotalChunks},
		{"SELECT COUNT(DISTINCT chunk_id) FROM embeddings", &stats.ChunksWithEmbeddings},
	}
	for _, c := range counts {
		if err := q.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, types.StoreError("stats", "", err)
		}
	}

	groups := []struct {
		query string
		dst   map[string]int
	}{
		{"SELECT chunk_type, COUNT(*) FROM chunks GROUP BY chunk_type", stats.ChunksByType},
		{"SELECT model, COUNT(*) FROM embeddings GROUP BY model", stats.EmbeddingModels},
	}
	for _, g := range groups {
		if err := scanGroupCounts(ctx, q, g.query, g.dst); err != nil {
			return nil, types.StoreError("stats", "", err)
		}
	}

	return stats, nil
}

func scanGroupCounts(ctx context.Context, q querier, query string, dst map[string]int) error {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		dst[key] = n
	}
	return rows.Err()
}

func (s *SQLiteStorage) GetStats(ctx context.Context) (*types.Stats, error) {
	return s.getStatsWithQuerier(ctx, s.querier())
}

// Transaction implementations share the helpers through the tx querier

func (t *sqliteTx) FindFileByPath(ctx context.Context, path string) (*types.SourceFile, error) {
	return t.storage.findFileByPathWithQuerier(ctx, t.querier(), path)
}

func (t *sqliteTx) UpsertFile(ctx context.Context, file *types.SourceFile) error {
	return t.storage.upsertFileWithQuerier(ctx, t.querier(), file)
}

func (t *sqliteTx) DeleteFile(ctx context.Context, path string) (bool, error) {
	return t.storage.deleteFileWithQuerier(ctx, t.querier(), path)
}

func (t *sqliteTx) ListFiles(ctx context.Context) ([]*types.SourceFile, error) {
	return t.storage.listFilesWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) DeleteChunksForFile(ctx context.Context, fileID int64) (int, error) {
	return t.storage.deleteChunksForFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) InsertChunk(ctx context.Context, chunk *types.Chunk) (int64, error) {
	return t.storage.insertChunkWithQuerier(ctx, t.querier(), chunk)
}

func (t *sqliteTx) GetChunk(ctx context.Context, chunkID int64) (*types.Chunk, error) {
	return t.storage.getChunkWithQuerier(ctx, t.querier(), chunkID)
}

func (t *sqliteTx) FindChunksByFile(ctx context.Context, path string) ([]*types.Chunk, error) {
	return t.storage.findChunksByFileWithQuerier(ctx, t.querier(), path)
}

func (t *sqliteTx) RelatedChunks(ctx context.Context, chunkID int64, limit int) ([]*types.Chunk, error) {
	return t.storage.relatedChunksWithQuerier(ctx, t.querier(), chunkID, limit)
}

func (t *sqliteTx) InsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return t.storage.insertEmbeddingWithQuerier(ctx, t.querier(), embedding)
}

func (t *sqliteTx) TextSearch(ctx context.Context, pattern string, limit int) ([]*types.Chunk, error) {
	return t.storage.textSearchWithQuerier(ctx, t.querier(), pattern, limit)
}

func (t *sqliteTx) VectorSearch(ctx context.Context, vector []float32, model string, limit int) ([]VectorResult, error) {
	return searchVector(ctx, t.querier(), vector, model, limit)
}

func (t *sqliteTx) GetStats(ctx context.Context) (*types.Stats, error) {
	return t.storage.getStatsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, errors.New("nested transactions not supported")
}
