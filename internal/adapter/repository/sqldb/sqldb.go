// Package sqldb implements the URL repository on top of sqlx. Queries are
// written with ? placeholders and rebound for the driver in use, so the same
// repository serves PostgreSQL (pgx) and SQLite (go-sqlite3).
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/entity"
)

const (
	uniqueViolationErrCode = "23505"
	urlColumns             = "id, short_code, original_url, created, expiry"
)

func isUniqueViolationError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == uniqueViolationErrCode
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}

	return false
}

type urlDB struct {
	ID          string         `db:"id"`
	ShortCode   string         `db:"short_code"`
	OriginalURL string         `db:"original_url"`
	Created     time.Time      `db:"created"`
	Expiry      sql.NullString `db:"expiry"`
}

func (u *urlDB) toEntity() *entity.URL {
	url := &entity.URL{
		ID:          u.ID,
		ShortCode:   u.ShortCode,
		OriginalURL: u.OriginalURL,
		CreatedAt:   u.Created.UTC(),
	}

	if u.Expiry.Valid {
		if d, ok := entity.ParseExpiry(u.Expiry.String); ok {
			url.Expiry = &d
		}
	}

	return url
}

func expiryText(d *time.Duration) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: entity.FormatExpiry(*d), Valid: true}
}

type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{db: db}
}

// List returns the URLs selected by filter, newest first.
func (r *URLRepository) List(ctx context.Context, filter entity.URLFilter) ([]*entity.URL, error) {
	const op = "adapter.repository.sqldb.URLRepository.List"

	query := `SELECT ` + urlColumns + ` FROM urls`
	var args []any

	if len(filter.OriginalURLs) > 0 {
		var err error

		query, args, err = sqlx.In(query+` WHERE original_url IN (?)`, filter.OriginalURLs)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to build filter: %w", op, err)
		}
	}

	query = r.db.Rebind(query + ` ORDER BY created DESC`)

	var rows []urlDB

	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: failed to select from urls table: %w", op, err)
	}

	urls := make([]*entity.URL, 0, len(rows))
	for i := range rows {
		urls = append(urls, rows[i].toEntity())
	}

	return urls, nil
}

// Create stores url under a newly assigned id.
func (r *URLRepository) Create(ctx context.Context, url *entity.URL) (*entity.URL, error) {
	const op = "adapter.repository.sqldb.URLRepository.Create"

	query := r.db.Rebind(`INSERT INTO urls (` + urlColumns + `) VALUES (?, ?, ?, ?, ?)`)

	created := &entity.URL{
		ID:          uuid.NewString(),
		ShortCode:   url.ShortCode,
		OriginalURL: url.OriginalURL,
		CreatedAt:   url.CreatedAt.UTC(),
	}
	if url.Expiry != nil {
		expiry := *url.Expiry
		created.Expiry = &expiry
	}

	_, err := r.db.ExecContext(ctx, query,
		created.ID, created.ShortCode, created.OriginalURL, created.CreatedAt, expiryText(created.Expiry))
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to insert into urls table: %w", op, err)
	}

	return created, nil
}

// Update applies the non-nil fields of upd to the URL with the given id and
// returns the resulting row.
func (r *URLRepository) Update(ctx context.Context, id string, upd entity.URLUpdate) (*entity.URL, error) {
	const op = "adapter.repository.sqldb.URLRepository.Update"

	var (
		sets []string
		args []any
	)

	if upd.ShortCode != nil {
		sets = append(sets, "short_code = ?")
		args = append(args, *upd.ShortCode)
	}
	if upd.CreatedAt != nil {
		sets = append(sets, "created = ?")
		args = append(args, upd.CreatedAt.UTC())
	}
	if upd.Expiry != nil {
		sets = append(sets, "expiry = ?")
		args = append(args, expiryText(upd.Expiry))
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback()

	if len(sets) > 0 {
		query := tx.Rebind(`UPDATE urls SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`)

		res, err := tx.ExecContext(ctx, query, append(args, id)...)
		if err != nil {
			if isUniqueViolationError(err) {
				return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
			}

			return nil, fmt.Errorf("%s: failed to update urls table row: %w", op, err)
		}

		rowsAffected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
		}

		if rowsAffected == 0 {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}
	}

	var row urlDB

	query := tx.Rebind(`SELECT ` + urlColumns + ` FROM urls WHERE id = ?`)
	if err := tx.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from urls table: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return row.toEntity(), nil
}
