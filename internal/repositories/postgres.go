package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clipvault/backend/internal/db"
	"github.com/clipvault/backend/internal/models"
)

const pgUniqueViolation = "23505"

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user together with its initial provider identities.
// The identity primary key guarantees no identity ends up linked twice even
// under concurrent logins.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
        INSERT INTO users (id, name, picture, created_at)
        VALUES ($1, $2, $3, $4)
    `, user.ID, user.Name, user.Picture, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	for _, identity := range user.Identities {
		_, err = tx.Exec(ctx, `
            INSERT INTO user_identities (identity, user_id)
            VALUES ($1, $2)
        `, identity, user.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("insert user identity: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit user: %w", err)
	}

	return nil
}

// FindByID fetches a user and its linked identities by user id.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT u.id, u.name, u.picture, u.created_at,
               COALESCE(array_agg(i.identity ORDER BY i.identity) FILTER (WHERE i.identity IS NOT NULL), '{}')
        FROM users u
        LEFT JOIN user_identities i ON i.user_id = u.id
        WHERE u.id = $1
        GROUP BY u.id
    `, id)

	return scanUser(row)
}

// FindByIdentity fetches the user owning the provided provider identity.
func (r *PostgresUserRepository) FindByIdentity(ctx context.Context, identity string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT u.id, u.name, u.picture, u.created_at,
               COALESCE(array_agg(i.identity ORDER BY i.identity) FILTER (WHERE i.identity IS NOT NULL), '{}')
        FROM users u
        JOIN user_identities owner ON owner.user_id = u.id AND owner.identity = $1
        LEFT JOIN user_identities i ON i.user_id = u.id
        GROUP BY u.id
    `, identity)

	return scanUser(row)
}

// AttachIdentity links an additional provider identity to an existing user.
func (r *PostgresUserRepository) AttachIdentity(ctx context.Context, userID, identity string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO user_identities (identity, user_id)
        VALUES ($1, $2)
    `, identity, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("insert user identity: %w", err)
	}

	return nil
}

// UpdateProfile refreshes the display name and picture for a user.
func (r *PostgresUserRepository) UpdateProfile(ctx context.Context, userID, name, picture string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET name = $2, picture = $3
        WHERE id = $1
    `, userID, name, picture)
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Name, &user.Picture, &user.CreatedAt, &user.Identities); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("scan user: %w", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

const userFileColumns = `id, user_id, folder_id, name, kind, play_id, duration_millis, width, height, thumbnail, mime_type, size_bytes, created_at`

// PostgresFileRepository provides PostgreSQL-backed persistence for the
// virtual file tree. The unique index on (user_id, folder_id, name) closes
// the race between concurrent writes targeting the same name.
type PostgresFileRepository struct {
	pool db.Pool
}

// NewPostgresFileRepository constructs a file repository backed by PostgreSQL.
func NewPostgresFileRepository(pool db.Pool) *PostgresFileRepository {
	return &PostgresFileRepository{pool: pool}
}

// Insert persists a new tree node.
func (r *PostgresFileRepository) Insert(ctx context.Context, file models.UserFile) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	video := file.Metadata.Video
	if video == nil {
		video = &models.VideoInfo{}
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO user_files (id, user_id, folder_id, name, kind, play_id, duration_millis, width, height, thumbnail, mime_type, size_bytes, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `, file.ID, file.UserID, file.FolderID, file.Name, string(file.Metadata.Kind),
		video.PlayID, video.DurationMillis, video.Width, video.Height,
		video.Thumbnail, video.MimeType, video.SizeBytes, file.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user file: %w", err)
	}

	return nil
}

// FindByID fetches a single node owned by the user.
func (r *PostgresFileRepository) FindByID(ctx context.Context, userID, fileID string) (models.UserFile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.UserFile{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT `+userFileColumns+`
        FROM user_files
        WHERE user_id = $1 AND id = $2
    `, userID, fileID)

	return scanUserFile(row)
}

// ListFolder returns the live children of a folder ordered by name.
func (r *PostgresFileRepository) ListFolder(ctx context.Context, userID, folderID string) ([]models.UserFile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+userFileColumns+`
        FROM user_files
        WHERE user_id = $1 AND folder_id = $2
        ORDER BY lower(name), name
    `, userID, folderID)
	if err != nil {
		return nil, fmt.Errorf("query folder contents: %w", err)
	}
	defer rows.Close()

	var files []models.UserFile
	for rows.Next() {
		file, err := scanUserFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folder contents: %w", err)
	}

	return files, nil
}

// CountChildren reports how many live entries a folder holds.
func (r *PostgresFileRepository) CountChildren(ctx context.Context, userID, folderID string) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var count int64
	err = conn.QueryRow(ctx, `
        SELECT COUNT(*) FROM user_files
        WHERE user_id = $1 AND folder_id = $2
    `, userID, folderID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count folder children: %w", err)
	}

	return count, nil
}

// Update applies a rename, a move, or both to a node in one statement.
// Nil fields keep their current value, so a sibling-name violation on the
// combined result leaves the row untouched.
func (r *PostgresFileRepository) Update(ctx context.Context, userID, fileID string, name, folderID *string) (models.UserFile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.UserFile{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE user_files
        SET name = COALESCE($3, name), folder_id = COALESCE($4, folder_id)
        WHERE user_id = $1 AND id = $2
        RETURNING `+userFileColumns+`
    `, userID, fileID, name, folderID)

	file, err := scanUserFile(row)
	if err != nil {
		if isUniqueViolation(err) {
			return models.UserFile{}, ErrConflict
		}
		return models.UserFile{}, err
	}

	return file, nil
}

// MoveMany relocates a batch of nodes into folderID in one atomic statement.
// Entries whose name already exists in the destination are left where they
// are; when two batch entries share a name, the lexically smaller id wins
// and the other stays behind. The returned count covers only rows actually
// relocated.
func (r *PostgresFileRepository) MoveMany(ctx context.Context, userID string, fileIDs []string, folderID string) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE user_files AS f
        SET folder_id = $3
        WHERE f.user_id = $1
          AND f.id = ANY($2)
          AND f.folder_id <> $3
          AND NOT EXISTS (
              SELECT 1 FROM user_files s
              WHERE s.user_id = f.user_id
                AND s.folder_id = $3
                AND s.name = f.name
                AND s.id <> f.id
          )
          AND NOT EXISTS (
              SELECT 1 FROM user_files b
              WHERE b.user_id = f.user_id
                AND b.id = ANY($2)
                AND b.folder_id <> $3
                AND b.name = f.name
                AND b.id < f.id
          )
    `, userID, fileIDs, folderID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("move user files: %w", err)
	}

	return tag.RowsAffected(), nil
}

// DeleteMany removes a batch of nodes in one atomic statement. The blocked
// set starts with batch folders that keep a child outside the batch and
// grows upward through their batch ancestors, so no removal ever orphans a
// surviving row.
func (r *PostgresFileRepository) DeleteMany(ctx context.Context, userID string, fileIDs []string) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        WITH RECURSIVE blocked (id) AS (
            SELECT f.id
            FROM user_files f
            WHERE f.user_id = $1
              AND f.id = ANY($2)
              AND EXISTS (
                  SELECT 1 FROM user_files c
                  WHERE c.user_id = $1
                    AND c.folder_id = f.id
                    AND NOT (c.id = ANY($2))
              )
            UNION
            SELECT n.folder_id
            FROM user_files n
            JOIN blocked b ON n.id = b.id
            WHERE n.user_id = $1
              AND n.folder_id = ANY($2)
        )
        DELETE FROM user_files
        WHERE user_id = $1
          AND id = ANY($2)
          AND id NOT IN (SELECT id FROM blocked)
    `, userID, fileIDs)
	if err != nil {
		return 0, fmt.Errorf("delete user files: %w", err)
	}

	return tag.RowsAffected(), nil
}

// Delete removes a node and returns its last state.
func (r *PostgresFileRepository) Delete(ctx context.Context, userID, fileID string) (models.UserFile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.UserFile{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        DELETE FROM user_files
        WHERE user_id = $1 AND id = $2
        RETURNING `+userFileColumns+`
    `, userID, fileID)

	return scanUserFile(row)
}

func scanUserFile(row pgx.Row) (models.UserFile, error) {
	var (
		file  models.UserFile
		kind  string
		video models.VideoInfo
	)

	err := row.Scan(&file.ID, &file.UserID, &file.FolderID, &file.Name, &kind,
		&video.PlayID, &video.DurationMillis, &video.Width, &video.Height,
		&video.Thumbnail, &video.MimeType, &video.SizeBytes, &file.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.UserFile{}, ErrNotFound
		}
		return models.UserFile{}, fmt.Errorf("scan user file: %w", err)
	}

	file.CreatedAt = file.CreatedAt.UTC()
	switch models.FileKind(kind) {
	case models.FileKindVideo:
		file.Metadata = models.VideoMetadata(video)
	default:
		file.Metadata = models.FolderMetadata()
	}

	return file, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ FileRepository = (*PostgresFileRepository)(nil)
