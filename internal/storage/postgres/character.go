package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aethelgard/server/internal/game/character"
)

// ErrCharacterNotFound is returned when a character lookup yields no results.
var ErrCharacterNotFound = errors.New("character not found")

// ErrCharacterNameTaken is returned when creating a character with a name
// already used by the user.
var ErrCharacterNameTaken = errors.New("character name already taken")

const characterColumns = `id, user_id, name, location_id, active, stats, created_at, updated_at`

// CharacterRepository provides character persistence operations.
type CharacterRepository struct {
	db *pgxpool.Pool
}

// NewCharacterRepository creates a CharacterRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCharacterRepository(db *pgxpool.Pool) *CharacterRepository {
	return &CharacterRepository{db: db}
}

func scanCharacter(row pgx.Row) (*character.Character, error) {
	var c character.Character
	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.LocationID, &c.Active, &c.Stats,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a new character and returns it with ID and timestamps set.
//
// Precondition: c.UserID and c.Name must be non-empty.
// Postcondition: Returns the created character with ID set, or
// ErrCharacterNameTaken on duplicate (user_id, name).
func (r *CharacterRepository) Create(ctx context.Context, c *character.Character) (*character.Character, error) {
	id := c.ID
	if id == "" {
		id = uuid.NewString()
	}
	out, err := scanCharacter(r.db.QueryRow(ctx, `
		INSERT INTO characters (id, user_id, name, location_id, active, stats)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+characterColumns,
		id, c.UserID, c.Name, c.LocationID, c.Active, c.Stats,
	))
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrCharacterNameTaken
		}
		return nil, fmt.Errorf("inserting character: %w", err)
	}
	return out, nil
}

// GetByID retrieves a character by its primary key.
//
// Postcondition: Returns the Character or ErrCharacterNotFound.
func (r *CharacterRepository) GetByID(ctx context.Context, id string) (*character.Character, error) {
	c, err := scanCharacter(r.db.QueryRow(ctx, `
		SELECT `+characterColumns+`
		FROM characters WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCharacterNotFound
		}
		return nil, fmt.Errorf("querying character: %w", err)
	}
	return c, nil
}

// FindActiveByIdentifier resolves an active character by character ID, user
// ID, or name, in that order of precedence.
//
// Postcondition: Returns the Character, or ErrCharacterNotFound when no
// active character matches.
func (r *CharacterRepository) FindActiveByIdentifier(ctx context.Context, ident string) (*character.Character, error) {
	c, err := scanCharacter(r.db.QueryRow(ctx, `
		SELECT `+characterColumns+`
		FROM characters
		WHERE active AND (id = $1 OR user_id = $1 OR name = $1)
		ORDER BY (id = $1) DESC, (user_id = $1) DESC
		LIMIT 1`,
		ident,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCharacterNotFound
		}
		return nil, fmt.Errorf("querying character by identifier: %w", err)
	}
	return c, nil
}

// ListActiveAtLocation returns all active characters at the location,
// ordered by name.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *CharacterRepository) ListActiveAtLocation(ctx context.Context, locationID string) ([]*character.Character, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+characterColumns+`
		FROM characters
		WHERE active AND location_id = $1
		ORDER BY name ASC`,
		locationID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing characters: %w", err)
	}
	defer rows.Close()

	chars := make([]*character.Character, 0)
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning character row: %w", err)
		}
		chars = append(chars, c)
	}
	return chars, rows.Err()
}

// SaveStats persists the character's current stats map.
//
// Precondition: c.ID must reference an existing character.
// Postcondition: Returns nil on success, ErrCharacterNotFound if no row
// updated.
func (r *CharacterRepository) SaveStats(ctx context.Context, c *character.Character) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE characters SET stats = $2, updated_at = NOW()
		WHERE id = $1`,
		c.ID, c.Stats,
	)
	if err != nil {
		return fmt.Errorf("saving character stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCharacterNotFound
	}
	return nil
}
