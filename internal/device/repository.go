package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dewansh/dewhome-core/internal/infrastructure/database"
)

// Repository defines the interface for device persistence operations.
type Repository interface {
	// GetByID retrieves a device. Returns ErrDeviceNotFound if it does not exist.
	GetByID(ctx context.Context, id int64) (*Device, error)

	// List retrieves all devices ordered by ID.
	List(ctx context.Context) ([]Device, error)

	// Create inserts a device and assigns its ID.
	// Returns ErrPinInUse if another device holds the pin.
	Create(ctx context.Context, device *Device) error

	// Delete removes a device.
	// Returns ErrDeviceNotFound or ErrDeviceInUse.
	Delete(ctx context.Context, id int64) error

	// UpdateState persists a new output state.
	UpdateState(ctx context.Context, id int64, state State, at time.Time) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectDevice = `
	SELECT id, name, icon, pin_number, state, created_at, updated_at
	FROM devices`

// GetByID retrieves a device by its ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*Device, error) {
	row := r.db.QueryRowContext(ctx, selectDevice+" WHERE id = ?", id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// List retrieves all devices.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, selectDevice+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Create inserts a new device. CreatedAt and UpdatedAt are set here.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	now := time.Now().UTC()
	device.CreatedAt = now
	device.UpdatedAt = now

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (name, icon, pin_number, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		device.Name,
		device.Icon,
		device.PinNumber,
		string(device.State),
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: pin %d", ErrPinInUse, device.PinNumber)
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading device id: %w", err)
	}
	device.ID = id
	return nil
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: device %d", ErrDeviceInUse, id)
		}
		return fmt.Errorf("deleting device: %w", err)
	}
	return requireOneRow(result)
}

// UpdateState persists a device's output state.
func (r *SQLiteRepository) UpdateState(ctx context.Context, id int64, state State, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE devices SET state = ?, updated_at = ? WHERE id = ?",
		string(state), at.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating device state: %w", err)
	}
	return requireOneRow(result)
}

func requireOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*Device, error) {
	var d Device
	var state, createdAt, updatedAt string

	if err := row.Scan(&d.ID, &d.Name, &d.Icon, &d.PinNumber, &state, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	d.State = State(state)
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled
	return &d, nil
}
