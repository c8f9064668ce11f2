package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sigreer/lsblkpro/internal/snapshot"
)

// SaveSnapshot stores doc and returns its new id
func (d *DB) SaveSnapshot(doc *snapshot.Document, label string) (string, error) {
	blob, err := snapshot.Marshal(doc, snapshot.FormatCBOR)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	partitions := 0
	for _, dev := range doc.Devices {
		partitions += len(dev.Partitions)
	}

	id := uuid.NewString()
	_, err = d.conn.Exec(`
		INSERT INTO snapshots (id, hostname, label, taken_at, device_count, partition_count, schema_version, document)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, doc.Hostname, nullString(label), doc.TakenAt.UTC(), len(doc.Devices), partitions, doc.Version, blob)
	if err != nil {
		return "", fmt.Errorf("failed to save snapshot: %w", err)
	}
	return id, nil
}

// ListSnapshots returns the newest snapshots first
func (d *DB) ListSnapshots(limit int) ([]*SnapshotRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := d.conn.Query(`
		SELECT id, hostname, label, taken_at, device_count, partition_count, schema_version
		FROM snapshots
		ORDER BY taken_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var records []*SnapshotRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetSnapshot loads a snapshot by full id or unique id prefix
func (d *DB) GetSnapshot(id string) (*SnapshotRecord, *snapshot.Document, error) {
	fullID, err := d.resolveID(id)
	if err != nil {
		return nil, nil, err
	}

	row := d.conn.QueryRow(`
		SELECT id, hostname, label, taken_at, device_count, partition_count, schema_version, document
		FROM snapshots
		WHERE id = ?
	`, fullID)

	var rec SnapshotRecord
	var label sql.NullString
	var blob []byte
	err = row.Scan(&rec.ID, &rec.Hostname, &label, &rec.TakenAt, &rec.DeviceCount,
		&rec.PartitionCount, &rec.SchemaVersion, &blob)
	if err == sql.ErrNoRows {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	rec.Label = label.String

	doc, err := snapshot.Unmarshal(blob, snapshot.FormatCBOR)
	if err != nil {
		return nil, nil, err
	}
	return &rec, doc, nil
}

// DeleteSnapshot removes a snapshot by full id or unique id prefix
func (d *DB) DeleteSnapshot(id string) error {
	fullID, err := d.resolveID(id)
	if err != nil {
		return err
	}
	if _, err := d.conn.Exec("DELETE FROM snapshots WHERE id = ?", fullID); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// PruneSnapshots keeps the newest keep snapshots and returns how many were removed
func (d *DB) PruneSnapshots(keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	result, err := d.conn.Exec(`
		DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY taken_at DESC, id LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return result.RowsAffected()
}

func (d *DB) resolveID(prefix string) (string, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return "", fmt.Errorf("%w: empty id", ErrNotFound)
	}

	rows, err := d.conn.Query("SELECT id FROM snapshots WHERE id LIKE ? ESCAPE '\\' LIMIT 2", escapeLike(prefix)+"%")
	if err != nil {
		return "", fmt.Errorf("failed to look up snapshot: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return ids[0], nil
	}
	for _, id := range ids {
		if id == prefix {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrAmbiguousID, prefix)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func scanRecord(rows *sql.Rows) (*SnapshotRecord, error) {
	var rec SnapshotRecord
	var label sql.NullString
	if err := rows.Scan(&rec.ID, &rec.Hostname, &label, &rec.TakenAt, &rec.DeviceCount,
		&rec.PartitionCount, &rec.SchemaVersion); err != nil {
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	rec.Label = label.String
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
