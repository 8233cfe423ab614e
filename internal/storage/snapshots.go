package storage

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/pierrec/lz4/v4"
)

// SnapshotSummary holds the metadata for a stored page snapshot.
type SnapshotSummary struct {
	ID        int64
	Rev       int
	Label     string
	Location  string
	CreatedAt time.Time
	ItemCount int
}

// SnapshotGroup is one group within a stored snapshot, in display order.
type SnapshotGroup struct {
	ID       int64 // set after insert
	Name     string
	Position int
}

// SnapshotItem is one item within a stored snapshot.
type SnapshotItem struct {
	Name       string
	GroupIndex *int // index into groups slice; nil = ungrouped
	Position   int
	GroupName  string // populated by GetSnapshot
}

// SnapshotFull is a snapshot with its groups, items and page HTML.
type SnapshotFull struct {
	SnapshotSummary
	Groups []SnapshotGroup
	Items  []SnapshotItem
	HTML   string
}

// CreateSnapshot inserts a new snapshot in a single transaction. The rev
// number is auto-assigned per location. The page HTML is stored
// lz4-compressed. Returns the assigned rev number.
func CreateSnapshot(db *sql.DB, location string, groups []SnapshotGroup, items []SnapshotItem, label, pageHTML string) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var rev int
	err = tx.QueryRow("SELECT COALESCE(MAX(rev), 0) + 1 FROM snapshots WHERE location = ?", location).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("compute next rev: %w", err)
	}

	var labelVal interface{}
	if label != "" {
		labelVal = label
	}

	body, err := CompressHTML(pageHTML)
	if err != nil {
		return 0, fmt.Errorf("compress page html: %w", err)
	}

	res, err := tx.Exec(
		"INSERT INTO snapshots (rev, label, location, item_count, html) VALUES (?, ?, ?, ?, ?)",
		rev, labelVal, location, len(items), body,
	)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	snapID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get snapshot id: %w", err)
	}

	groupIDs := make([]int64, len(groups))
	for i, g := range groups {
		res, err := tx.Exec(
			"INSERT INTO snapshot_groups (snapshot_id, name, position) VALUES (?, ?, ?)",
			snapID, g.Name, i,
		)
		if err != nil {
			return 0, fmt.Errorf("insert group %q: %w", g.Name, err)
		}
		gID, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("get group id: %w", err)
		}
		groupIDs[i] = gID
	}

	for pos, item := range items {
		var groupID *int64
		if item.GroupIndex != nil {
			idx := *item.GroupIndex
			if idx < 0 || idx >= len(groupIDs) {
				return 0, fmt.Errorf("item %q has invalid group index %d", item.Name, idx)
			}
			gid := groupIDs[idx]
			groupID = &gid
		}
		_, err := tx.Exec(
			"INSERT INTO snapshot_items (snapshot_id, group_id, name, position) VALUES (?, ?, ?, ?)",
			snapID, groupID, item.Name, pos,
		)
		if err != nil {
			return 0, fmt.Errorf("insert item %q: %w", item.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return rev, nil
}

// ListSnapshots returns all snapshots ordered by creation time descending.
func ListSnapshots(db *sql.DB) ([]SnapshotSummary, error) {
	return querySnapshots(db,
		"SELECT id, rev, label, location, created_at, item_count FROM snapshots ORDER BY created_at DESC, id DESC")
}

// ListSnapshotsByLocation returns snapshots for one location, newest first.
func ListSnapshotsByLocation(db *sql.DB, location string) ([]SnapshotSummary, error) {
	return querySnapshots(db,
		"SELECT id, rev, label, location, created_at, item_count FROM snapshots WHERE location = ? ORDER BY created_at DESC, id DESC",
		location)
}

func querySnapshots(db *sql.DB, query string, args ...interface{}) ([]SnapshotSummary, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var result []SnapshotSummary
	for rows.Next() {
		var s SnapshotSummary
		var label sql.NullString
		if err := rows.Scan(&s.ID, &s.Rev, &label, &s.Location, &s.CreatedAt, &s.ItemCount); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if label.Valid {
			s.Label = label.String
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// GetSnapshot loads a full snapshot by location and rev number. Each item's
// GroupName field is populated from the associated group, and the page HTML
// is decompressed.
func GetSnapshot(db *sql.DB, location string, rev int) (*SnapshotFull, error) {
	snap := &SnapshotFull{}

	var label sql.NullString
	var body []byte
	err := db.QueryRow(
		"SELECT id, rev, label, location, created_at, item_count, html FROM snapshots WHERE location = ? AND rev = ?",
		location, rev,
	).Scan(&snap.ID, &snap.Rev, &label, &snap.Location, &snap.CreatedAt, &snap.ItemCount, &body)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("snapshot rev %d not found for location %q", rev, location)
		}
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	if label.Valid {
		snap.Label = label.String
	}
	if len(body) > 0 {
		html, err := DecompressHTML(body)
		if err != nil {
			return nil, fmt.Errorf("decompress page html: %w", err)
		}
		snap.HTML = html
	}

	groupRows, err := db.Query(
		"SELECT id, name, position FROM snapshot_groups WHERE snapshot_id = ? ORDER BY position",
		snap.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer groupRows.Close()

	groupNameByID := make(map[int64]string)
	for groupRows.Next() {
		var g SnapshotGroup
		if err := groupRows.Scan(&g.ID, &g.Name, &g.Position); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		snap.Groups = append(snap.Groups, g)
		groupNameByID[g.ID] = g.Name
	}
	if err := groupRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}

	itemRows, err := db.Query(
		"SELECT name, group_id, position FROM snapshot_items WHERE snapshot_id = ? ORDER BY position",
		snap.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item SnapshotItem
		var groupID *int64
		if err := itemRows.Scan(&item.Name, &groupID, &item.Position); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if groupID != nil {
			item.GroupName = groupNameByID[*groupID]
		}
		snap.Items = append(snap.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}

	return snap, nil
}

// GetLatestSnapshot returns the most recent snapshot for a location.
// Returns nil, nil if no snapshots exist.
func GetLatestSnapshot(db *sql.DB, location string) (*SnapshotFull, error) {
	var rev int
	err := db.QueryRow(
		"SELECT rev FROM snapshots WHERE location = ? ORDER BY rev DESC LIMIT 1",
		location,
	).Scan(&rev)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest rev: %w", err)
	}
	return GetSnapshot(db, location, rev)
}

// DeleteSnapshot removes a snapshot by location and rev. Groups and items
// are cascade-deleted. Returns an error if the snapshot does not exist.
func DeleteSnapshot(db *sql.DB, location string, rev int) error {
	res, err := db.Exec("DELETE FROM snapshots WHERE location = ? AND rev = ?", location, rev)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("snapshot rev %d not found for location %q", rev, location)
	}
	return nil
}

// Snapshot bodies use a small framed lz4 block: 4-byte little-endian
// uncompressed size, one format byte, then the payload. The format byte
// distinguishes raw from compressed explicitly; inferring it from lengths
// would misread a compressed block that happens to match its input size.
const (
	bodyRaw = 0x00
	bodyLZ4 = 0x01
)

// CompressHTML compresses a page body for storage.
func CompressHTML(s string) ([]byte, error) {
	src := []byte(s)
	buf := make([]byte, 5+lz4.CompressBlockBound(len(src)))
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(src)))
	buf[4] = bodyLZ4

	var c lz4.Compressor
	n, err := c.CompressBlock(src, buf[5:])
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if n == 0 {
		// Incompressible input is stored raw.
		buf[4] = bodyRaw
		return append(buf[:5], src...), nil
	}
	return buf[:5+n], nil
}

// DecompressHTML reverses CompressHTML.
func DecompressHTML(data []byte) (string, error) {
	if len(data) < 5 {
		return "", fmt.Errorf("lz4 body too short (%d bytes)", len(data))
	}
	size := binary.LittleEndian.Uint32(data[:4])

	switch data[4] {
	case bodyRaw:
		if int(size) != len(data)-5 {
			return "", fmt.Errorf("lz4 raw body size mismatch: header %d, payload %d", size, len(data)-5)
		}
		return string(data[5:]), nil
	case bodyLZ4:
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(data[5:], dst)
		if err != nil {
			return "", fmt.Errorf("lz4 decompress: %w", err)
		}
		return string(dst[:n]), nil
	default:
		return "", fmt.Errorf("lz4 body has unknown format byte 0x%02x", data[4])
	}
}
