package store

import (
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const sqliteTime = "2006-01-02 15:04:05"

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// Session represents a stored session.
type Session struct {
	UserID int64
	Expiry time.Time
}

// EnsureAdmin creates the admin user, or resets its password if it exists.
func (s *Store) EnsureAdmin(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(
		`UPDATE users SET password_hash = ?, is_admin = 1 WHERE username = ?`,
		string(hash), username,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	_, err = s.db.Exec(
		`INSERT INTO users (username, password_hash, is_admin) VALUES (?, ?, 1)`,
		username, string(hash),
	)
	return err
}

// Authenticate checks credentials. Unknown users and wrong passwords both
// return (nil, nil).
func (s *Store) Authenticate(username, password string) (*User, error) {
	var u User
	var hash string
	err := s.db.QueryRow(
		`SELECT id, username, is_admin, password_hash FROM users WHERE username = ?`,
		username,
	).Scan(&u.ID, &u.Username, &u.IsAdmin, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, nil
	}
	return &u, nil
}

// GetUser returns a user by ID, or nil if it does not exist.
func (s *Store) GetUser(id int64) (*User, error) {
	var u User
	err := s.db.QueryRow(
		`SELECT id, username, is_admin FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Username, &u.IsAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SaveSession persists a session token.
func (s *Store) SaveSession(token string, userID int64, expiry time.Time) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO sessions (token, user_id, expiry) VALUES (?, ?, ?)",
		token, userID, expiry.UTC().Format(sqliteTime))
	return err
}

// LoadSessions returns all non-expired sessions.
func (s *Store) LoadSessions() (map[string]*Session, error) {
	rows, err := s.db.Query("SELECT token, user_id, expiry FROM sessions WHERE expiry > ?",
		time.Now().UTC().Format(sqliteTime))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]*Session)
	for rows.Next() {
		var token, expiryStr string
		var userID int64
		if err := rows.Scan(&token, &userID, &expiryStr); err != nil {
			return nil, err
		}
		t, err := parseTime(expiryStr)
		if err != nil {
			continue
		}
		result[token] = &Session{UserID: userID, Expiry: t}
	}
	return result, rows.Err()
}

// DeleteSession removes a session.
func (s *Store) DeleteSession(token string) error {
	_, err := s.db.Exec("DELETE FROM sessions WHERE token = ?", token)
	return err
}

// CleanExpiredSessions removes expired sessions.
func (s *Store) CleanExpiredSessions() {
	if _, err := s.db.Exec("DELETE FROM sessions WHERE expiry <= ?", time.Now().UTC().Format(sqliteTime)); err != nil {
		slog.Error("clean sessions failed", "err", err)
	}
}

// parseTime reads timestamps written by this package. The sqlite3 driver
// may hand DATETIME columns back as RFC 3339.
func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(sqliteTime, v)
}

// --- Audit log ---

type AuditEntry struct {
	ID       int64  `json:"id"`
	Time     string `json:"time"`
	Username string `json:"username"`
	Action   string `json:"action"`
	Detail   string `json:"detail"`
	IP       string `json:"ip"`
}

// Log records a dashboard action.
func (s *Store) Log(username, action, detail, ip string) {
	if _, err := s.db.Exec(
		`INSERT INTO audit_log (username, action, detail, ip) VALUES (?, ?, ?, ?)`,
		username, action, detail, ip,
	); err != nil {
		slog.Error("audit log write failed", "err", err)
	}
}

// GetAuditLog returns recent audit entries (newest first).
func (s *Store) GetAuditLog(limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, ts, username, action, COALESCE(detail,''), COALESCE(ip,'') FROM audit_log ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.Time, &e.Username, &e.Action, &e.Detail, &e.IP); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
