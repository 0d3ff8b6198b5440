// Package followup stores human-authored expected responses together with the
// follow-up questions an interviewer asks when a candidate gives that answer.
package followup

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const sqliteFollowUpSchemaV1 = `
CREATE TABLE IF NOT EXISTS human_responses (
    response_id INTEGER PRIMARY KEY AUTOINCREMENT,
    expected_response TEXT NOT NULL,
    created_at_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS human_responses_expected ON human_responses (expected_response);
CREATE TABLE IF NOT EXISTS follow_up_questions (
    follow_up_id INTEGER PRIMARY KEY AUTOINCREMENT,
    response_id INTEGER NOT NULL REFERENCES human_responses (response_id) ON DELETE CASCADE,
    follow_up_question TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS follow_up_questions_response ON follow_up_questions (response_id);
`

var (
	ErrNotFound      = errors.New("response not found")
	ErrEmptyResponse = errors.New("expected response is empty")
	ErrStoreClosed   = errors.New("follow-up store closed")
)

type FollowUpQuestion struct {
	ID       int64  `json:"follow_up_id,omitempty"`
	Question string `json:"follow_up_question"`
}

type Response struct {
	ID                int64              `json:"response_id"`
	ExpectedResponse  string             `json:"expected_response"`
	FollowUpQuestions []FollowUpQuestion `json:"follow_up_questions"`
}

// Store persists responses in a SQLite database.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	rng    *rand.Rand
	rngMu  sync.Mutex
	closed bool
}

func DSNForFile(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("sqlite follow-up store: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path), nil
}

// Open opens the database at path, creating the schema if needed.
func Open(path string) (*Store, error) {
	dsn, err := DSNForFile(path)
	if err != nil {
		return nil, err
	}
	return NewStore(dsn, rand.New(rand.NewSource(time.Now().UnixNano())))
}

func NewStore(dsn string, rng *rand.Rand) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite follow-up store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, rng: rng}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "migrating follow-up store")
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return err
	}
	_, err := s.db.Exec(sqliteFollowUpSchemaV1)
	return err
}

// Create inserts the response and its follow-up questions in one transaction
// and returns it with ids assigned. Blank follow-up questions are skipped.
func (s *Store) Create(ctx context.Context, expectedResponse string, questions []string) (*Response, error) {
	expectedResponse = strings.TrimSpace(expectedResponse)
	if expectedResponse == "" {
		return nil, ErrEmptyResponse
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO human_responses (expected_response, created_at_ms) VALUES (?, ?)`,
		expectedResponse, time.Now().UnixMilli())
	if err != nil {
		return nil, errors.Wrap(err, "inserting response")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	ret := &Response{
		ID:                id,
		ExpectedResponse:  expectedResponse,
		FollowUpQuestions: []FollowUpQuestion{},
	}
	for _, q := range questions {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO follow_up_questions (response_id, follow_up_question) VALUES (?, ?)`,
			id, q)
		if err != nil {
			return nil, errors.Wrap(err, "inserting follow-up question")
		}
		qid, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ret.FollowUpQuestions = append(ret.FollowUpQuestions, FollowUpQuestion{ID: qid, Question: q})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *Store) Get(ctx context.Context, id int64) (*Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	ret := &Response{}
	err := s.db.QueryRowContext(ctx,
		`SELECT response_id, expected_response FROM human_responses WHERE response_id = ?`, id).
		Scan(&ret.ID, &ret.ExpectedResponse)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "id %d", id)
	}
	if err != nil {
		return nil, err
	}
	return s.loadQuestions(ctx, ret)
}

// FindByExpectedResponse returns the oldest response whose expected text
// equals text exactly.
func (s *Store) FindByExpectedResponse(ctx context.Context, text string) (*Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	ret := &Response{}
	err := s.db.QueryRowContext(ctx,
		`SELECT response_id, expected_response FROM human_responses
WHERE expected_response = ? ORDER BY response_id ASC LIMIT 1`, text).
		Scan(&ret.ID, &ret.ExpectedResponse)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.loadQuestions(ctx, ret)
}

func (s *Store) loadQuestions(ctx context.Context, r *Response) (*Response, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT follow_up_id, follow_up_question FROM follow_up_questions
WHERE response_id = ? ORDER BY follow_up_id ASC`, r.ID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	r.FollowUpQuestions = []FollowUpQuestion{}
	for rows.Next() {
		var q FollowUpQuestion
		if err := rows.Scan(&q.ID, &q.Question); err != nil {
			return nil, err
		}
		r.FollowUpQuestions = append(r.FollowUpQuestions, q)
	}
	return r, rows.Err()
}

// RandomFollowUp picks one of the response's follow-up questions uniformly.
// ok is false when the response has none.
func (s *Store) RandomFollowUp(r *Response) (string, bool) {
	if r == nil || len(r.FollowUpQuestions) == 0 {
		return "", false
	}
	s.rngMu.Lock()
	i := s.rng.Intn(len(r.FollowUpQuestions))
	s.rngMu.Unlock()
	return r.FollowUpQuestions[i].Question, true
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
