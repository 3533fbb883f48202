package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"irisapi/ml"
)

var ErrNotFound = errors.New("record not found")

const schema = `
CREATE TABLE IF NOT EXISTS predictions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    prediction_id TEXT NOT NULL UNIQUE,
    request_id TEXT NOT NULL,
    sepal_length REAL NOT NULL,
    sepal_width REAL NOT NULL,
    petal_length REAL NOT NULL,
    petal_width REAL NOT NULL,
    species TEXT NOT NULL,
    confidence REAL NOT NULL,
    probabilities TEXT NOT NULL,
    model_version TEXT,
    latency_us INTEGER,
    created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
CREATE INDEX IF NOT EXISTS idx_predictions_request_id ON predictions(request_id);
CREATE TABLE IF NOT EXISTS training_log (
    id INTEGER PRIMARY KEY,
    model_name VARCHAR(50),
    model_version VARCHAR(50),
    accuracy REAL,
    precision REAL,
    recall REAL,
    trained_at DATETIME,
    data_points INTEGER
);
`

// Store is the sqlite-backed log of served predictions and training runs.
type Store struct {
	db *sql.DB
}

// PredictionRecord is one served prediction. ID is unique per prediction;
// RequestID is whatever request id the call carried and may repeat when a
// client retries with the same X-Request-ID.
type PredictionRecord struct {
	ID           string                `json:"id"`
	RequestID    string                `json:"request_id,omitempty"`
	Request      ml.PredictionRequest  `json:"request"`
	Response     ml.PredictionResponse `json:"response"`
	ModelVersion string                `json:"model_version,omitempty"`
	Latency      time.Duration         `json:"latency_ns"`
	CreatedAt    time.Time             `json:"created_at"`
}

// TrainingLog is one run of the training command.
type TrainingLog struct {
	ModelName    string    `json:"model_name"`
	ModelVersion string    `json:"model_version"`
	Accuracy     float64   `json:"accuracy"`
	Precision    float64   `json:"precision"`
	Recall       float64   `json:"recall"`
	TrainedAt    time.Time `json:"trained_at"`
	DataPoints   int       `json:"data_points"`
}

// Open creates the database file and its parent directory if needed and
// applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	database, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SavePrediction appends rec to the log. rec.ID must be set.
func (s *Store) SavePrediction(ctx context.Context, rec PredictionRecord) error {
	if rec.ID == "" {
		return errors.New("prediction id required")
	}
	probs, err := json.Marshal(rec.Response.Probabilities)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO predictions (
            prediction_id, request_id, sepal_length, sepal_width, petal_length, petal_width,
            species, confidence, probabilities, model_version, latency_us, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.RequestID,
		rec.Request.SepalLength,
		rec.Request.SepalWidth,
		rec.Request.PetalLength,
		rec.Request.PetalWidth,
		rec.Response.Species,
		rec.Response.Confidence,
		string(probs),
		rec.ModelVersion,
		rec.Latency.Microseconds(),
		rec.CreatedAt.UTC(),
	)
	return err
}

const predictionColumns = `
    prediction_id, request_id, sepal_length, sepal_width, petal_length, petal_width,
    species, confidence, probabilities, model_version, latency_us, created_at`

// RecentPredictions returns up to limit predictions, newest first.
func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]PredictionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+predictionColumns+`
        FROM predictions
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]PredictionRecord, 0)
	for rows.Next() {
		rec, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetPrediction looks a prediction up by its id, returning ErrNotFound when
// there is none.
func (s *Store) GetPrediction(ctx context.Context, id string) (PredictionRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+predictionColumns+`
        FROM predictions WHERE prediction_id = ?`, id)
	rec, err := scanPrediction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return PredictionRecord{}, ErrNotFound
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrediction(row scanner) (PredictionRecord, error) {
	var rec PredictionRecord
	var probs string
	var version sql.NullString
	var latency sql.NullInt64
	err := row.Scan(
		&rec.ID,
		&rec.RequestID,
		&rec.Request.SepalLength,
		&rec.Request.SepalWidth,
		&rec.Request.PetalLength,
		&rec.Request.PetalWidth,
		&rec.Response.Species,
		&rec.Response.Confidence,
		&probs,
		&version,
		&latency,
		&rec.CreatedAt,
	)
	if err != nil {
		return PredictionRecord{}, err
	}
	if err := json.Unmarshal([]byte(probs), &rec.Response.Probabilities); err != nil {
		return PredictionRecord{}, fmt.Errorf("decode probabilities: %w", err)
	}
	rec.ModelVersion = version.String
	rec.Latency = time.Duration(latency.Int64) * time.Microsecond
	return rec, nil
}

func (s *Store) SaveTrainingLog(ctx context.Context, entry TrainingLog) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO training_log (model_name, model_version, accuracy, precision, recall, trained_at, data_points)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ModelName, entry.ModelVersion, entry.Accuracy, entry.Precision, entry.Recall,
		entry.TrainedAt.UTC(), entry.DataPoints)
	return err
}

func (s *Store) LoadTrainingLog(ctx context.Context) ([]TrainingLog, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT model_name, model_version, accuracy, precision, recall, trained_at, data_points
        FROM training_log
        ORDER BY trained_at DESC, id DESC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var entry TrainingLog
		var version sql.NullString
		if err := rows.Scan(&entry.ModelName, &version, &entry.Accuracy, &entry.Precision, &entry.Recall, &entry.TrainedAt, &entry.DataPoints); err != nil {
			return nil, err
		}
		entry.ModelVersion = version.String
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
