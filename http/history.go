package http

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"irisapi/db"
)

// History keeps the most recently served predictions in memory so they can
// be looked up by request id without touching the database.
type History struct {
	cache *lru.Cache[string, db.PredictionRecord]
}

// NewHistory keeps at most size records.
func NewHistory(size int) (*History, error) {
	cache, err := lru.New[string, db.PredictionRecord](size)
	if err != nil {
		return nil, err
	}
	return &History{cache: cache}, nil
}

func (h *History) Add(rec db.PredictionRecord) {
	h.cache.Add(rec.ID, rec)
}

func (h *History) Get(id string) (db.PredictionRecord, bool) {
	return h.cache.Peek(id)
}

// Recent returns up to limit records, newest first.
func (h *History) Recent(limit int) []db.PredictionRecord {
	keys := h.cache.Keys()
	records := make([]db.PredictionRecord, 0, min(limit, len(keys)))
	for i := len(keys) - 1; i >= 0 && len(records) < limit; i-- {
		if rec, ok := h.cache.Peek(keys[i]); ok {
			records = append(records, rec)
		}
	}
	return records
}

// Len reports how many records are held.
func (h *History) Len() int {
	return h.cache.Len()
}
