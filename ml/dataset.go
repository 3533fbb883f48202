package ml

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"
)

// Dataset is a labelled feature matrix. Labels index into Classes.
type Dataset struct {
	Features [][]float64
	Labels   []int
	Classes  []string
}

func (d *Dataset) Len() int { return len(d.Labels) }

// LoadCSV reads rows of four measurements followed by a species name. A
// header row is skipped when its first column is not numeric. Species names
// are normalised with NormalizeLabel and classes are numbered in order of
// first appearance.
func LoadCSV(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadCSV(file)
}

func ReadCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	width := len(FeatureNames())
	ds := &Dataset{}
	classIndex := make(map[string]int)
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}
		if len(record) != width+1 {
			return nil, fmt.Errorf("line %d: expected %d columns, got %d", line, width+1, len(record))
		}
		row := make([]float64, width)
		header := false
		for i := 0; i < width; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
			if err != nil {
				if line == 1 && i == 0 {
					header = true
					break
				}
				return nil, fmt.Errorf("line %d column %d: %w", line, i+1, err)
			}
			row[i] = v
		}
		if header {
			continue
		}
		species := NormalizeLabel(record[width])
		if species == "" {
			return nil, fmt.Errorf("line %d: empty species", line)
		}
		label, ok := classIndex[species]
		if !ok {
			label = len(ds.Classes)
			classIndex[species] = label
			ds.Classes = append(ds.Classes, species)
		}
		ds.Features = append(ds.Features, row)
		ds.Labels = append(ds.Labels, label)
	}
	if ds.Len() == 0 {
		return nil, errors.New("dataset is empty")
	}
	return ds, nil
}

// Split shuffles the rows with seed and returns the train and test parts.
// testRatio outside (0, 1) falls back to 0.2.
func (d *Dataset) Split(testRatio float64, seed int64) (train, test *Dataset) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(d.Len())

	split := d.Len() - int(float64(d.Len())*testRatio)
	train = &Dataset{Classes: d.Classes}
	test = &Dataset{Classes: d.Classes}
	for i, idx := range indices {
		target := train
		if i >= split {
			target = test
		}
		target.Features = append(target.Features, d.Features[idx])
		target.Labels = append(target.Labels, d.Labels[idx])
	}
	return train, test
}
