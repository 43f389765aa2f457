package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/ribbon/internal/capture"
	"github.com/san-kum/ribbon/internal/lineart"
	"github.com/san-kum/ribbon/internal/metrics"
)

var ErrNilArtifact = errors.New("storage: nil artifact")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

// Info is the pipeline context recorded next to an artifact.
type Info struct {
	Source     string
	Backend    string
	Extraction lineart.ExtractionParams
	Render     lineart.RenderParams
	Metrics    map[string]float64
}

type ExportMetadata struct {
	ID         string                   `json:"id"`
	SessionID  string                   `json:"session_id"`
	Kind       string                   `json:"kind"`
	MIME       string                   `json:"mime"`
	File       string                   `json:"file"`
	Bytes      int                      `json:"bytes"`
	Timestamp  time.Time                `json:"timestamp"`
	Source     string                   `json:"source,omitempty"`
	Backend    string                   `json:"backend,omitempty"`
	Width      int                      `json:"width"`
	Height     int                      `json:"height"`
	Frames     int                      `json:"frames"`
	DurationMS float64                  `json:"duration_ms"`
	Truncated  bool                     `json:"truncated"`
	Extraction lineart.ExtractionParams `json:"extraction"`
	Render     lineart.RenderParams     `json:"render"`
	Delays     *metrics.DelayStats      `json:"delays,omitempty"`
	Metrics    map[string]float64       `json:"metrics,omitempty"`
}

func (s *Store) Save(a *capture.Artifact, info Info) (string, error) {
	if a == nil {
		return "", ErrNilArtifact
	}
	created := a.Created
	if created.IsZero() {
		created = time.Now()
	}
	sid := a.SessionID
	if sid == "" {
		sid = uuid.NewString()
	}
	exportID := fmt.Sprintf("%s_%d_%.8s", a.Kind, created.Unix(), sid)
	exportDir := filepath.Join(s.baseDir, exportID)

	if err := os.MkdirAll(exportDir, 0755); err != nil {
		return "", err
	}

	file := "artifact" + a.Ext()
	if err := os.WriteFile(filepath.Join(exportDir, file), a.Data, 0644); err != nil {
		return "", err
	}

	meta := ExportMetadata{
		ID:         exportID,
		SessionID:  sid,
		Kind:       string(a.Kind),
		MIME:       a.MIME,
		File:       file,
		Bytes:      len(a.Data),
		Timestamp:  created,
		Source:     info.Source,
		Backend:    info.Backend,
		Width:      a.Width,
		Height:     a.Height,
		Frames:     a.Frames,
		DurationMS: float64(a.Duration) / float64(time.Millisecond),
		Truncated:  a.Truncated,
		Extraction: info.Extraction,
		Render:     info.Render,
		Metrics:    info.Metrics,
	}
	if len(a.Delays) > 0 {
		st := metrics.SummariseDelays(a.Delays)
		meta.Delays = &st
	}

	metaFile, err := os.Create(filepath.Join(exportDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if len(a.Delays) == 0 {
		return exportID, nil
	}
	if err := writeDelays(filepath.Join(exportDir, "delays.csv"), a.Delays); err != nil {
		return "", err
	}
	return exportID, nil
}

func writeDelays(path string, delays []time.Duration) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"frame", "delay_ms", "at_ms"}); err != nil {
		return err
	}
	var at time.Duration
	for i, d := range delays {
		row := []string{
			strconv.Itoa(i),
			strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', 3, 64),
			strconv.FormatFloat(float64(at)/float64(time.Millisecond), 'f', 3, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
		at += d
	}
	w.Flush()
	return w.Error()
}

// List returns stored exports, newest first.
func (s *Store) List() ([]ExportMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ExportMetadata{}, nil
		}
		return nil, err
	}

	exports := make([]ExportMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		exports = append(exports, *meta)
	}

	sort.SliceStable(exports, func(i, j int) bool {
		return exports[i].Timestamp.After(exports[j].Timestamp)
	})
	return exports, nil
}

func (s *Store) Load(exportID string) (*ExportMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, exportID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta ExportMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) ArtifactPath(exportID string) (string, error) {
	meta, err := s.Load(exportID)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, exportID, meta.File), nil
}

// LoadDelays reads the per-frame delays of an animation export. Exports
// without delays yield an empty slice.
func (s *Store) LoadDelays(exportID string) ([]time.Duration, error) {
	file, err := os.Open(filepath.Join(s.baseDir, exportID, "delays.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return []time.Duration{}, nil
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []time.Duration{}, nil
	}

	delays := make([]time.Duration, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) < 2 {
			continue
		}
		ms, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			continue
		}
		delays = append(delays, time.Duration(ms*float64(time.Millisecond)))
	}
	return delays, nil
}
