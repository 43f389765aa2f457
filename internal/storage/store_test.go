package storage

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/san-kum/ribbon/internal/capture"
	"github.com/san-kum/ribbon/internal/lineart"
)

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	art := &capture.Artifact{
		SessionID: "0b6f8c1e-1111-2222-3333-444455556666",
		Kind:      capture.KindAnimation,
		MIME:      "image/gif",
		Data:      []byte("GIF89a"),
		Width:     64,
		Height:    48,
		Frames:    3,
		Delays:    []time.Duration{50 * time.Millisecond, 40 * time.Millisecond, 100 * time.Millisecond},
		Duration:  190 * time.Millisecond,
		Created:   time.Unix(1700000000, 0),
	}
	info := Info{
		Source:     "cat.png",
		Extraction: lineart.DefaultExtractionParams(),
		Render:     lineart.DefaultRenderParams(),
		Metrics:    map[string]float64{"redraw_rate": 29.5},
	}

	id, err := st.Save(art, info)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if id != "animation_1700000000_0b6f8c1e" {
		t.Errorf("unexpected export id %q", id)
	}

	meta, err := st.Load(id)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Kind != "animation" || meta.Frames != 3 || meta.Source != "cat.png" {
		t.Errorf("metadata mismatch: %+v", meta)
	}
	if meta.Delays == nil || meta.Delays.Count != 3 || meta.Delays.Min != 40 {
		t.Errorf("delay stats mismatch: %+v", meta.Delays)
	}
	if meta.Metrics["redraw_rate"] != 29.5 {
		t.Errorf("expected metric 29.5, got %f", meta.Metrics["redraw_rate"])
	}

	delays, err := st.LoadDelays(id)
	if err != nil {
		t.Fatalf("load delays failed: %v", err)
	}
	if len(delays) != 3 || delays[2] != 100*time.Millisecond {
		t.Errorf("unexpected delays %v", delays)
	}

	path, err := st.ArtifactPath(id)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, art.Data) {
		t.Error("artifact bytes differ")
	}
}

func TestStoreStillHasNoDelays(t *testing.T) {
	st := New(t.TempDir())
	id, err := st.Save(&capture.Artifact{Kind: capture.KindStill, MIME: "image/png", Data: []byte{1}}, Info{})
	if err != nil {
		t.Fatal(err)
	}
	delays, err := st.LoadDelays(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(delays) != 0 {
		t.Errorf("expected no delays, got %v", delays)
	}
	meta, err := st.Load(id)
	if err != nil {
		t.Fatal(err)
	}
	if meta.File != "artifact.png" || meta.Delays != nil {
		t.Errorf("unexpected metadata %+v", meta)
	}
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())

	for i, kind := range []capture.Kind{capture.KindStill, capture.KindRecording} {
		a := &capture.Artifact{
			SessionID: string(rune('a'+i)) + "0000000",
			Kind:      kind,
			MIME:      "image/png",
			Created:   time.Unix(int64(1700000000+i), 0),
		}
		if _, err := st.Save(a, Info{}); err != nil {
			t.Fatal(err)
		}
	}

	exports, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(exports) != 2 {
		t.Fatalf("expected 2 exports, got %d", len(exports))
	}
	if exports[0].Kind != "recording" {
		t.Errorf("expected newest first, got %s", exports[0].Kind)
	}
}

func TestStoreListMissingDir(t *testing.T) {
	dir := t.TempDir() + "/missing"
	st := New(dir)
	if st.Dir() != dir {
		t.Errorf("expected dir %s, got %s", dir, st.Dir())
	}
	exports, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(exports) != 0 {
		t.Errorf("expected empty list, got %d", len(exports))
	}
}

func TestStoreNilArtifact(t *testing.T) {
	if _, err := New(t.TempDir()).Save(nil, Info{}); err != ErrNilArtifact {
		t.Fatalf("expected ErrNilArtifact, got %v", err)
	}
}
