package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/estudioia/videos-api/internal/client"
	"github.com/estudioia/videos-api/internal/logger"
	"github.com/estudioia/videos-api/internal/model"
	"github.com/estudioia/videos-api/internal/store"
)

const ns = `xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"`

func tinyDeck(t *testing.T) []byte {
	t.Helper()
	parts := map[string]string{
		"ppt/presentation.xml": `<p:presentation ` + ns + `/>`,
		"ppt/slides/slide1.xml": `<p:sld ` + ns + `><p:cSld><p:spTree>
  <p:sp><p:nvSpPr><p:cNvPr id="2" name="Title"/><p:cNvSpPr/><p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr>
  <p:spPr/><p:txBody><a:p><a:r><a:t>Olá</a:t></a:r></a:p></p:txBody></p:sp>
</p:spTree></p:cSld></p:sld>`,
		"ppt/slides/slide2.xml": `<p:sld ` + ns + `><p:cSld><p:spTree/></p:cSld></p:sld>`,
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newPresentationService(t *testing.T) (*PresentationService, *store.MemoryStore, *client.MemoryStorage) {
	t.Helper()
	st := store.NewMemoryStore()
	st.AddCollaborator(project, owner)
	storage := client.NewMemoryStorage("https://cdn.example.com")
	return NewPresentationService(st, st, storage, 1, logger.Discard()), st, storage
}

func TestIngestStoresDeckAndModel(t *testing.T) {
	svc, st, storage := newPresentationService(t)
	ctx := context.Background()

	resp, err := svc.Ingest(ctx, owner, project, "Treinamento.PPTX", tinyDeck(t))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if resp.SlideCount != 2 || resp.Duration != 30 {
		t.Errorf("slides = %d duration = %d, want 2 and 30", resp.SlideCount, resp.Duration)
	}
	if resp.Model.Slides[0].Title != "Olá" {
		t.Errorf("title = %q", resp.Model.Slides[0].Title)
	}
	if !strings.HasPrefix(resp.SourceURL, "https://cdn.example.com/presentations/"+owner+"/"+project+"/") {
		t.Errorf("source url = %s", resp.SourceURL)
	}

	saved, err := st.GetPresentation(ctx, resp.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := storage.Read(ctx, saved.SourceKey); err != nil {
		t.Errorf("original not stored: %v", err)
	}

	got, err := svc.Get(ctx, resp.ID, owner)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.SourceURL, "expires=3600") {
		t.Errorf("signed url = %s", got.SourceURL)
	}
	if _, err := svc.Get(ctx, resp.ID, stranger); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("stranger get: err = %v, want forbidden", err)
	}
}

func TestIngestRejectsBadUploads(t *testing.T) {
	svc, _, _ := newPresentationService(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		filename string
		data     []byte
		want     error
	}{
		{"wrong extension", "deck.key", tinyDeck(t), model.ErrValidation},
		{"empty", "deck.pptx", nil, model.ErrValidation},
		{"too large", "deck.pptx", make([]byte, 2<<20), model.ErrValidation},
		{"not a pptx", "deck.pptx", []byte("plain text"), model.ErrValidation},
	}
	for _, tt := range cases {
		if _, err := svc.Ingest(ctx, owner, project, tt.filename, tt.data); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}

	if _, err := svc.Ingest(ctx, stranger, project, "deck.pptx", tinyDeck(t)); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("stranger: err = %v, want forbidden", err)
	}
}
