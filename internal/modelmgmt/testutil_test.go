package modelmgmt

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/markstur/caikit/internal/backends"
	"github.com/markstur/caikit/internal/modules"
	"github.com/markstur/caikit/internal/modules/sample"
)

// newTestRegistry returns a registry with the sample type wired plus an
// "other" type reusing the sample implementation, so tests can load two
// distinct model types.
func newTestRegistry(t *testing.T) *backends.Registry {
	t.Helper()
	reg := backends.NewRegistry()
	if err := sample.Register(reg); err != nil {
		t.Fatalf("register sample: %v", err)
	}
	if err := reg.Register("other", backends.KindLocal, sample.New); err != nil {
		t.Fatalf("register other: %v", err)
	}
	return reg
}

// newTestLoader constructs a loader and releases the process-wide slot
// when the test ends.
func newTestLoader(t *testing.T, reg *backends.Registry, table BatchingTable) *Loader {
	t.Helper()
	l, err := NewLoader(reg, table, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

// goodModelDir writes a loadable sample artifact and returns its path.
func goodModelDir(t *testing.T, params map[string]any) string {
	t.Helper()
	d := t.TempDir()
	if params == nil {
		params = map[string]any{"model_type": sample.ModelType}
	}
	if err := modules.WriteConfig(d, params); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return d
}

// goodModelArchive zips a loadable sample artifact and returns the zip path.
func goodModelArchive(t *testing.T) string {
	t.Helper()
	d := t.TempDir()
	p := filepath.Join(d, "model.zip")
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create(modules.ConfigFileName)
	if err != nil {
		t.Fatalf("archive entry: %v", err)
	}
	if _, err := w.Write([]byte("model_type: sample\ngreeting_prefix: Hi\n")); err != nil {
		t.Fatalf("archive write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return p
}

// notAnArchive writes a plain file with a zip extension.
func notAnArchive(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "invalid.zip")
	if err := os.WriteFile(p, []byte("this is not a zip archive"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func nameInput(t *testing.T, name string) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(map[string]any{"name": name})
	if err != nil {
		t.Fatalf("input: %v", err)
	}
	return s
}

func mustLoad(t *testing.T, l *Loader, id, path, declaredType string) *LoadedModel {
	t.Helper()
	lm, err := l.Load(context.Background(), id, path, declaredType, nil)
	if err != nil {
		t.Fatalf("Load(%s): %v", id, err)
	}
	t.Cleanup(func() { _ = lm.Release() })
	return lm
}
