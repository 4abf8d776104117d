package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/sdejongh/foldermirror/pkg/models"
)

func sampleReport() *models.PassReport {
	report := models.NewPassReport("3f2a9c1e-0000-4000-8000-000000000000", models.SyncPair{
		SourceRoot:  "/data/source",
		ReplicaRoot: "/data/replica",
	}, false)
	report.Update(func(s *models.Statistics) {
		s.FilesScanned = 3
		s.FilesCreated = 2
		s.FilesDeleted = 1
		s.DirsCreated = 1
		s.BytesCopied = 2048
	})
	report.AddError("sub/locked.txt", models.ActionCreate, errors.New("permission denied"))
	report.StartTime = report.StartTime.Add(-time.Second)
	report.Finish()
	return report
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", "none", false},
		{"none", "none", false},
		{"human", "human", false},
		{"json", "json", false},
		{"progress", "progress", false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if err == nil && f.Name() != tt.want {
				t.Errorf("Name() = %s, want %s", f.Name(), tt.want)
			}
		})
	}
}

func TestHumanFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewHumanFormatter()
	report := sampleReport()

	f.Start(&buf, report.ID)
	f.Progress(ProgressUpdate{Type: EventEntry, Path: "a.txt", Action: models.ActionCreate})
	f.Progress(ProgressUpdate{Type: EventEntry, Path: "sub/locked.txt", Action: models.ActionCreate, Error: errors.New("permission denied")})
	if err := f.Complete(report); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"✗ create sub/locked.txt: permission denied",
		"Pass " + report.ID + " completed",
		"/data/source -> /data/replica",
		"Files created:    2",
		"Data copied:      2.0 kB",
		"Status: partial",
		"create sub/locked.txt: permission denied",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "a.txt:") {
		t.Error("successful entries should not be printed")
	}
}

func TestHumanFormatter_DryRunTitle(t *testing.T) {
	var buf bytes.Buffer
	f := NewHumanFormatter()
	report := models.NewPassReport("p", models.SyncPair{}, true)
	report.Finish()

	f.Start(&buf, "p")
	f.Complete(report)

	if !strings.Contains(buf.String(), "Dry run p completed") {
		t.Errorf("got %q", buf.String())
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter()

	for i := 0; i < 2; i++ {
		report := sampleReport()
		f.Start(&buf, report.ID)
		if err := f.Complete(report); err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected one line per pass, got %d", len(lines))
	}

	var doc JSONReportData
	if err := json.Unmarshal([]byte(lines[0]), &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if doc.Status != "partial" {
		t.Errorf("status = %s, want partial", doc.Status)
	}
	if doc.Stats.FilesCreated != 2 || doc.Stats.BytesCopied != 2048 {
		t.Errorf("stats = %+v", doc.Stats)
	}
	if len(doc.Errors) != 1 || doc.Errors[0].Operation != "create" {
		t.Errorf("errors = %+v", doc.Errors)
	}
	if doc.Replica != "/data/replica" {
		t.Errorf("replica = %s", doc.Replica)
	}
}

func TestProgressFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewProgressFormatter()
	report := sampleReport()

	if err := f.Start(&buf, report.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	f.Progress(ProgressUpdate{Type: EventDiscovered, Count: 3})
	f.Progress(ProgressUpdate{Type: EventEntry, Path: "a.txt"})
	f.Progress(ProgressUpdate{Type: EventEntry, Path: "b.txt"})
	f.Progress(ProgressUpdate{Type: EventEntry, Path: "sub"})

	if f.bar.Total() != 3 || f.bar.Current() != 3 {
		t.Errorf("bar = %d/%d, want 3/3", f.bar.Current(), f.bar.Total())
	}

	if err := f.Complete(report); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if f.bar != nil {
		t.Error("Complete() should release the bar")
	}
	if !strings.Contains(buf.String(), "3f2a9c1e") {
		t.Errorf("bar output should carry the short pass id, got %q", buf.String())
	}

	// Progress outside a pass is ignored
	if err := f.Progress(ProgressUpdate{Type: EventEntry}); err != nil {
		t.Errorf("Progress() error = %v", err)
	}
}

func TestNullFormatter(t *testing.T) {
	f := NewNullFormatter()
	if f.Start(nil, "p") != nil || f.Progress(ProgressUpdate{}) != nil || f.Complete(sampleReport()) != nil {
		t.Error("NullFormatter should never fail")
	}
}
