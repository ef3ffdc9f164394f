package stream_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zerosum-labs/learner/stream"
	"github.com/zerosum-labs/learner/target"
)

func line(state string) string {
	return target.Target{
		State:  state,
		Policy: []target.ActionProb{{Action: "a1", Prob: 1}},
		Value:  0.5,
		UBE:    1,
	}.String()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func TestReader_CursorSemantics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets-selfplay.txt")
	writeFile(t, path, line("s1")+"\n"+line("s2")+"\n"+line("s3")+"\n")

	r := stream.NewReader(path)

	records, read, err := r.Read(1)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if read != 3 {
		t.Errorf("got cursor %d, want 3", read)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].State != "s2" || records[1].State != "s3" {
		t.Errorf("got states %q, %q, want s2, s3", records[0].State, records[1].State)
	}

	// No new lines appended: a second read returns nothing.
	records, read, err = r.Read(read)
	if err != nil {
		t.Fatalf("second Read failed: %v", err)
	}
	if len(records) != 0 || read != 3 {
		t.Errorf("got %d records and cursor %d, want 0 and 3", len(records), read)
	}
}

func TestReader_PicksUpAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets-selfplay.txt")
	writeFile(t, path, line("s1")+"\n")

	r := stream.NewReader(path)
	_, read, err := r.Read(0)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	if _, err := f.WriteString(line("s2") + "\n"); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	f.Close()

	records, read, err := r.Read(read)
	if err != nil {
		t.Fatalf("Read after append failed: %v", err)
	}
	if len(records) != 1 || records[0].State != "s2" {
		t.Fatalf("got %d records, want just s2", len(records))
	}
	if read != 2 {
		t.Errorf("got cursor %d, want 2", read)
	}
}

func TestReader_DropsUnparsableLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets-selfplay.txt")
	// A garbage line in the middle and a partial line at the end, as left
	// by a worker crashing mid-write.
	writeFile(t, path, line("s1")+"\n"+"garbage\n"+line("s2")+"\n"+"s3|0.5|1|a1:0.")

	records, read, err := stream.NewReader(path).Read(0)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].State != "s1" || records[1].State != "s2" {
		t.Errorf("got states %q, %q, want s1, s2", records[0].State, records[1].State)
	}
	if read != 4 {
		t.Errorf("got cursor %d, want 4 (dropped lines still count)", read)
	}
}

func TestReader_SkipsOversizedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets-selfplay.txt")
	// A 2 MiB junk line between two valid records must be treated like any
	// other unparsable line: dropped and counted, never retried.
	long := strings.Repeat("x", 2<<20)
	writeFile(t, path, line("s1")+"\n"+long+"\n"+line("s2")+"\n")

	r := stream.NewReader(path)
	records, read, err := r.Read(0)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 2 || records[0].State != "s1" || records[1].State != "s2" {
		t.Fatalf("got %d records, want s1 and s2", len(records))
	}
	if read != 3 {
		t.Errorf("got cursor %d, want 3 (oversized line consumed)", read)
	}

	// The stream keeps flowing past the junk on later polls.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	if _, err := f.WriteString(line("s3") + "\n"); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	f.Close()

	records, read, err = r.Read(read)
	if err != nil {
		t.Fatalf("Read after append failed: %v", err)
	}
	if len(records) != 1 || records[0].State != "s3" {
		t.Fatalf("got %d records, want just s3", len(records))
	}
	if read != 4 {
		t.Errorf("got cursor %d, want 4", read)
	}
}

func TestReader_MissingFile(t *testing.T) {
	r := stream.NewReader(filepath.Join(t.TempDir(), "missing.txt"))

	records, read, err := r.Read(7)
	if !errors.Is(err, stream.ErrUnavailable) {
		t.Fatalf("got error %v, want ErrUnavailable", err)
	}
	if read != 7 {
		t.Errorf("got cursor %d, want 7 (unchanged)", read)
	}
	if records != nil {
		t.Errorf("got %d records, want none", len(records))
	}
}
