package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestParseConcern(t *testing.T) {
	tests := []struct {
		in      string
		want    ConcernLevel
		wantErr bool
	}{
		{"", ConcernLocal, false},
		{"local", ConcernLocal, false},
		{"majority", ConcernMajority, false},
		{"linearizable", "", true},
	}
	for _, tt := range tests {
		got, err := ParseConcern(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseConcern(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseConcern(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	s := New(time.Millisecond)
	db := s.Database("app")

	release := db.Acquire(ModeWrite)
	put := db.PutLocked("greeting", json.RawMessage(`"hello"`), s.NextOpTime())
	release()

	release = db.Acquire(ModeRead)
	got, ok := db.GetLocked("greeting")
	release()
	if !ok {
		t.Fatal("document missing")
	}
	if string(got.Value) != `"hello"` || got.OpTime != put.OpTime {
		t.Errorf("got %+v", got)
	}
}

func TestListSortedByKey(t *testing.T) {
	s := New(time.Millisecond)
	db := s.Database("app")

	release := db.Acquire(ModeWrite)
	for _, key := range []string{"charlie", "alpha", "bravo"} {
		db.PutLocked(key, json.RawMessage(`1`), s.NextOpTime())
	}
	release()

	release = db.Acquire(ModeRead)
	docs := db.ListLocked()
	release()

	want := []string{"alpha", "bravo", "charlie"}
	if len(docs) != len(want) {
		t.Fatalf("got %d docs, want %d", len(docs), len(want))
	}
	for i, doc := range docs {
		if doc.Key != want[i] {
			t.Errorf("docs[%d].Key = %q, want %q", i, doc.Key, want[i])
		}
	}
}

func TestDeleteLocked(t *testing.T) {
	s := New(time.Millisecond)
	db := s.Database("app")

	release := db.Acquire(ModeWrite)
	db.PutLocked("gone", json.RawMessage(`1`), s.NextOpTime())
	if !db.DeleteLocked("gone") {
		t.Error("delete of existing key returned false")
	}
	if db.DeleteLocked("gone") {
		t.Error("delete of missing key returned true")
	}
	release()
}

func TestMajorityWriteConcernWaitsForJournal(t *testing.T) {
	s := New(time.Millisecond)
	s.Start()
	defer s.Close()

	opTime := s.NextOpTime()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.WaitForWriteConcern(ctx, ConcernMajority, opTime); err != nil {
		t.Fatalf("majority wait failed: %v", err)
	}
	if got := s.CommittedOpTime(); got < opTime {
		t.Errorf("committed optime %d < %d after wait", got, opTime)
	}
}

func TestMajorityWaitTimesOutWithoutJournal(t *testing.T) {
	s := New(time.Hour) // journal never ticks
	opTime := s.NextOpTime()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := s.WaitForWriteConcern(ctx, ConcernMajority, opTime); err == nil {
		t.Error("wait succeeded without a journal commit")
	}
}

func TestLocalConcernNeverBlocks(t *testing.T) {
	s := New(time.Hour)
	opTime := s.NextOpTime()

	if err := s.WaitForWriteConcern(context.Background(), ConcernLocal, opTime); err != nil {
		t.Errorf("local write concern: %v", err)
	}
	if err := s.WaitForReadConcern(context.Background(), ConcernLocal); err != nil {
		t.Errorf("local read concern: %v", err)
	}
}

func TestAdvanceOpTimeKeepsMaximum(t *testing.T) {
	s := New(time.Millisecond)
	s.NextOpTime() // 1

	s.AdvanceOpTime(10)
	if got := s.OpTime(); got != 10 {
		t.Errorf("optime = %d, want 10", got)
	}
	s.AdvanceOpTime(5) // stale gossip must not rewind
	if got := s.OpTime(); got != 10 {
		t.Errorf("optime after stale gossip = %d, want 10", got)
	}
}

func TestDatabaseNames(t *testing.T) {
	s := New(time.Millisecond)
	s.Database("bravo")
	s.Database("alpha")
	s.Database("alpha")

	names := s.DatabaseNames()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "bravo" {
		t.Errorf("names = %v", names)
	}
}
