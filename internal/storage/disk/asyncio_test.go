/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package disk

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestAsyncSyncerCommitsConcurrentRequests(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	s := NewAsyncSyncer(f, DefaultConfig())
	defer s.Close()

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Sync()
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("request %d: unexpected error %v", i, err)
		}
	}
}

func TestAsyncSyncerRebindSyncsTheNewFile(t *testing.T) {
	dir := t.TempDir()
	path1 := filepath.Join(dir, "wal")
	f1, err := os.Create(path1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	s := NewAsyncSyncer(f1, DefaultConfig())
	defer s.Close()

	if err := s.Sync(); err != nil {
		t.Fatalf("Sync before rebind: %v", err)
	}

	path2 := filepath.Join(dir, "wal.new")
	f2, err := os.Create(path2)
	if err != nil {
		t.Fatalf("create replacement: %v", err)
	}
	defer f2.Close()
	if err := f1.Close(); err != nil {
		t.Fatalf("close original file: %v", err)
	}

	s.Rebind(f2)

	// Without Rebind, this would fsync the now-closed f1 and fail.
	if err := s.Sync(); err != nil {
		t.Fatalf("Sync after rebind should use the new file, got error: %v", err)
	}
}

func TestAsyncSyncerPendingCountDrainsToZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	s := NewAsyncSyncer(f, DefaultConfig())
	defer s.Close()

	if err := s.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got := s.PendingCount(); got != 0 {
		t.Errorf("expected pending count 0 after Sync returns, got %d", got)
	}
}
