package testhelpers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// ========================================
// JSON Assertion Helpers
// ========================================

// AssertJSONKeys checks that a JSON object carries every key, which is how
// API tests pin the wire names of response fields.
func AssertJSONKeys(t *testing.T, jsonStr string, msg string, keys ...string) {
	t.Helper()

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr), &obj); err != nil {
		t.Fatalf("%s: failed to parse JSON object: %v", msg, err)
	}
	for _, key := range keys {
		if _, ok := obj[key]; !ok {
			t.Errorf("%s: JSON does not contain key %q", msg, key)
		}
	}
}

// AssertJSONArrayLength checks the length of a JSON array
func AssertJSONArrayLength(t *testing.T, jsonStr string, expectedLen int, msg string) {
	t.Helper()

	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr), &arr); err != nil {
		t.Fatalf("%s: failed to parse JSON array: %v", msg, err)
	}
	if len(arr) != expectedLen {
		t.Errorf("%s: expected array length %d, got %d", msg, expectedLen, len(arr))
	}
}

// ========================================
// File Helpers
// ========================================

// WriteSeedFile writes a YAML seed document into a temporary directory and
// returns its path
func WriteSeedFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write seed file: %v", err)
	}
	return path
}

// ========================================
// Concurrency Helpers
// ========================================

// RunConcurrently starts workers goroutines running fn and fails the test if
// they have not all returned within timeout
func RunConcurrently(t *testing.T, timeout time.Duration, workers int, fn func(workerID int)) {
	t.Helper()

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(id int) {
			defer wg.Done()
			fn(id)
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("%d workers did not finish within %v", workers, timeout)
	}
}
