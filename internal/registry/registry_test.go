package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time {
	return time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
}

func newCSVUnderTest(t *testing.T) *CSVRecorder {
	t.Helper()
	r := NewCSVRecorder(filepath.Join(t.TempDir(), "user_log.csv"))
	r.now = fixedNow
	return r
}

func TestCSVRecorder_CreatesFileWithHeader(t *testing.T) {
	r := newCSVUnderTest(t)

	added, err := r.RecordIfNew("Budi")
	require.NoError(t, err)
	assert.True(t, added)

	data, err := os.ReadFile(r.path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Nama Pengguna,Waktu Bergabung", lines[0])
	assert.Equal(t, "Budi,2024-03-10 09:30:00", lines[1])
}

func TestCSVRecorder_Idempotent(t *testing.T) {
	r := newCSVUnderTest(t)

	added, err := r.RecordIfNew("Budi")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = r.RecordIfNew("Budi")
	require.NoError(t, err)
	assert.False(t, added)

	entries, err := r.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Budi", entries[0].Username)
}

func TestCSVRecorder_CaseSensitiveDedup(t *testing.T) {
	r := newCSVUnderTest(t)

	_, err := r.RecordIfNew("Budi")
	require.NoError(t, err)
	added, err := r.RecordIfNew("budi")
	require.NoError(t, err)
	assert.True(t, added)

	entries, err := r.List()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestCSVRecorder_ListWithoutFile(t *testing.T) {
	r := newCSVUnderTest(t)
	entries, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCSVRecorder_ConcurrentRegistrationsAllLand(t *testing.T) {
	r := newCSVUnderTest(t)

	const n = 25
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.RecordIfNew(fmt.Sprintf("user-%02d", i))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "registration %d", i)
	}
	entries, err := r.List()
	require.NoError(t, err)
	assert.Len(t, entries, n, "no registration may be lost to a race")
}

func TestCSVRecorder_TimestampFormat(t *testing.T) {
	r := NewCSVRecorder(filepath.Join(t.TempDir(), "user_log.csv"))
	_, err := r.RecordIfNew("Budi")
	require.NoError(t, err)

	entries, err := r.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	_, err = time.Parse("2006-01-02 15:04:05", entries[0].JoinedAt)
	assert.NoError(t, err)
}

func newSQLiteUnderTest(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "user_log.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	r.now = fixedNow
	return r
}

func TestSQLiteRecorder_Idempotent(t *testing.T) {
	r := newSQLiteUnderTest(t)

	added, err := r.RecordIfNew("Budi")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = r.RecordIfNew("Budi")
	require.NoError(t, err)
	assert.False(t, added)

	entries, err := r.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Budi", entries[0].Username)
	assert.Equal(t, "2024-03-10 09:30:00", entries[0].JoinedAt)
}

func TestSQLiteRecorder_RegistrationOrderPreserved(t *testing.T) {
	r := newSQLiteUnderTest(t)

	for _, name := range []string{"Citra", "Agus", "Budi"} {
		_, err := r.RecordIfNew(name)
		require.NoError(t, err)
	}
	entries, err := r.List()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Citra", entries[0].Username)
	assert.Equal(t, "Agus", entries[1].Username)
	assert.Equal(t, "Budi", entries[2].Username)
}
