package csvfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func collect(deltas *[]domain.Delta) driven.DeltaHandler {
	return func(d domain.Delta) bool {
		*deltas = append(*deltas, d)
		return true
	}
}

func attrStrings(d domain.Delta, name string) []string {
	a, ok := d.Attribute(name)
	if !ok {
		return nil
	}
	return a.Strings()
}

func TestBuilder(t *testing.T) {
	conn, err := Builder(resourceWith(map[string]string{KeyChangelog: "c.jsonl"}))
	require.NoError(t, err)
	assert.Equal(t, Name, conn.Type())
	assert.Equal(t, "hr", conn.Resource())

	_, err = Builder(resourceWith(nil))
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestConnector_Capabilities(t *testing.T) {
	t.Run("accounts only", func(t *testing.T) {
		caps := New("hr", &Config{AccountsPath: "a.csv"}).Capabilities()
		assert.True(t, caps.SupportsFullReconciliation)
		assert.False(t, caps.SupportsIncremental)
		assert.False(t, caps.SupportsWatch)
		assert.True(t, caps.SupportsValidation)
	})

	t.Run("changelog only", func(t *testing.T) {
		caps := New("hr", &Config{ChangelogPath: "c.jsonl"}).Capabilities()
		assert.False(t, caps.SupportsFullReconciliation)
		assert.True(t, caps.SupportsIncremental)
		assert.True(t, caps.SupportsWatch)
	})
}

func TestConnector_GetAllObjects(t *testing.T) {
	ctx := context.Background()

	t.Run("reads rows with BOM and multi values", func(t *testing.T) {
		dir := t.TempDir()
		content := "\ufeff__UID__,mail,groups,__ENABLE__\n" +
			"alice,alice@example.com,admins|staff,true\n" +
			"bob,,staff,false\n"
		path := writeFile(t, dir, "accounts.csv", []byte(content))

		conn := New("hr", &Config{AccountsPath: path, UIDColumn: domain.AttrUID, Encoding: "utf-8", Comma: ',', MultiValueSeparator: "|"})
		var deltas []domain.Delta
		require.NoError(t, conn.GetAllObjects(ctx, "__ACCOUNT__", collect(&deltas)))

		require.Len(t, deltas, 2)
		assert.Equal(t, domain.DeltaCreateOrUpdate, deltas[0].Type)
		assert.Equal(t, "alice", deltas[0].UID)
		assert.Equal(t, []string{"alice@example.com"}, attrStrings(deltas[0], "mail"))
		assert.Equal(t, []string{"admins", "staff"}, attrStrings(deltas[0], "groups"))
		require.NotNil(t, deltas[0].Enabled())
		assert.True(t, *deltas[0].Enabled())

		assert.Equal(t, "bob", deltas[1].UID)
		_, hasMail := deltas[1].Attribute("mail")
		assert.False(t, hasMail, "empty cells are omitted")
		require.NotNil(t, deltas[1].Enabled())
		assert.False(t, *deltas[1].Enabled())
	})

	t.Run("decodes latin1 and normalises to NFC", func(t *testing.T) {
		dir := t.TempDir()
		encoded, err := charmap.ISO8859_1.NewEncoder().String("uid;name\njos\u00e9;Jos\u00e9 Garc\u00eda\n")
		require.NoError(t, err)
		path := writeFile(t, dir, "accounts.csv", []byte(encoded))

		conn := New("hr", &Config{AccountsPath: path, UIDColumn: "UID", Encoding: "latin1", Comma: ';'})
		var deltas []domain.Delta
		require.NoError(t, conn.GetAllObjects(ctx, "__ACCOUNT__", collect(&deltas)))

		require.Len(t, deltas, 1)
		assert.Equal(t, "jos\u00e9", deltas[0].UID)
		assert.Equal(t, []string{"Jos\u00e9 Garc\u00eda"}, attrStrings(deltas[0], "name"))
	})

	t.Run("decodes utf-16 with BOM", func(t *testing.T) {
		dir := t.TempDir()
		encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().
			Bytes([]byte("uid,mail\njose\u0301,j@example.com\n"))
		require.NoError(t, err)
		path := writeFile(t, dir, "accounts.csv", encoded)

		conn := New("hr", &Config{AccountsPath: path, UIDColumn: "uid", Encoding: "utf-16", Comma: ','})
		var deltas []domain.Delta
		require.NoError(t, conn.GetAllObjects(ctx, "__ACCOUNT__", collect(&deltas)))

		require.Len(t, deltas, 1)
		assert.Equal(t, "jos\u00e9", deltas[0].UID, "decomposed uid is composed")
	})

	t.Run("handler stop ends stream", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "accounts.csv", []byte("uid\na\nb\nc\n"))
		conn := New("hr", &Config{AccountsPath: path, UIDColumn: "uid", Encoding: "utf-8", Comma: ','})

		count := 0
		err := conn.GetAllObjects(ctx, "__ACCOUNT__", func(domain.Delta) bool {
			count++
			return count < 2
		})
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("row without uid fails", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "accounts.csv", []byte("uid,mail\n,x@example.com\n"))
		conn := New("hr", &Config{AccountsPath: path, UIDColumn: "uid", Encoding: "utf-8", Comma: ','})

		err := conn.GetAllObjects(ctx, "__ACCOUNT__", func(domain.Delta) bool { return true })
		assert.ErrorContains(t, err, "no uid")
	})

	t.Run("missing uid column", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "accounts.csv", []byte("mail\nx@example.com\n"))
		conn := New("hr", &Config{AccountsPath: path, UIDColumn: "uid", Encoding: "utf-8", Comma: ','})

		err := conn.GetAllObjects(ctx, "__ACCOUNT__", func(domain.Delta) bool { return true })
		assert.ErrorIs(t, err, ErrMissingUIDColumn)
		assert.ErrorIs(t, conn.Validate(ctx), ErrMissingUIDColumn)
	})

	t.Run("no accounts configured", func(t *testing.T) {
		conn := New("hr", &Config{ChangelogPath: "c.jsonl"})
		err := conn.GetAllObjects(ctx, "__ACCOUNT__", func(domain.Delta) bool { return true })
		assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	})
}

const sampleLog = `{"seq":1,"type":"CREATE_OR_UPDATE","uid":"alice","attributes":{"mail":"alice@example.com","groups":["admins","staff"]}}

{"seq":2,"type":"create_or_update","uid":"alice2","previous_uid":"alice","attributes":{"__ENABLE__":false,"level":3}}
{"seq":3,"type":"DELETE","uid":"bob"}
`

func TestConnector_Sync(t *testing.T) {
	ctx := context.Background()

	t.Run("streams from beginning with nil token", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "changes.jsonl", []byte(sampleLog))
		conn := New("hr", &Config{ChangelogPath: path})

		var deltas []domain.Delta
		require.NoError(t, conn.Sync(ctx, "__ACCOUNT__", nil, collect(&deltas)))

		require.Len(t, deltas, 3)
		assert.Equal(t, "alice", deltas[0].UID)
		assert.Equal(t, []string{"admins", "staff"}, attrStrings(deltas[0], "groups"))
		assert.Equal(t, "groups", deltas[0].Attributes[0].Name, "attributes sorted by name")

		assert.Equal(t, domain.DeltaCreateOrUpdate, deltas[1].Type)
		assert.True(t, deltas[1].IsRename())
		assert.Equal(t, "alice", deltas[1].MatchUID())
		require.NotNil(t, deltas[1].Enabled())
		assert.False(t, *deltas[1].Enabled())
		assert.Equal(t, []string{"3"}, attrStrings(deltas[1], "level"))

		assert.Equal(t, domain.DeltaDelete, deltas[2].Type)

		token, err := conn.LatestSyncToken(ctx, "__ACCOUNT__")
		require.NoError(t, err)
		assert.True(t, domain.NumberToken(3).Equal(token))
	})

	t.Run("resumes after token", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "changes.jsonl", []byte(sampleLog))
		conn := New("hr", &Config{ChangelogPath: path})

		var deltas []domain.Delta
		require.NoError(t, conn.Sync(ctx, "__ACCOUNT__", domain.NumberToken(2), collect(&deltas)))
		require.Len(t, deltas, 1)
		assert.Equal(t, "bob", deltas[0].UID)
	})

	t.Run("up to date token streams nothing and keeps token", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "changes.jsonl", []byte(sampleLog))
		conn := New("hr", &Config{ChangelogPath: path})

		var deltas []domain.Delta
		require.NoError(t, conn.Sync(ctx, "__ACCOUNT__", domain.NumberToken(3), collect(&deltas)))
		assert.Empty(t, deltas)

		token, err := conn.LatestSyncToken(ctx, "__ACCOUNT__")
		require.NoError(t, err)
		assert.True(t, domain.NumberToken(3).Equal(token))
	})

	t.Run("entries appended after sync wait for next pass", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "changes.jsonl", []byte(sampleLog))
		conn := New("hr", &Config{ChangelogPath: path})

		require.NoError(t, conn.Sync(ctx, "__ACCOUNT__", nil, func(domain.Delta) bool { return true }))
		require.NoError(t, AppendEntries(path, Entry{Seq: 4, Type: domain.DeltaDelete, UID: "carol"}))

		token, err := conn.LatestSyncToken(ctx, "__ACCOUNT__")
		require.NoError(t, err)
		assert.True(t, domain.NumberToken(3).Equal(token))
	})

	t.Run("latest token without sync scans log", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "changes.jsonl", []byte(sampleLog))
		token, err := New("hr", &Config{ChangelogPath: path}).LatestSyncToken(ctx, "__ACCOUNT__")
		require.NoError(t, err)
		assert.True(t, domain.NumberToken(3).Equal(token))
	})

	t.Run("missing log is empty", func(t *testing.T) {
		conn := New("hr", &Config{ChangelogPath: filepath.Join(t.TempDir(), "none.jsonl")})
		var deltas []domain.Delta
		require.NoError(t, conn.Sync(ctx, "__ACCOUNT__", nil, collect(&deltas)))
		assert.Empty(t, deltas)

		token, err := conn.LatestSyncToken(ctx, "__ACCOUNT__")
		require.NoError(t, err)
		assert.Nil(t, token)
	})

	t.Run("malformed line", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "changes.jsonl", []byte("{\"seq\":1,\"uid\":\"a\"}\nnot json\n"))
		conn := New("hr", &Config{ChangelogPath: path})
		err := conn.Sync(ctx, "__ACCOUNT__", nil, func(domain.Delta) bool { return true })
		assert.ErrorIs(t, err, ErrBadEntry)
		assert.ErrorContains(t, err, "line 2")
	})

	t.Run("unsupported attribute value", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "changes.jsonl", []byte(`{"seq":1,"type":"DELETE","uid":"a","attributes":{"x":{"nested":1}}}`+"\n"))
		conn := New("hr", &Config{ChangelogPath: path})
		err := conn.Sync(ctx, "__ACCOUNT__", nil, func(domain.Delta) bool { return true })
		assert.ErrorIs(t, err, ErrBadEntry)
	})

	t.Run("non numeric token", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "changes.jsonl", []byte(sampleLog))
		conn := New("hr", &Config{ChangelogPath: path})
		err := conn.Sync(ctx, "__ACCOUNT__", domain.StringToken("x"), func(domain.Delta) bool { return true })
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("cancelled context", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "changes.jsonl", []byte(sampleLog))
		conn := New("hr", &Config{ChangelogPath: path})
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := conn.Sync(cctx, "__ACCOUNT__", nil, func(domain.Delta) bool { return true })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestConnector_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("missing changelog in existing dir is fine", func(t *testing.T) {
		conn := New("hr", &Config{ChangelogPath: filepath.Join(t.TempDir(), "later.jsonl")})
		assert.NoError(t, conn.Validate(ctx))
	})

	t.Run("missing changelog directory", func(t *testing.T) {
		conn := New("hr", &Config{ChangelogPath: filepath.Join(t.TempDir(), "nope", "c.jsonl")})
		assert.Error(t, conn.Validate(ctx))
	})

	t.Run("changelog is a directory", func(t *testing.T) {
		conn := New("hr", &Config{ChangelogPath: t.TempDir()})
		assert.ErrorIs(t, conn.Validate(ctx), domain.ErrInvalidInput)
	})

	t.Run("missing accounts file", func(t *testing.T) {
		conn := New("hr", &Config{AccountsPath: filepath.Join(t.TempDir(), "a.csv"), Encoding: "utf-8", Comma: ','})
		assert.ErrorIs(t, conn.Validate(ctx), os.ErrNotExist)
	})
}

func TestConnector_Close(t *testing.T) {
	ctx := context.Background()
	conn := New("hr", &Config{ChangelogPath: filepath.Join(t.TempDir(), "c.jsonl")})

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	assert.ErrorIs(t, conn.Validate(ctx), domain.ErrConnectorClosed)
	assert.ErrorIs(t, conn.Sync(ctx, "", nil, func(domain.Delta) bool { return true }), domain.ErrConnectorClosed)
	_, err := conn.LatestSyncToken(ctx, "")
	assert.ErrorIs(t, err, domain.ErrConnectorClosed)
	_, err = conn.Watch(ctx)
	assert.ErrorIs(t, err, domain.ErrConnectorClosed)
}

func TestConnector_Watch(t *testing.T) {
	t.Run("signals on append", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "changes.jsonl")
		conn := New("hr", &Config{ChangelogPath: path})
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		signals, err := conn.Watch(ctx)
		require.NoError(t, err)

		go func() {
			time.Sleep(50 * time.Millisecond)
			_ = AppendEntries(path, Entry{Seq: 1, Type: domain.DeltaDelete, UID: "a"})
		}()

		select {
		case _, ok := <-signals:
			assert.True(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for changelog signal")
		}
	})

	t.Run("channel closes with context", func(t *testing.T) {
		conn := New("hr", &Config{ChangelogPath: filepath.Join(t.TempDir(), "changes.jsonl")})
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.Background())
		signals, err := conn.Watch(ctx)
		require.NoError(t, err)
		cancel()

		require.Eventually(t, func() bool {
			select {
			case _, ok := <-signals:
				return !ok
			default:
				return false
			}
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("no changelog configured", func(t *testing.T) {
		_, err := New("hr", &Config{AccountsPath: "a.csv"}).Watch(context.Background())
		assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	})
}

func TestIsChangelogEvent(t *testing.T) {
	target := filepath.Join("data", "changes.jsonl")

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{name: "write", event: fsnotify.Event{Name: target, Op: fsnotify.Write}, want: true},
		{name: "create", event: fsnotify.Event{Name: target, Op: fsnotify.Create}, want: true},
		{name: "write and chmod", event: fsnotify.Event{Name: target, Op: fsnotify.Write | fsnotify.Chmod}, want: true},
		{name: "chmod only", event: fsnotify.Event{Name: target, Op: fsnotify.Chmod}, want: false},
		{name: "remove", event: fsnotify.Event{Name: target, Op: fsnotify.Remove}, want: false},
		{name: "other file", event: fsnotify.Event{Name: filepath.Join("data", "other.jsonl"), Op: fsnotify.Write}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isChangelogEvent(tt.event, target))
		})
	}
}
