package migrate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	sql := `create table a (id text);
insert into a values ('x;y');
-- trailing without semicolon
insert into a values ('z')`

	stmts := splitStatements(sql)
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(stmts), stmts)
	}
}

func TestCollectSQLMissingDir(t *testing.T) {
	files, err := collectSQL("does-not-exist", ".sql")
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files, got %d", len(files))
	}
}

func TestCollectSQLOrdersByName(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_later.up.sql", "0001_init.up.sql", "ignore.down.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("select 1;"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	files, err := collectSQL(dir, ".up.sql")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(files) != 2 || files[0].base != "0001_init.up.sql" || files[1].base != "0002_later.up.sql" {
		t.Fatalf("unexpected files: %+v", files)
	}
}
