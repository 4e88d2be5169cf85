package migration

import (
	"database/sql"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

// newTestDB はテスト用のインメモリSQLiteを作成するヘルパー関数。
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// testMigrations はテスト用のマイグレーションファイル一式。
var testMigrations = fstest.MapFS{
	"migrations/000001_create_items.up.sql": &fstest.MapFile{
		Data: []byte(`CREATE TABLE items (id TEXT PRIMARY KEY, name TEXT NOT NULL);`),
	},
	"migrations/000002_add_index.up.sql": &fstest.MapFile{
		Data: []byte(`CREATE INDEX idx_items_name ON items(name);`),
	},
	"migrations/readme.txt": &fstest.MapFile{
		Data: []byte(`up.sql以外のファイルは無視される`),
	},
}

// TestRun はマイグレーション適用のテスト。
func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("未適用のマイグレーションを順に適用する", func(t *testing.T) {
		t.Parallel()
		db := newTestDB(t)

		if err := Run(db, testMigrations, "migrations"); err != nil {
			t.Fatalf("マイグレーションの適用に失敗: %v", err)
		}

		// テーブルが存在し、バージョンが記録されている
		if _, err := db.Exec(`INSERT INTO items (id, name) VALUES ('i-1', 'test')`); err != nil {
			t.Errorf("作成されたテーブルへの挿入に失敗: %v", err)
		}

		var count int
		if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
			t.Fatalf("適用済みバージョンの取得に失敗: %v", err)
		}
		if count != 2 {
			t.Errorf("適用済みバージョン数: got %d, want 2", count)
		}
	})

	t.Run("再実行しても適用済みのマイグレーションはスキップされる", func(t *testing.T) {
		t.Parallel()
		db := newTestDB(t)

		if err := Run(db, testMigrations, "migrations"); err != nil {
			t.Fatalf("1回目の適用に失敗: %v", err)
		}
		// CREATE TABLEにIF NOT EXISTSがないため、再適用されればエラーになる
		if err := Run(db, testMigrations, "migrations"); err != nil {
			t.Fatalf("2回目の適用に失敗: %v", err)
		}

		var count int
		if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
			t.Fatalf("適用済みバージョンの取得に失敗: %v", err)
		}
		if count != 2 {
			t.Errorf("適用済みバージョン数: got %d, want 2", count)
		}
	})

	t.Run("不正なSQLはロールバックされてバージョンが記録されない", func(t *testing.T) {
		t.Parallel()
		db := newTestDB(t)

		broken := fstest.MapFS{
			"migrations/000001_broken.up.sql": &fstest.MapFile{
				Data: []byte(`CREATE BOGUS SYNTAX;`),
			},
		}

		if err := Run(db, broken, "migrations"); err == nil {
			t.Fatal("不正なSQLの適用がエラーになりませんでした")
		}

		var count int
		if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
			t.Fatalf("適用済みバージョンの取得に失敗: %v", err)
		}
		if count != 0 {
			t.Errorf("失敗したマイグレーションのバージョンが記録されています: %d", count)
		}
	})
}
