// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package migration_test

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sleeporgive/internal/platform/migration"
)

/*
TestPGX5URL checks the scheme rewrite.
*/
func TestPGX5URL(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		want    string
		wantErr bool
	}{
		{"postgres", "postgres://u:p@db:5432/sleep?sslmode=disable", "pgx5://u:p@db:5432/sleep?sslmode=disable", false},
		{"postgresql", "postgresql://db/sleep", "pgx5://db/sleep", false},
		{"already_pgx5", "pgx5://db/sleep", "pgx5://db/sleep", false},
		{"mysql", "mysql://db/sleep", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := migration.PGX5URL(tt.dsn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

/*
TestEmbeddedMigrations ensures every up step has a down step.
*/
func TestEmbeddedMigrations(t *testing.T) {
	ups, err := fs.Glob(migration.Embedded(), "sql/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migration.Embedded(), "sql/*.down.sql")
	require.NoError(t, err)

	assert.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}
