// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema names the tables and columns shared by the PostgreSQL and
// SQLite stores so that both backends build their queries from one source.
package schema

// UsersTable represents the 'users' table
type UsersTable struct {
	Table        string
	ID           string
	Username     string
	PrimaryEmail string
	DisplayName  string
	IsAdmin      string
	CreatedAt    string
}

// Users is the schema definition for users
var Users = UsersTable{
	Table:        "users",
	ID:           "id",
	Username:     "username",
	PrimaryEmail: "primary_email",
	DisplayName:  "display_name",
	IsAdmin:      "is_admin",
	CreatedAt:    "created_at",
}

// Columns returns all standard column names
func (t UsersTable) Columns() []string {
	return []string{t.ID, t.Username, t.PrimaryEmail, t.DisplayName, t.IsAdmin, t.CreatedAt}
}
