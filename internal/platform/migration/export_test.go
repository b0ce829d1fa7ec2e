// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package migration

import "io/fs"

var PGX5URL = pgx5URL

func Embedded() fs.FS { return embedded }
