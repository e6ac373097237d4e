// Copyright 2026 The EHSAdmin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command migrate applies or drops the database schema.
//
//	migrate [-down] [dsn]
//
// The DSN defaults to the DB_* settings of the server configuration.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/greenledger/ehsadmin/internal/config"
	"github.com/greenledger/ehsadmin/internal/store/postgres"
)

func main() {
	down := flag.Bool("down", false, "drop every table instead of creating them")
	flag.Parse()

	ctx := context.Background()
	_ = godotenv.Load()

	connStr := flag.Arg(0)
	if connStr == "" {
		connStr = os.Getenv("DATABASE_URL")
	}
	if connStr == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		connStr = cfg.Database.DSN()
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping: %v", err)
	}

	fmt.Println("✓ Connected to database")

	name, script := "001_initial_schema.up.sql", postgres.InitialSchema
	if *down {
		name, script = "001_initial_schema.down.sql", postgres.DropSchema
	}

	fmt.Printf("Running %s...\n", name)
	if _, err := db.ExecContext(ctx, script); err != nil {
		log.Fatalf("Failed to execute %s: %v", name, err)
	}
	fmt.Printf("✓ %s completed\n", name)
}
