// Copyright 2020-2021 Dolthub, Inc.
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

// Command quiver is a CLI front-end over the quiver embedded engine: it
// runs SQL from a file, an inline string, or an interactive prompt,
// against either an in-memory or on-disk database (spec 6).
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/quiverdb/quiver"
	"github.com/quiverdb/quiver/chunk"
	"github.com/quiverdb/quiver/sqlerr"
)

var (
	dbPath    string
	cacheSize int
	blockSize int
	batchSize int
	verbose   bool
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "quiver",
		Short: "An embedded analytical SQL engine",
		Long:  "quiver runs a PostgreSQL-subset SQL engine, either in memory or against an on-disk columnar store.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().StringVar(&dbPath, "path", "", "on-disk database directory (in-memory if unset)")
	root.PersistentFlags().IntVar(&cacheSize, "cache-size-bytes", 0, "block cache size in bytes (default 1 GiB)")
	root.PersistentFlags().IntVar(&blockSize, "target-block-size", 0, "target column block size in bytes (default 16 KiB)")
	root.PersistentFlags().IntVar(&batchSize, "batch-size", 0, "executor batch size (default 2048)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log statement plans at debug level")

	root.AddCommand(newRunCmd(), newReplCmd(), newVersionCmd())
	return root
}

func openDatabase() (*quiver.Database, error) {
	if dbPath == "" {
		return quiver.New(), nil
	}
	return quiver.NewOnDisk(quiver.Options{
		Path:            dbPath,
		CacheSizeBytes:  cacheSize,
		TargetBlockSize: blockSize,
		BatchSize:       batchSize,
	})
}

func newRunCmd() *cobra.Command {
	var (
		file string
		sql  string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute SQL from a file or an inline string and print the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" && sql == "" {
				return errors.New("one of --file or --sql is required")
			}
			if file != "" && sql != "" {
				return errors.New("specify only one of --file or --sql")
			}
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return sqlerr.Wrap(sqlerr.ErrIo, err.Error())
				}
				sql = string(data)
			}

			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			chunks, err := db.Run(sql)
			if err != nil {
				return err
			}
			printChunks(cmd, chunks)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to a SQL script")
	cmd.Flags().StringVar(&sql, "sql", "", "inline SQL to execute")
	return cmd
}

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive SQL prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()
			return runRepl(cmd, db)
		},
	}
}

func runRepl(cmd *cobra.Command, db *quiver.Database) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var buf strings.Builder
	fmt.Fprint(cmd.OutOrStdout(), "quiver> ")
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteString(line)
		buf.WriteByte('\n')
		if !strings.HasSuffix(strings.TrimSpace(line), ";") {
			continue
		}
		stmt := buf.String()
		buf.Reset()

		chunks, err := db.Run(stmt)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		} else {
			printChunks(cmd, chunks)
		}
		fmt.Fprint(cmd.OutOrStdout(), "quiver> ")
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return scanner.Err()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("quiver dev")
		},
	}
}

// printChunks renders each chunk as a header row plus one line per row,
// tab-separated; NULL cells print as the literal "NULL".
func printChunks(cmd *cobra.Command, chunks []chunk.Chunk) {
	w := cmd.OutOrStdout()
	for _, c := range chunks {
		if len(c.Names) == 0 {
			fmt.Fprintf(w, "(%d row(s))\n", c.NumRows())
			continue
		}
		fmt.Fprintln(w, strings.Join(c.Names, "\t"))
		for r := 0; r < c.NumRows(); r++ {
			cells := make([]string, len(c.Columns))
			for ci, col := range c.Columns {
				if col.IsValid(r) {
					cells[ci] = col.Get(r).String()
				} else {
					cells[ci] = "NULL"
				}
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
	}
}

// exitCodeFor maps a top-level error to the CLI exit code (spec 6: "0 on
// clean exit; 1 on fatal I/O").
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
