package main

import (
	"errors"
	"fmt"
	"github.com/gostonefire/exthashdb"
	"github.com/gostonefire/exthashdb/crt"
	"github.com/gostonefire/exthashdb/hashfunc"
	"github.com/gostonefire/exthashdb/internal/config"
	"github.com/spf13/cobra"
	"slices"
	"strconv"
)

// Boundary names accepted by the scan command
const (
	scanCeiling = "ceiling"
	scanFloor   = "floor"
	scanHigher  = "higher"
	scanLower   = "lower"
)

func newIndexCommand(a *app) *cobra.Command {
	index := &cobra.Command{
		Use:   "index",
		Short: "Work with a file backed hash table named by index.name",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create an empty table, existing files are overwritten",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := a.tableName()
			if err != nil {
				return err
			}

			table, info, err := exthashdb.NewHashTable(exthashdb.TableConf{
				Name:           name,
				BucketCapacity: a.config.Index.BucketCapacity,
				MaxLevelDepth:  a.config.Index.MaxLevelDepth,
				HashAlgorithm:  hashAlgorithm(a.config.Index.Hash),
			})
			if err != nil {
				return err
			}
			table.CloseFiles()

			a.logger.Info("table created", "name", name, "bucket_capacity", info.BucketCapacity, "max_level_depth", info.MaxLevelDepth)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", name)

			return err
		},
	}

	var segmentID, recordSize, version int32
	var segmentPos int64
	var recordType uint8
	put := &cobra.Command{
		Use:   "put <key>",
		Short: "Insert a position, an existing key is left untouched",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := strconv.ParseUint(args[0], 0, 64)
			if err != nil {
				return fmt.Errorf("invalid key %q: %w", args[0], err)
			}

			return a.withTable(func(table *exthashdb.HashTable) error {
				added, err := table.Put(exthashdb.Position{
					Key:        key,
					SegmentID:  segmentID,
					SegmentPos: segmentPos,
					RecordSize: recordSize,
					Version:    version,
					RecordType: recordType,
				})
				if err != nil {
					return err
				}
				if !added {
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "exists %d\n", key)
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "added %d\n", key)

				return err
			})
		},
	}
	put.Flags().Int32Var(&segmentID, "segment", 0, "segment id of the record")
	put.Flags().Int64Var(&segmentPos, "offset", 0, "offset of the record within the segment")
	put.Flags().Int32Var(&recordSize, "size", 0, "record size")
	put.Flags().Int32Var(&version, "version", 0, "record version")
	put.Flags().Uint8Var(&recordType, "type", 0, "record type")

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the position of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := strconv.ParseUint(args[0], 0, 64)
			if err != nil {
				return fmt.Errorf("invalid key %q: %w", args[0], err)
			}

			return a.withTable(func(table *exthashdb.HashTable) error {
				position, err := table.Get(key)
				if err != nil {
					return err
				}

				return printPosition(cmd, position)
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := strconv.ParseUint(args[0], 0, 64)
			if err != nil {
				return fmt.Errorf("invalid key %q: %w", args[0], err)
			}

			return a.withTable(func(table *exthashdb.HashTable) error {
				_, err := table.Delete(key)
				if errors.Is(err, crt.NoRecordFound{}) {
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "missing %d\n", key)
					return err
				}
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d\n", key)

				return err
			})
		},
	}

	var boundary string
	var limit int
	scan := &cobra.Command{
		Use:   "scan <key>",
		Short: "Print the entries from a key onwards, ceiling and higher walk up in hash order, floor and lower walk down",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := strconv.ParseUint(args[0], 0, 64)
			if err != nil {
				return fmt.Errorf("invalid key %q: %w", args[0], err)
			}

			return a.withTable(func(table *exthashdb.HashTable) error {
				entries, err := scanEntries(table, key, boundary, limit)
				if err != nil {
					return err
				}

				for _, entry := range entries {
					if err = printPosition(cmd, entry.Value); err != nil {
						return err
					}
				}

				return nil
			})
		},
	}
	scan.Flags().StringVar(&boundary, "boundary", scanCeiling, "one of ceiling, floor, higher, lower")
	scan.Flags().IntVar(&limit, "limit", 0, "max entries to print, 0 prints all")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print size and structural statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withTable(func(table *exthashdb.HashTable) error {
				s := table.Stats()
				_, err := fmt.Fprintf(cmd.OutOrStdout(),
					"size=%d buckets=%d nodes=%d splits=%d merges=%d root_doublings=%d node_splits=%d levels_added=%d nodes_merged=%d\n",
					table.Size(), s.Buckets, s.Nodes, s.Splits, s.Merges, s.RootDoublings, s.NodeSplits, s.LevelsAdded, s.NodesMerged)

				return err
			})
		},
	}

	index.AddCommand(create, put, get, del, scan, stats)

	return index
}

// scanEntries - Collects entries bucket by bucket along the chain until limit entries are found or the chain ends
func scanEntries(table *exthashdb.HashTable, key uint64, boundary string, limit int) (entries []exthashdb.Entry, err error) {
	var first, next func(key uint64) ([]exthashdb.Entry, error)
	switch boundary {
	case scanCeiling:
		first, next = table.CeilingEntries, table.HigherEntries
	case scanHigher:
		first, next = table.HigherEntries, table.HigherEntries
	case scanFloor:
		first, next = table.FloorEntries, table.LowerEntries
	case scanLower:
		first, next = table.LowerEntries, table.LowerEntries
	default:
		err = fmt.Errorf("unknown boundary %q", boundary)
		return
	}
	forward := boundary == scanCeiling || boundary == scanHigher

	batch, err := first(key)
	for err == nil && len(batch) > 0 {
		if !forward {
			slices.Reverse(batch)
		}
		entries = append(entries, batch...)
		if limit > 0 && len(entries) >= limit {
			entries = entries[:limit]
			return
		}
		batch, err = next(entries[len(entries)-1].Key)
	}

	return
}

// tableName - Returns the configured table name, a file backed table is required
func (a *app) tableName() (string, error) {
	if a.config.Index.Name == "" {
		return "", errors.New("index.name must be set in the configuration")
	}

	return a.config.Index.Name, nil
}

// withTable - Opens the configured table, runs fn and syncs and closes the table
func (a *app) withTable(fn func(table *exthashdb.HashTable) error) error {
	name, err := a.tableName()
	if err != nil {
		return err
	}

	table, _, err := exthashdb.NewFromExistingFiles(name, hashAlgorithm(a.config.Index.Hash))
	if err != nil {
		return fmt.Errorf("error while opening table %s: %w", name, err)
	}
	defer table.CloseFiles()

	return fn(table)
}

// hashAlgorithm - Returns the algorithm named in the configuration, nil for the internal one
func hashAlgorithm(name string) hashfunc.HashAlgorithm {
	if name == config.HashMix {
		return exthashdb.MixHashAlgorithm()
	}

	return nil
}

func printPosition(cmd *cobra.Command, p exthashdb.Position) error {
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%d segment=%d offset=%d size=%d version=%d type=%d\n",
		p.Key, p.SegmentID, p.SegmentPos, p.RecordSize, p.Version, p.RecordType)

	return err
}
