//go:build stress

package test

import (
	"bufio"
	"errors"
	"fmt"
	"github.com/gostonefire/exthashdb"
	"github.com/gostonefire/exthashdb/crt"
	"github.com/stretchr/testify/assert"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"testing"
)

func createAndStoreTestdata(rnd *rand.Rand, amount int, fileName string) error {
	f, err := os.OpenFile(fileName, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer func(f *os.File) { _ = f.Close() }(f)

	for i := 0; i < amount; i++ {
		_, err = fmt.Fprintln(f, strconv.FormatUint(rnd.Uint64(), 10))
		if err != nil {
			return err
		}
	}

	return nil
}

// readKeys - Calls fn for every key in the test data file
func readKeys(fileName string, fn func(key uint64) error) error {
	f, err := os.OpenFile(fileName, os.O_RDONLY, 0644)
	if err != nil {
		return err
	}
	defer func(f *os.File) { _ = f.Close() }(f)

	fr := bufio.NewReader(f)
	for {
		line, err := fr.ReadString('\n')
		if errors.Is(err, io.EOF) {
			break
		}
		key, err := strconv.ParseUint(strings.TrimRight(line, "\n\r"), 10, 64)
		if err != nil {
			return err
		}
		if err = fn(key); err != nil {
			return err
		}
	}

	return nil
}

func positionOf(key uint64) exthashdb.Position {
	return exthashdb.Position{Key: key, SegmentID: int32(key % 31), SegmentPos: int64(key >> 20), RecordSize: 64, Version: 1}
}

func setTestdata(fileName string, ht *exthashdb.HashTable) error {
	return readKeys(fileName, func(key uint64) error {
		_, err := ht.Put(positionOf(key))
		return err
	})
}

func deleteTestdata(fileName string, ht *exthashdb.HashTable) error {
	return readKeys(fileName, func(key uint64) error {
		p, err := ht.Delete(key)
		if err != nil {
			return err
		}
		if p != positionOf(key) {
			return fmt.Errorf("deleted wrong value for key %d", key)
		}
		return nil
	})
}

func getTestdata(fileName string, ht *exthashdb.HashTable, shouldNotExist bool) error {
	return readKeys(fileName, func(key uint64) error {
		p, err := ht.Get(key)
		if shouldNotExist {
			if err == nil {
				return fmt.Errorf("get should not get data for key %d", key)
			} else if !errors.Is(err, crt.NoRecordFound{}) {
				return err
			}
			return nil
		}
		if err != nil {
			return err
		}
		if p != positionOf(key) {
			return fmt.Errorf("got wrong value for key %d", key)
		}
		return nil
	})
}

type TestCaseStressTest struct {
	name       string
	conf       exthashdb.TableConf
	nTestdata  int
	persistent bool
}

func TestStress(t *testing.T) {
	t.Run("stress tests for table configurations", func(t *testing.T) {
		// Prepare
		tests := []TestCaseStressTest{
			{name: "in memory", conf: exthashdb.TableConf{}, nTestdata: 1000000},
			{name: "in memory small nodes", conf: exthashdb.TableConf{MaxLevelDepth: 2, BucketCapacity: 8}, nTestdata: 300000},
			{name: "files", conf: exthashdb.TableConf{Name: "stress"}, nTestdata: 200000, persistent: true},
		}

		for _, test := range tests {
			t.Run(fmt.Sprintf("handles lots of splits and merges for %s", test.name), func(t *testing.T) {
				// Prepare test data
				rnd := rand.New(rand.NewSource(123))
				err := createAndStoreTestdata(rnd, test.nTestdata, "testdata_1.txt")
				assert.NoError(t, err, "create testdata 1")
				err = createAndStoreTestdata(rnd, test.nTestdata, "testdata_2.txt")
				assert.NoError(t, err, "create testdata 2")
				err = createAndStoreTestdata(rnd, test.nTestdata, "testdata_3.txt")
				assert.NoError(t, err, "create testdata 3")

				// Prepare table
				ht, _, err := exthashdb.NewHashTable(test.conf)
				assert.NoError(t, err, "create table")

				// Set first two sets of test data
				err = setTestdata("testdata_1.txt", ht)
				assert.NoError(t, err, "set test set 1")
				err = setTestdata("testdata_2.txt", ht)
				assert.NoError(t, err, "set test set 2")

				// Remove first set
				err = deleteTestdata("testdata_1.txt", ht)
				assert.NoError(t, err, "delete test set 1")

				// Set third set of test data
				err = setTestdata("testdata_3.txt", ht)
				assert.NoError(t, err, "set test set 3")

				// Check all three test sets
				err = getTestdata("testdata_1.txt", ht, true)
				assert.NoError(t, err, "get test set 1, should not exist")
				err = getTestdata("testdata_2.txt", ht, false)
				assert.NoError(t, err, "get test set 2")
				err = getTestdata("testdata_3.txt", ht, false)
				assert.NoError(t, err, "get test set 3")
				assert.NoError(t, ht.CheckChainOrder(), "chain intact")

				if test.persistent {
					// Reopen from files
					ht.CloseFiles()
					ht, _, err = exthashdb.NewFromExistingFiles(test.conf.Name, nil)
					assert.NoError(t, err, "reopen files")
					err = getTestdata("testdata_3.txt", ht, false)
					assert.NoError(t, err, "get test set 3 after reopen")
				}

				// Remove second set
				err = deleteTestdata("testdata_2.txt", ht)
				assert.NoError(t, err, "delete test set 2")

				// Check all three test sets
				err = getTestdata("testdata_1.txt", ht, true)
				assert.NoError(t, err, "get test set 1, should not exist")
				err = getTestdata("testdata_2.txt", ht, true)
				assert.NoError(t, err, "get test set 2, should not exist")
				err = getTestdata("testdata_3.txt", ht, false)
				assert.NoError(t, err, "get test set 3")

				// Get stats
				stats := ht.Stats()
				assert.Equal(t, int64(test.nTestdata), ht.Size(), "correct number of records")
				assert.Greater(t, stats.Splits, int64(0), "buckets were split")
				assert.Greater(t, stats.Merges, int64(0), "buckets were merged")
				assert.NoError(t, ht.CheckChainOrder(), "chain intact")

				// Remove files
				if test.persistent {
					err = ht.RemoveFiles()
					assert.NoError(t, err, "remove files")
				}

				// Remove test sets
				err = os.Remove("testdata_1.txt")
				assert.NoError(t, err, "remove testdata 1")
				err = os.Remove("testdata_2.txt")
				assert.NoError(t, err, "remove testdata 2")
				err = os.Remove("testdata_3.txt")
				assert.NoError(t, err, "remove testdata 3")
			})
		}
	})
}
