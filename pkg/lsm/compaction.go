package lsm

import (
	"os"

	"github.com/dd0wney/kvs/pkg/record"
)

// kL0CompactionTrigger is the level-0 file count past which compaction score
// reaches 1.0.
const kL0CompactionTrigger = 4

// kL0StopWritesTrigger is the level-0 file count past which writes would
// normally be throttled. No code path consults it: writers are never
// throttled or blocked on the level-0 file count.
const kL0StopWritesTrigger = 12

// Compaction describes one compaction job: the level being compacted, the
// input files at that level and its parent/grandparent, and the edit being
// built up as the merge loop emits output tables.
type Compaction struct {
	Level int
	Edit  *VersionEdit

	inputs [3][]*FileMetaData // [level, level+1, level+2]

	grandparentIdx   int
	seenKey          bool
	overlappedBytes  int64
	maxOutputFileSiz int64
	levelPtr         [NumLevels]int
}

// NewCompaction starts a compaction job targeting level.
func NewCompaction(level int, maxFileSize int64) *Compaction {
	return &Compaction{
		Level:            level,
		Edit:             NewVersionEdit(),
		maxOutputFileSiz: maxFileSize,
	}
}

// NumInputFiles returns the number of files in inputs[which], which must be
// 0, 1, or 2 (this level, the next level, or the grandparent level).
func (c *Compaction) NumInputFiles(which int) int { return len(c.inputs[which]) }

// IsTrivialMove reports whether the compaction can be satisfied by
// re-parenting a single file to level+1 without rewriting it: exactly one
// input at this level, none at the next, and the grandparent overlap small
// enough not to create future compaction debt.
func (c *Compaction) IsTrivialMove() bool {
	return c.NumInputFiles(0) == 1 &&
		c.NumInputFiles(1) == 0 &&
		totalFileSize(c.inputs[2]) <= maxGrandparentOverlapBytes(c.maxOutputFileSiz)
}

// AddInputDeletions marks every input file at this level and the next for
// removal from the version being edited.
func (c *Compaction) AddInputDeletions() {
	for which := 0; which < 2; which++ {
		for _, f := range c.inputs[which] {
			c.Edit.RemoveFile(c.Level+which, f.Num)
		}
	}
}

// ShouldStopBefore advances the grandparent-overlap cursor past any file
// whose LargestKey is below key, accumulating overlapped bytes, and reports
// whether the running total has crossed the threshold that should force the
// current output file closed (resetting the counter when it does).
func (c *Compaction) ShouldStopBefore(key InternalKey) bool {
	for c.grandparentIdx < len(c.inputs[2]) && Compare(key, c.inputs[2][c.grandparentIdx].LargestKey) > 0 {
		c.overlappedBytes += c.inputs[2][c.grandparentIdx].Size
		c.grandparentIdx++
	}
	c.seenKey = true

	if c.overlappedBytes > maxGrandparentOverlapBytes(c.maxOutputFileSiz) {
		c.overlappedBytes = 0
		return true
	}
	return false
}

// IsBaseLevelForKey reports whether no level >= Level+2 holds a file whose
// range covers userKey. A Remove tombstone may only be dropped during
// compaction when this holds, otherwise an older Set hiding beneath a
// deeper level would resurface.
func (c *Compaction) IsBaseLevelForKey(version *Version, userKey string) bool {
	for lvl := c.Level + 2; lvl < NumLevels; lvl++ {
		files := version.Files[lvl]
		for c.levelPtr[lvl] < len(files) {
			f := files[c.levelPtr[lvl]]
			if userKey <= f.LargestKey.UserKey {
				if userKey >= f.SmallestKey.UserKey {
					return false
				}
				break
			}
			c.levelPtr[lvl]++
		}
	}
	return true
}

// PickCompaction chooses the next compaction job from the current version:
// a size-triggered compaction when CompactionScore >= 1 (picking the first
// file at the chosen level past the level's compact pointer, wrapping to
// the first file if none qualifies), expanded to every overlapping file at
// the level (relevant at level 0 only) and the corresponding parent and
// grandparent ranges.
func (vs *VersionSet) PickCompaction() *Compaction {
	v := vs.current
	if v.CompactionScore < 1.0 {
		return nil
	}

	level := v.CompactionLevel
	c := NewCompaction(level, vs.maxFileSize)

	files := v.Files[level]
	if len(files) == 0 {
		return nil
	}

	var picked *FileMetaData
	cp := vs.compactPointer[level]
	for _, f := range files {
		if (cp == InternalKey{}) || Compare(cp, f.LargestKey) < 0 {
			picked = f
			break
		}
	}
	if picked == nil {
		picked = files[0]
	}
	c.inputs[0] = []*FileMetaData{picked}

	if level == 0 {
		overlaps := v.getOverlapInputs(0, picked.SmallestKey, picked.LargestKey)
		c.inputs[0] = overlaps
	}

	smallest, largest := rangeOf(c.inputs[0])
	c.inputs[1] = v.getOverlapInputs(level+1, smallest, largest)
	if level+2 < NumLevels {
		allSmallest, allLargest := rangeOf(append(append([]*FileMetaData{}, c.inputs[0]...), c.inputs[1]...))
		c.inputs[2] = v.getOverlapInputs(level+2, allSmallest, allLargest)
	}

	vs.compactPointer[level] = largest
	return c
}

func rangeOf(files []*FileMetaData) (smallest, largest InternalKey) {
	if len(files) == 0 {
		return
	}
	smallest, largest = files[0].SmallestKey, files[0].LargestKey
	for _, f := range files[1:] {
		if Compare(f.SmallestKey, smallest) < 0 {
			smallest = f.SmallestKey
		}
		if Compare(f.LargestKey, largest) > 0 {
			largest = f.LargestKey
		}
	}
	return
}

// Run executes the compaction's merge loop: iterate every input entry in
// ascending InternalKey order, drop entries a snapshot can no longer see
// (a superseded Set, or a Remove once IsBaseLevelForKey holds), and emit
// the rest to output tables, rolling over to a new output file whenever
// ShouldStopBefore fires or the current file exceeds the output size limit.
// On completion it stages input-file deletions and the new output files
// into the Compaction's VersionEdit; the caller applies the edit and
// deletes the obsolete files.
func (c *Compaction) Run(vs *VersionSet, tableDir string) error {
	entries, err := mergeInputs(vs, c.inputs[0], c.inputs[1])
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		c.AddInputDeletions()
		return nil
	}

	var (
		current      []tableEntry
		lastUserKey  string
		haveLastKey  bool
		outputLevel  = c.Level + 1
	)

	flush := func() error {
		if len(current) == 0 {
			return nil
		}
		num := vs.NewFileNumber()
		meta, err := WriteTable(tablePath(tableDir, num), num, current)
		if err != nil {
			return err
		}
		c.Edit.AddFile(outputLevel, meta)
		current = current[:0]
		return nil
	}

	for _, e := range entries {
		dropSet := haveLastKey && e.key.UserKey == lastUserKey
		dropRemove := e.key.Cmd == record.Remove && !dropSet && c.IsBaseLevelForKey(vs.current, e.key.UserKey)
		lastUserKey, haveLastKey = e.key.UserKey, true

		if dropSet || dropRemove {
			continue
		}

		if c.ShouldStopBefore(e.key) {
			if err := flush(); err != nil {
				return err
			}
		}

		current = append(current, e)

		size := int64(0)
		for _, ce := range current {
			size += int64(len(ce.encoded) + 16)
		}
		if size >= c.maxOutputFileSiz {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	c.AddInputDeletions()
	return nil
}

// mergeInputs reads every entry out of inputs[0] and inputs[1]'s tables and
// returns them merged in ascending InternalKey order.
func mergeInputs(vs *VersionSet, a, b []*FileMetaData) ([]tableEntry, error) {
	var all []tableEntry
	for _, f := range append(append([]*FileMetaData{}, a...), b...) {
		t, ok := vs.openTables[f.Num]
		if !ok {
			var err error
			t, err = OpenTable(tablePath(vs.dir, f.Num), f.Num)
			if err != nil {
				return nil, err
			}
			vs.openTables[f.Num] = t
		}
		all = append(all, t.Entries()...)
	}
	sortEntries(all)
	return all, nil
}

func sortEntries(entries []tableEntry) {
	insertionSortEntries(entries)
}

// insertionSortEntries sorts small merged batches by InternalKey order; the
// number of entries merged per compaction is bounded by max_file_size, so a
// simple sort is sufficient.
func insertionSortEntries(entries []tableEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && Compare(entries[j].key, entries[j-1].key) < 0; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

// DeleteObsoleteFiles removes level-table files on disk that are no longer
// referenced by the current version and forgets them from the open-table
// cache. Called after a compaction's edit has been applied.
func (vs *VersionSet) DeleteObsoleteFiles(deleted map[int64]bool) {
	for num := range deleted {
		vs.ForgetTable(num)
		_ = os.Remove(tablePath(vs.dir, num))
	}
}
