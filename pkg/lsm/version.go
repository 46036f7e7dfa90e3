package lsm

import (
	"fmt"
	"sort"
)

// NumLevels is the number of levels in the tree.
const NumLevels = 7

// MaxMemCompactLevel bounds how deep pickLevelForMemtableOutput will push a
// freshly flushed memtable's output before the expected future compaction
// cost outweighs the benefit of skipping levels.
const MaxMemCompactLevel = 2

// DefaultMaxFileSize is the target size of one level table.
const DefaultMaxFileSize = 2 * 1024 * 1024

// maxGrandparentOverlapBytes bounds how much level-(L+2) data a single
// compaction output file may overlap before ShouldStopBefore forces it
// closed.
func maxGrandparentOverlapBytes(maxFileSize int64) int64 { return maxFileSize * 10 }

// maxBytesForLevel is 10MiB at level 1, scaling by 10x per additional
// level.
func maxBytesForLevel(level int) int64 {
	result := 10.0 * 1048576.0
	for l := level; l > 1; l-- {
		result *= 10.0
	}
	return int64(result)
}

// FileMetaData describes one level table on disk.
type FileMetaData struct {
	Num         int64
	Size        int64
	Refs        int
	SmallestKey InternalKey
	LargestKey  InternalKey
}

// totalFileSize sums Size across files.
func totalFileSize(files []*FileMetaData) int64 {
	var sum int64
	for _, f := range files {
		sum += f.Size
	}
	return sum
}

// findFile binary-searches for the smallest index i such that
// key <= files[i].LargestKey. files must be sorted and, for level >= 1,
// non-overlapping.
func findFile(files []*FileMetaData, key InternalKey) int {
	return sort.Search(len(files), func(i int) bool {
		return Compare(key, files[i].LargestKey) <= 0
	})
}

// Version is one immutable snapshot of the files-per-level mapping, plus
// the precomputed level/score the compaction planner should act on next.
// Versions are published by VersionSet.LogAndApply and never mutated after.
type Version struct {
	vset  *VersionSet
	Files [NumLevels][]*FileMetaData

	CompactionScore float64
	CompactionLevel int
}

// Get searches level 0 (newest-file-first, since it may overlap) then each
// higher level's non-overlapping files in turn, consulting the owning
// VersionSet to read each candidate table.
func (v *Version) Get(key InternalKey) (valuePos int64, valueLen int, found bool, err error) {
	var l0Candidates []*FileMetaData
	for _, f := range v.Files[0] {
		if key.UserKey >= f.SmallestKey.UserKey && key.UserKey <= f.LargestKey.UserKey {
			l0Candidates = append(l0Candidates, f)
		}
	}
	sort.Slice(l0Candidates, func(i, j int) bool { return l0Candidates[i].Num > l0Candidates[j].Num })
	for _, f := range l0Candidates {
		pos, size, ok, err := v.vset.getFromTable(f, key)
		if err != nil {
			return 0, 0, false, err
		}
		if ok {
			return pos, size, true, nil
		}
	}

	for level := 1; level < NumLevels; level++ {
		if len(v.Files[level]) == 0 {
			continue
		}
		idx := findFile(v.Files[level], key)
		if idx < len(v.Files[level]) && key.UserKey >= v.Files[level][idx].SmallestKey.UserKey {
			pos, size, ok, err := v.vset.getFromTable(v.Files[level][idx], key)
			if err != nil {
				return 0, 0, false, err
			}
			if ok {
				return pos, size, true, nil
			}
		}
	}
	return 0, 0, false, nil
}

// overlapInLevel reports whether any file at level intersects
// [smallestUserKey, largestUserKey]. Level 0 is a linear scan since its
// files may overlap; deeper levels use findFile then a boundary check.
func (v *Version) overlapInLevel(level int, smallestUserKey, largestUserKey string) bool {
	if level == 0 {
		for _, f := range v.Files[0] {
			if !(smallestUserKey > f.LargestKey.UserKey || largestUserKey < f.SmallestKey.UserKey) {
				return true
			}
		}
		return false
	}
	idx := findFile(v.Files[level], InternalKey{UserKey: smallestUserKey, SequenceNum: MaxSequenceNum})
	if idx >= len(v.Files[level]) {
		return false
	}
	return largestUserKey >= v.Files[level][idx].SmallestKey.UserKey
}

// pickLevelForMemtableOutput chooses how deep a freshly flushed memtable's
// output table may land without creating outsized future compaction debt.
func (v *Version) pickLevelForMemtableOutput(smallestUserKey, largestUserKey string, maxFileSize int64) int {
	level := 0
	if v.overlapInLevel(0, smallestUserKey, largestUserKey) {
		return level
	}
	start := InternalKey{UserKey: smallestUserKey, SequenceNum: MaxSequenceNum}
	limit := InternalKey{UserKey: largestUserKey, SequenceNum: 0}
	for level < MaxMemCompactLevel {
		if v.overlapInLevel(level+1, smallestUserKey, largestUserKey) {
			break
		}
		if level+2 < NumLevels {
			overlaps := v.getOverlapInputs(level+2, start, limit)
			if totalFileSize(overlaps) > maxGrandparentOverlapBytes(maxFileSize) {
				break
			}
		}
		level++
	}
	return level
}

// getOverlapInputs collects every file at level whose user-key range
// intersects [begin.UserKey, end.UserKey]. At level 0, picking a file that
// expands the range restarts the scan with the wider range, since level-0
// files may themselves overlap further files not yet considered.
func (v *Version) getOverlapInputs(level int, begin, end InternalKey) []*FileMetaData {
	var inputs []*FileMetaData
	userBegin, userEnd := begin.UserKey, end.UserKey

	i := 0
	for i < len(v.Files[level]) {
		f := v.Files[level][i]
		fileBegin, fileEnd := f.SmallestKey.UserKey, f.LargestKey.UserKey
		if !(fileEnd < userBegin || fileBegin > userEnd) {
			inputs = append(inputs, f)
			if level == 0 {
				if fileBegin < userBegin {
					userBegin = fileBegin
					inputs = inputs[:0]
					i = 0
					continue
				} else if fileEnd > userEnd {
					userEnd = fileEnd
					inputs = inputs[:0]
					i = 0
					continue
				}
			}
		}
		i++
	}
	return inputs
}

// VersionEdit is the delta LogAndApply applies to the current version: new
// files per level, file numbers to delete, and updated bookkeeping.
type VersionEdit struct {
	NewFiles     map[int][]*FileMetaData
	DeletedFiles map[int]map[int64]bool

	LogNumber     *int64
	PrevLogNumber *int64
	LastSequence  *uint64
}

// NewVersionEdit returns an empty edit ready for AddFile/RemoveFile calls.
func NewVersionEdit() *VersionEdit {
	return &VersionEdit{
		NewFiles:     make(map[int][]*FileMetaData),
		DeletedFiles: make(map[int]map[int64]bool),
	}
}

// AddFile records that f should be added to level in the next version.
func (e *VersionEdit) AddFile(level int, f *FileMetaData) {
	e.NewFiles[level] = append(e.NewFiles[level], f)
}

// RemoveFile records that file num should be dropped from level.
func (e *VersionEdit) RemoveFile(level int, num int64) {
	if e.DeletedFiles[level] == nil {
		e.DeletedFiles[level] = make(map[int64]bool)
	}
	e.DeletedFiles[level][num] = true
}

// VersionSet is the ordered chain of published versions: a current pointer,
// monotonic file numbering, and the table-read path every Version.Get call
// delegates back to.
type VersionSet struct {
	dir             string
	current         *Version
	nextFileNumber  int64
	logNumber       int64
	prevLogNumber   int64
	lastSequence    uint64
	maxFileSize     int64
	compactPointer  [NumLevels]InternalKey
	openTables      map[int64]*SSTable
}

// NewVersionSet returns an empty VersionSet with one empty current version.
func NewVersionSet(dir string, maxFileSize int64) *VersionSet {
	vs := &VersionSet{dir: dir, maxFileSize: maxFileSize, nextFileNumber: 1, openTables: make(map[int64]*SSTable)}
	vs.current = &Version{vset: vs, CompactionLevel: -1, CompactionScore: -1}
	return vs
}

// NewFileNumber allocates and returns the next level-table file number.
func (vs *VersionSet) NewFileNumber() int64 {
	n := vs.nextFileNumber
	vs.nextFileNumber++
	return n
}

// LastSequence returns the highest sequence number assigned so far.
func (vs *VersionSet) LastSequence() uint64 { return vs.lastSequence }

// SetLastSequence advances the last-assigned sequence number.
func (vs *VersionSet) SetLastSequence(seq uint64) {
	if seq > vs.lastSequence {
		vs.lastSequence = seq
	}
}

// Current returns the published version reads should consult.
func (vs *VersionSet) Current() *Version { return vs.current }

// RegisterTable makes an already-opened table's entries reachable from
// Version.Get without reopening the file on every lookup.
func (vs *VersionSet) RegisterTable(t *SSTable) { vs.openTables[t.num] = t }

// ForgetTable drops a table from the open-table cache once no version
// references it; the caller is responsible for deleting the file itself.
func (vs *VersionSet) ForgetTable(num int64) { delete(vs.openTables, num) }

func (vs *VersionSet) getFromTable(meta *FileMetaData, key InternalKey) (int64, int, bool, error) {
	t, ok := vs.openTables[meta.Num]
	if !ok {
		var err error
		t, err = OpenTable(tablePath(vs.dir, meta.Num), meta.Num)
		if err != nil {
			return 0, 0, false, err
		}
		vs.openTables[meta.Num] = t
	}
	pos, size, found := t.Get(key)
	return pos, size, found, nil
}

func tablePath(dir string, num int64) string {
	return fmt.Sprintf("%s/%06d.dbt", dir, num)
}

// LogAndApply merges edit into the current version (per-level
// merge-by-smallest, compaction-score selection) and publishes the result
// as current. The manifest is kept as an in-process structure rather than a
// separately replayed log; the operation log alone carries crash recovery.
func (vs *VersionSet) LogAndApply(edit *VersionEdit) error {
	if edit.LogNumber == nil {
		n := vs.logNumber
		edit.LogNumber = &n
	}
	if edit.PrevLogNumber == nil {
		n := vs.prevLogNumber
		edit.PrevLogNumber = &n
	}
	vs.logNumber = *edit.LogNumber
	vs.prevLogNumber = *edit.PrevLogNumber
	if edit.LastSequence != nil {
		vs.SetLastSequence(*edit.LastSequence)
	}

	next := &Version{vset: vs, CompactionLevel: -1, CompactionScore: -1}
	for level := 0; level < NumLevels; level++ {
		deleted := edit.DeletedFiles[level]
		var kept []*FileMetaData
		for _, f := range vs.current.Files[level] {
			if deleted != nil && deleted[f.Num] {
				continue
			}
			kept = append(kept, f)
		}
		kept = append(kept, edit.NewFiles[level]...)
		sort.Slice(kept, func(i, j int) bool {
			if kept[i].SmallestKey != kept[j].SmallestKey {
				return Compare(kept[i].SmallestKey, kept[j].SmallestKey) < 0
			}
			return kept[i].Num < kept[j].Num
		})
		next.Files[level] = kept
	}

	bestLevel, bestScore := -1, -1.0
	for level := 0; level < NumLevels-1; level++ {
		var score float64
		if level == 0 {
			score = float64(len(next.Files[0])) / float64(kL0CompactionTrigger)
		} else {
			score = float64(totalFileSize(next.Files[level])) / float64(maxBytesForLevel(level))
		}
		if score > bestScore {
			bestLevel, bestScore = level, score
		}
	}
	next.CompactionLevel = bestLevel
	next.CompactionScore = bestScore

	vs.current = next
	return nil
}
