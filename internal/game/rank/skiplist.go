// Package rank keeps scored keys in rank order.
//
// SkipList is a Pugh (1990) skip list augmented with span counts, the
// same layout Redis uses for sorted sets. Span counts make rank lookups
// and rank ranges O(log n). A key index gives O(1) membership checks.
package rank

import (
	"math/rand"
)

const (
	maxLevel         = 24
	levelProbability = 0.25
)

// Entry is a scored key. Higher scores rank first; equal scores keep
// insertion order.
type Entry struct {
	Key   string
	Score float64
	seq   uint64
}

type node struct {
	entry Entry
	next  []*node
	span  []int // ranks skipped when following next[i]
}

// before reports whether a ranks ahead of b
func before(a, b *Entry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.seq < b.seq
}

// SkipList is not safe for concurrent use; owners hold their own lock.
type SkipList struct {
	head   *node
	level  int
	length int
	seq    uint64
	index  map[string]*node
	rng    *rand.Rand
}

// New creates an empty list. The seed only shapes tower heights.
func New(seed int64) *SkipList {
	return &SkipList{
		head: &node{
			next: make([]*node, maxLevel),
			span: make([]int, maxLevel),
		},
		level: 1,
		index: make(map[string]*node),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

func (sl *SkipList) randomLevel() int {
	level := 1
	for level < maxLevel && sl.rng.Float64() < levelProbability {
		level++
	}
	return level
}

// Len returns the number of keys
func (sl *SkipList) Len() int {
	return sl.length
}

// Insert adds key or moves it to a new score. Returns the 1-based rank.
// Re-inserting a key with an unchanged score keeps its place.
func (sl *SkipList) Insert(key string, score float64) int {
	if n, ok := sl.index[key]; ok {
		if n.entry.Score == score {
			return sl.rankOf(n)
		}
		sl.unlink(n)
	}

	sl.seq++
	e := Entry{Key: key, Score: score, seq: sl.seq}

	var update [maxLevel]*node
	var rank [maxLevel]int

	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		if i < sl.level-1 {
			rank[i] = rank[i+1]
		}
		for x.next[i] != nil && before(&x.next[i].entry, &e) {
			rank[i] += x.span[i]
			x = x.next[i]
		}
		update[i] = x
	}

	lvl := sl.randomLevel()
	if lvl > sl.level {
		for i := sl.level; i < lvl; i++ {
			rank[i] = 0
			update[i] = sl.head
			update[i].span[i] = sl.length
		}
		sl.level = lvl
	}

	n := &node{
		entry: e,
		next:  make([]*node, lvl),
		span:  make([]int, lvl),
	}
	for i := 0; i < lvl; i++ {
		n.next[i] = update[i].next[i]
		update[i].next[i] = n

		n.span[i] = update[i].span[i] - (rank[0] - rank[i])
		update[i].span[i] = rank[0] - rank[i] + 1
	}
	// Towers above the new node now skip one more
	for i := lvl; i < sl.level; i++ {
		update[i].span[i]++
	}

	sl.length++
	sl.index[key] = n
	return rank[0] + 1
}

// Remove deletes key. Returns false if it was not present.
func (sl *SkipList) Remove(key string) bool {
	n, ok := sl.index[key]
	if !ok {
		return false
	}
	sl.unlink(n)
	return true
}

func (sl *SkipList) unlink(target *node) {
	var update [maxLevel]*node

	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.next[i] != nil && before(&x.next[i].entry, &target.entry) {
			x = x.next[i]
		}
		update[i] = x
	}

	for i := 0; i < sl.level; i++ {
		if update[i].next[i] == target {
			update[i].span[i] += target.span[i] - 1
			update[i].next[i] = target.next[i]
		} else {
			update[i].span[i]--
		}
	}
	for sl.level > 1 && sl.head.next[sl.level-1] == nil {
		sl.level--
	}

	sl.length--
	delete(sl.index, target.entry.Key)
}

// Rank returns the 1-based rank of key, or 0 if absent
func (sl *SkipList) Rank(key string) int {
	n, ok := sl.index[key]
	if !ok {
		return 0
	}
	return sl.rankOf(n)
}

func (sl *SkipList) rankOf(n *node) int {
	rank := 0
	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.next[i] != nil && (x.next[i] == n || before(&x.next[i].entry, &n.entry)) {
			rank += x.span[i]
			x = x.next[i]
		}
		if x == n {
			return rank
		}
	}
	return 0
}

// Score returns the score stored for key
func (sl *SkipList) Score(key string) (float64, bool) {
	n, ok := sl.index[key]
	if !ok {
		return 0, false
	}
	return n.entry.Score, true
}

// ByRank returns the entry at a 1-based rank
func (sl *SkipList) ByRank(r int) (Entry, bool) {
	n := sl.nodeAt(r)
	if n == nil {
		return Entry{}, false
	}
	return n.entry, true
}

func (sl *SkipList) nodeAt(r int) *node {
	if r < 1 || r > sl.length {
		return nil
	}
	traversed := 0
	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.next[i] != nil && traversed+x.span[i] <= r {
			traversed += x.span[i]
			x = x.next[i]
		}
		if traversed == r {
			return x
		}
	}
	return nil
}

// Range returns up to count entries starting at a 1-based rank
func (sl *SkipList) Range(start, count int) []Entry {
	if count <= 0 {
		return nil
	}
	x := sl.nodeAt(start)
	if x == nil {
		return nil
	}

	out := make([]Entry, 0, min(count, sl.length-start+1))
	for ; x != nil && len(out) < count; x = x.next[0] {
		out = append(out, x.entry)
	}
	return out
}

// ForEach walks entries in rank order until fn returns false
func (sl *SkipList) ForEach(fn func(rank int, e Entry) bool) {
	r := 0
	for x := sl.head.next[0]; x != nil; x = x.next[0] {
		r++
		if !fn(r, x.entry) {
			return
		}
	}
}
