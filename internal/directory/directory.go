package directory

import (
	"fmt"
	"github.com/gostonefire/exthashdb/crt"
	"github.com/gostonefire/exthashdb/internal/utils"
)

// DefaultMaxLevelDepth - Default max local depth of a node, giving 256 slots per node
const DefaultMaxLevelDepth = 8

// RootIndex - Arena index of the root node
const RootIndex int32 = 0

// SlotKind - What a directory slot holds
type SlotKind uint8

const (
	// EmptySlot - No bucket has yet been allocated for the slot
	EmptySlot SlotKind = iota
	// BucketSlot - The slot holds the position of a bucket
	BucketSlot
	// ChildSlot - The slot points to a hash map in a child node
	ChildSlot
)

// SlotRef - Content of a directory slot
//   - Bucket is the bucket position when Kind is BucketSlot
//   - Node and Offset identify the child node and the first slot of its hash map when Kind is ChildSlot
type SlotRef struct {
	Kind   SlotKind
	Bucket int64
	Node   int32
	Offset int32
}

// BucketRef - Returns a SlotRef pointing at a bucket
func BucketRef(position int64) SlotRef {
	return SlotRef{Kind: BucketSlot, Bucket: position}
}

// ChildRef - Returns a SlotRef pointing at a hash map in a child node
func ChildRef(node int32, offset int) SlotRef {
	return SlotRef{Kind: ChildSlot, Node: node, Offset: int32(offset)}
}

// Node - A directory node.
// A node of local depth d holds levelSize >> d hash maps of 2^d slots each. The root holds a single map that grows
// from depth 0. Only nodes at max depth hold child references, and a child of depth d is referenced from an
// aligned block of 2^(maxDepth - d) parent slots where block slot j points at the child's map j.
type Node struct {
	LocalDepth uint8
	Slots      []SlotRef
}

// MapSize - Number of slots in each of the node's hash maps
func (N *Node) MapSize() int {
	return 1 << N.LocalDepth
}

// uniformMaps - Returns true if every hash map in the node holds one and the same reference in all its slots
// and none of them is a child reference
func (N *Node) uniformMaps() bool {
	mapSize := N.MapSize()
	for m := 0; m < len(N.Slots); m += mapSize {
		if !uniform(N.Slots[m : m+mapSize]) {
			return false
		}
	}

	return true
}

// uniform - Returns true if all slots hold the same non child reference
func uniform(slots []SlotRef) bool {
	first := slots[0]
	if first.Kind == ChildSlot {
		return false
	}
	for _, s := range slots[1:] {
		if s != first {
			return false
		}
	}

	return true
}

// Directory - Arena of directory nodes with an explicit stack of released node indexes
type Directory struct {
	maxLevelDepth int
	nodes         []*Node
	free          []int32
}

// New - Returns a pointer to a new Directory holding only an empty root node of depth 0
//   - maxLevelDepth is the max local depth of a node (1 to 8)
func New(maxLevelDepth int) (directory *Directory, err error) {
	if maxLevelDepth < 1 || maxLevelDepth > DefaultMaxLevelDepth {
		err = fmt.Errorf("max level depth must be between 1 and %d, got %d", DefaultMaxLevelDepth, maxLevelDepth)
		return
	}

	directory = &Directory{maxLevelDepth: maxLevelDepth}
	directory.Reset()

	return
}

// Restore - Returns a pointer to a Directory built from previously saved nodes, nil entries are released slots
func Restore(maxLevelDepth int, nodes []*Node) (directory *Directory, err error) {
	directory, err = New(maxLevelDepth)
	if err != nil {
		return
	}

	if len(nodes) == 0 || nodes[RootIndex] == nil {
		err = crt.NewCorruptedIndex("directory has no root node")
		return
	}

	levelSize := directory.LevelSize()
	directory.nodes = nodes
	directory.free = directory.free[:0]
	for i := len(nodes) - 1; i >= 0; i-- {
		if nodes[i] == nil {
			directory.free = append(directory.free, int32(i))
			continue
		}
		if len(nodes[i].Slots) != levelSize || int(nodes[i].LocalDepth) > maxLevelDepth {
			err = crt.NewCorruptedIndex(fmt.Sprintf("node %d does not fit the level size", i))
			return
		}
	}

	return
}

// Reset - Drops all nodes and leaves an empty root node of depth 0
func (D *Directory) Reset() {
	D.nodes = []*Node{D.newNode(0)}
	D.free = nil
}

// MaxLevelDepth - Returns the max local depth of a node
func (D *Directory) MaxLevelDepth() int {
	return D.maxLevelDepth
}

// LevelSize - Returns number of slots in a node
func (D *Directory) LevelSize() int {
	return 1 << D.maxLevelDepth
}

// Node - Returns node at index, nil if the index is released or out of range
func (D *Directory) Node(index int32) *Node {
	if index < 0 || int(index) >= len(D.nodes) {
		return nil
	}
	return D.nodes[index]
}

// Nodes - Returns the arena, released slots are nil. The returned slice must not be modified.
func (D *Directory) Nodes() []*Node {
	return D.nodes
}

// NodeCount - Returns number of live nodes
func (D *Directory) NodeCount() int {
	return len(D.nodes) - len(D.free)
}

// Root - Returns the root node
func (D *Directory) Root() *Node {
	return D.nodes[RootIndex]
}

// allocate - Adds a node, reusing the most recently released index if there is one
func (D *Directory) allocate(node *Node) (index int32) {
	if n := len(D.free); n > 0 {
		index = D.free[n-1]
		D.free = D.free[:n-1]
		D.nodes[index] = node
		return
	}

	index = int32(len(D.nodes))
	D.nodes = append(D.nodes, node)

	return
}

// release - Releases a node index for reuse
func (D *Directory) release(index int32) {
	D.nodes[index] = nil
	D.free = append(D.free, index)
}

func (D *Directory) newNode(depth uint8) *Node {
	return &Node{LocalDepth: depth, Slots: make([]SlotRef, D.LevelSize())}
}

// Walk - Routes hash through the directory, starting at the root and following child references until a slot
// holds a bucket or is empty.
// It returns:
//   - path is every node passed, the last item holds the resolved slot
//   - ref is the content of the resolved slot
//   - err is of type crt.CorruptedIndex if the walk does not resolve
func (D *Directory) Walk(hash uint64) (path Path, ref SlotRef, err error) {
	nodeIndex := RootIndex
	offset := 0
	start := 0
	maxBits := utils.HashBits + D.maxLevelDepth

	for {
		node := D.Node(nodeIndex)
		if node == nil {
			err = crt.NewCorruptedIndex(fmt.Sprintf("walk reached released node %d", nodeIndex))
			return
		}

		depth := int(node.LocalDepth)
		if start+depth > maxBits {
			err = crt.NewCorruptedIndex(fmt.Sprintf("walk exceeded %d hash bits without reaching a bucket", maxBits))
			return
		}

		item := offset + int(utils.Bits(hash, start, depth))
		path = append(path, PathItem{Node: nodeIndex, Offset: offset, ItemIndex: item, Start: start, Depth: depth})

		ref = node.Slots[item]
		if ref.Kind != ChildSlot {
			return
		}

		nodeIndex = ref.Node
		offset = int(ref.Offset)
		start += depth
	}
}

// SetSlot - Sets a single slot
func (D *Directory) SetSlot(nodeIndex int32, slot int, ref SlotRef) {
	D.nodes[nodeIndex].Slots[slot] = ref
}

// SetRange - Sets size slots starting at start in node to ref. Slots holding child references are not replaced,
// the whole referenced child map is set instead.
func (D *Directory) SetRange(nodeIndex int32, start, size int, ref SlotRef) {
	node := D.nodes[nodeIndex]
	for i := start; i < start+size; i++ {
		current := node.Slots[i]
		if current.Kind == ChildSlot {
			D.SetRange(current.Node, int(current.Offset), D.nodes[current.Node].MapSize(), ref)
			continue
		}
		node.Slots[i] = ref
	}
}

// FirstBucket - Returns the first bucket reachable from ref in hash order, found is false if there is none
func (D *Directory) FirstBucket(ref SlotRef) (bucketRef SlotRef, found bool) {
	switch ref.Kind {
	case BucketSlot:
		return ref, true
	case ChildSlot:
		node := D.nodes[ref.Node]
		for i := int(ref.Offset); i < int(ref.Offset)+node.MapSize(); i++ {
			if bucketRef, found = D.FirstBucket(node.Slots[i]); found {
				return
			}
		}
	}

	return
}

// LastBucket - Returns the last bucket reachable from ref in hash order, found is false if there is none
func (D *Directory) LastBucket(ref SlotRef) (bucketRef SlotRef, found bool) {
	switch ref.Kind {
	case BucketSlot:
		return ref, true
	case ChildSlot:
		node := D.nodes[ref.Node]
		for i := int(ref.Offset) + node.MapSize() - 1; i >= int(ref.Offset); i-- {
			if bucketRef, found = D.LastBucket(node.Slots[i]); found {
				return
			}
		}
	}

	return
}

// RootRef - Returns a reference to the root hash map, usable with FirstBucket and LastBucket
func (D *Directory) RootRef() SlotRef {
	return ChildRef(RootIndex, 0)
}

// NextBucket - Returns the first bucket following the slot at the end of path, found is false if there is none
func (D *Directory) NextBucket(path Path) (bucketRef SlotRef, found bool) {
	for k := len(path) - 1; k >= 0; k-- {
		item := path[k]
		node := D.nodes[item.Node]
		mapEnd := item.Offset + 1<<item.Depth
		for i := item.ItemIndex + 1; i < mapEnd; i++ {
			if bucketRef, found = D.FirstBucket(node.Slots[i]); found {
				return
			}
		}
	}

	return
}

// PrevBucket - Returns the last bucket preceding the slot at the end of path, found is false if there is none
func (D *Directory) PrevBucket(path Path) (bucketRef SlotRef, found bool) {
	for k := len(path) - 1; k >= 0; k-- {
		item := path[k]
		node := D.nodes[item.Node]
		for i := item.ItemIndex - 1; i >= item.Offset; i-- {
			if bucketRef, found = D.LastBucket(node.Slots[i]); found {
				return
			}
		}
	}

	return
}
