package directory

import (
	"fmt"
	"github.com/gostonefire/exthashdb/crt"
	"github.com/gostonefire/exthashdb/internal/utils"
)

// DoubleRoot - Doubles the root hash map in place, every slot is duplicated into two and the local depth
// is increased by one. The root must be below max depth and hence holds no child references.
func (D *Directory) DoubleRoot() (err error) {
	root := D.Root()
	if int(root.LocalDepth) >= D.maxLevelDepth {
		err = crt.NewCorruptedIndex("root is already at max depth")
		return
	}

	for i := root.MapSize() - 1; i >= 0; i-- {
		root.Slots[2*i+1] = root.Slots[i]
		root.Slots[2*i] = root.Slots[i]
	}
	root.LocalDepth++

	return
}

// SplitNode - Doubles the hash maps of the last node in path, a non root node below max depth. The doubled maps
// no longer fit in one node so the first half stays in the node and the second half goes to a new node, the
// parent block referencing the node is rewritten accordingly. A half where every map holds a single reference
// is not kept as a node, its references are written straight into the parent block instead.
// It returns:
//   - nodesAdded is 1 if a new node was allocated for the second half, otherwise 0
//   - nodesRemoved is 1 if the first half was written into the parent and the node released, otherwise 0
//   - err is of type crt.CorruptedIndex if the path doesn't end in a splittable node
func (D *Directory) SplitNode(path Path) (nodesAdded, nodesRemoved int, err error) {
	if len(path) < 2 {
		err = crt.NewCorruptedIndex("can not split the root node")
		return
	}

	item := path[len(path)-1]
	parentItem := path[len(path)-2]
	node := D.nodes[item.Node]
	parent := D.nodes[parentItem.Node]
	depth := int(node.LocalDepth)
	if depth >= D.maxLevelDepth {
		err = crt.NewCorruptedIndex(fmt.Sprintf("node %d is already at max depth", item.Node))
		return
	}

	levelSize := D.LevelSize()
	doubled := make([]SlotRef, 2*levelSize)
	for i, s := range node.Slots {
		doubled[2*i] = s
		doubled[2*i+1] = s
	}
	left := doubled[:levelSize]
	right := doubled[levelSize:]

	newDepth := depth + 1
	mapSize := 1 << newDepth
	blockSize := 1 << (D.maxLevelDepth - depth)
	blockStart := utils.AlignDown(parentItem.ItemIndex, blockSize)
	half := blockSize / 2

	leftNode := &Node{LocalDepth: uint8(newDepth), Slots: left}
	rightNode := &Node{LocalDepth: uint8(newDepth), Slots: right}

	if rightNode.uniformMaps() {
		for j := 0; j < half; j++ {
			parent.Slots[blockStart+half+j] = right[j*mapSize]
		}
	} else {
		rightIndex := D.allocate(rightNode)
		for j := 0; j < half; j++ {
			parent.Slots[blockStart+half+j] = ChildRef(rightIndex, j*mapSize)
		}
		nodesAdded = 1
	}

	if leftNode.uniformMaps() {
		for j := 0; j < half; j++ {
			parent.Slots[blockStart+j] = left[j*mapSize]
		}
		D.release(item.Node)
		nodesRemoved = 1
	} else {
		D.nodes[item.Node] = leftNode
		for j := 0; j < half; j++ {
			parent.Slots[blockStart+j] = ChildRef(item.Node, j*mapSize)
		}
	}

	return
}

// AddLevel - Adds a new child node below the slot at the end of path, where the node is at max depth. The child
// depth is the max depth among children referenced from the half of the node holding the slot (at least 1), which
// makes the aligned block of parent slots the child is referenced from free of other child references. Each
// child map is filled with the reference its parent slot held.
// It returns:
//   - child is the index of the new node
//   - err is of type crt.CorruptedIndex if the node is not at max depth
func (D *Directory) AddLevel(path Path) (child int32, err error) {
	item := path.Last()
	node := D.nodes[item.Node]
	if int(node.LocalDepth) != D.maxLevelDepth {
		err = crt.NewCorruptedIndex(fmt.Sprintf("node %d is below max depth", item.Node))
		return
	}

	levelSize := D.LevelSize()
	half := levelSize / 2
	from := 0
	if item.ItemIndex >= half {
		from = half
	}

	childDepth := 1
	for i := from; i < from+half; i++ {
		if s := node.Slots[i]; s.Kind == ChildSlot {
			if d := int(D.nodes[s.Node].LocalDepth); d > childDepth {
				childDepth = d
			}
		}
	}

	mapSize := 1 << childDepth
	blockSize := 1 << (D.maxLevelDepth - childDepth)
	blockStart := utils.AlignDown(item.ItemIndex, blockSize)

	newNode := D.newNode(uint8(childDepth))
	for j := 0; j < blockSize; j++ {
		ref := node.Slots[blockStart+j]
		if ref.Kind == ChildSlot {
			err = crt.NewCorruptedIndex(fmt.Sprintf("slot %d of node %d already references a child", blockStart+j, item.Node))
			return
		}
		for k := 0; k < mapSize; k++ {
			newNode.Slots[j*mapSize+k] = ref
		}
	}

	child = D.allocate(newNode)
	for j := 0; j < blockSize; j++ {
		node.Slots[blockStart+j] = ChildRef(child, j*mapSize)
	}

	return
}

// MergeUp - Walks path from the bottom and splices every non root node whose maps each hold a single reference
// into its parent, releasing the node index. Nodes already released are skipped, it stops at the first node that
// can not be merged.
// It returns:
//   - merged is the number of nodes released
func (D *Directory) MergeUp(path Path) (merged int) {
	for k := len(path) - 1; k >= 1; k-- {
		item := path[k]
		node := D.nodes[item.Node]
		if node == nil {
			continue
		}
		if !node.uniformMaps() {
			return
		}

		parentItem := path[k-1]
		D.splice(parentItem.Node, parentItem.ItemIndex, item.Node)
		merged++
	}

	return
}

// MergeRange - Sets size slots starting at start in node to ref like SetRange, and splices every child node it
// wrote through into its parent once all the child's maps hold a single reference. Children are handled before
// their parents.
// It returns:
//   - merged is the number of nodes released
func (D *Directory) MergeRange(nodeIndex int32, start, size int, ref SlotRef) (merged int) {
	node := D.nodes[nodeIndex]
	for i := start; i < start+size; i++ {
		current := node.Slots[i]
		if current.Kind != ChildSlot {
			node.Slots[i] = ref
			continue
		}

		child := D.nodes[current.Node]
		merged += D.MergeRange(current.Node, int(current.Offset), child.MapSize(), ref)
		if child.uniformMaps() {
			D.splice(nodeIndex, i, current.Node)
			merged++
		}
	}

	return
}

// splice - Replaces the block of parent slots referencing child with the single reference of each child map and
// releases child
func (D *Directory) splice(parentIndex int32, parentSlot int, childIndex int32) {
	parent := D.nodes[parentIndex]
	child := D.nodes[childIndex]
	mapSize := child.MapSize()
	blockSize := 1 << (D.maxLevelDepth - int(child.LocalDepth))
	blockStart := utils.AlignDown(parentSlot, blockSize)
	for j := 0; j < blockSize; j++ {
		parent.Slots[blockStart+j] = child.Slots[j*mapSize]
	}

	D.release(childIndex)
}
