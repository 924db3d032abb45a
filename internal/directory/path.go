package directory

import (
	"fmt"
	"github.com/gostonefire/exthashdb/crt"
	"github.com/gostonefire/exthashdb/internal/utils"
)

// PathItem - One node passed during a walk through the directory
//   - Node is the node index
//   - Offset is the first slot of the hash map used in the node
//   - ItemIndex is the slot passed through
//   - Start is the number of hash bits consumed before entering the node
//   - Depth is the local depth of the node
type PathItem struct {
	Node      int32
	Offset    int
	ItemIndex int
	Start     int
	Depth     int
}

// End - Returns number of hash bits consumed after passing the node
func (P PathItem) End() int {
	return P.Start + P.Depth
}

// Path - Nodes passed during a walk, root first
type Path []PathItem

// Last - Returns the item holding the resolved slot
func (P Path) Last() PathItem {
	return P[len(P)-1]
}

// GlobalDepth - Returns total number of hash bits consumed by the walk
func (P Path) GlobalDepth() int {
	return P.Last().End()
}

// Cover - Returns the slots covering every hash sharing the walked hash's leading depth bits. They are found in
// the deepest node entered with no more than depth bits consumed, as an aligned block around the walked slot.
// It returns:
//   - item is the path item of the node holding the block
//   - start is the first slot of the block
//   - size is the number of slots in the block
//   - err is of type crt.CorruptedIndex if the walk did not consume depth bits
func (P Path) Cover(depth int) (item PathItem, start, size int, err error) {
	item = P[0]
	for k := len(P) - 1; k >= 0; k-- {
		if P[k].Start <= depth {
			item = P[k]
			break
		}
	}

	if item.End() < depth {
		err = crt.NewCorruptedIndex(fmt.Sprintf("walk consumed %d bits, less than depth %d", item.End(), depth))
		return
	}

	size = 1 << (item.End() - depth)
	start = utils.AlignDown(item.ItemIndex, size)

	return
}
