package player

import "fmt"

type Item struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Inventory is an ordered item list with a cursor. Counts are always
// positive; an item that runs out is dropped from the list.
type Inventory struct {
	Items []Item `json:"items"`
	Index int    `json:"index"`
}

func (inv *Inventory) Empty() bool {
	return len(inv.Items) == 0
}

func (inv *Inventory) Current() (Item, bool) {
	if inv.Empty() {
		return Item{}, false
	}
	return inv.Items[inv.Index], true
}

// Cycle moves the cursor back for direction 0 and forward for direction 1,
// wrapping at both ends.
func (inv *Inventory) Cycle(direction int) {
	n := len(inv.Items)
	if n == 0 {
		return
	}
	switch direction {
	case 0:
		inv.Index = (inv.Index - 1 + n) % n
	case 1:
		inv.Index = (inv.Index + 1) % n
	}
}

func (inv *Inventory) Text() string {
	item, ok := inv.Current()
	if !ok {
		return "Empty"
	}
	return fmt.Sprintf("%s:  You have %d, %d of %d", item.Name, item.Count, inv.Index+1, len(inv.Items))
}

func (inv *Inventory) Count(name string) int {
	for _, item := range inv.Items {
		if item.Name == name {
			return item.Count
		}
	}
	return 0
}

func (inv *Inventory) Give(name string, amount int) {
	for i := range inv.Items {
		if inv.Items[i].Name != name {
			continue
		}
		inv.Items[i].Count += amount
		if inv.Items[i].Count <= 0 {
			inv.Items = append(inv.Items[:i], inv.Items[i+1:]...)
			if inv.Index > 0 && inv.Index >= i {
				inv.Index--
			}
		}
		return
	}

	if amount > 0 {
		inv.Items = append(inv.Items, Item{Name: name, Count: amount})
	}
}

func (inv *Inventory) normalize() {
	items := inv.Items[:0]
	for _, item := range inv.Items {
		if item.Count > 0 && item.Name != "" {
			items = append(items, item)
		}
	}
	inv.Items = items
	if inv.Index < 0 || inv.Index >= len(inv.Items) {
		inv.Index = 0
	}
}
