package model

// Area is a bookable physical space (room, terrace) owned by the external
// catalog.  The engine only reads it.
//
// Fields:
//  ID          - primary key in the catalog.
//  Name        - display name.
//  MinCapacity - smallest party the area accepts.
//  MaxCapacity - largest party the area accepts.
//  IsActive    - inactive areas cannot receive new reservations.
type Area struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	MinCapacity int    `json:"min_capacity"`
	MaxCapacity int    `json:"max_capacity"`
	IsActive    bool   `json:"is_active"`
}

// Fits reports whether guests lies within [MinCapacity, MaxCapacity].
func (a Area) Fits(guests int) bool {
	return guests >= a.MinCapacity && guests <= a.MaxCapacity
}
