package models

// CarRectangle is the pixel bounding box of one detected vehicle.
// (X1, Y1) is the upper left corner and (X2, Y2) the opposite one.
type CarRectangle struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// ToMap returns the rectangle in the shape exposed as entity attributes.
func (r CarRectangle) ToMap() map[string]int {
	return map[string]int{
		"x1": r.X1,
		"x2": r.X2,
		"y1": r.Y1,
		"y2": r.Y2,
	}
}
