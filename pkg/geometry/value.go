package geometry

import (
	"github.com/cbodonnell/evervoid/pkg/value"
)

func (p Point) ToValue() *value.Value {
	return value.NewObject().Set("x", value.Int(p.X)).Set("y", value.Int(p.Y))
}

func PointFromValue(v *value.Value) (Point, error) {
	x, err := v.IntAttr("x")
	if err != nil {
		return Point{}, err
	}
	y, err := v.IntAttr("y")
	if err != nil {
		return Point{}, err
	}
	return Point{X: x, Y: y}, nil
}

func (d Dimension) ToValue() *value.Value {
	return value.NewObject().Set("width", value.Int(d.Width)).Set("height", value.Int(d.Height))
}

func DimensionFromValue(v *value.Value) (Dimension, error) {
	w, err := v.IntAttr("width")
	if err != nil {
		return Dimension{}, err
	}
	h, err := v.IntAttr("height")
	if err != nil {
		return Dimension{}, err
	}
	return Dimension{Width: w, Height: h}, nil
}

func (l GridLocation) ToValue() *value.Value {
	return value.NewObject().
		Set("origin", l.Origin.ToValue()).
		Set("dimension", l.Dimension.ToValue())
}

func GridLocationFromValue(v *value.Value) (GridLocation, error) {
	o, err := v.ObjectAttr("origin")
	if err != nil {
		return GridLocation{}, err
	}
	origin, err := PointFromValue(o)
	if err != nil {
		return GridLocation{}, err
	}
	d, err := v.ObjectAttr("dimension")
	if err != nil {
		return GridLocation{}, err
	}
	dim, err := DimensionFromValue(d)
	if err != nil {
		return GridLocation{}, err
	}
	return GridLocation{Origin: origin, Dimension: dim}, nil
}
