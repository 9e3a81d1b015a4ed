package field

// Point is a GeoJSON point coordinate pair
type Point struct {
	X float64
	Y float64
}

// GeoJSON returns the point as a GeoJSON geometry object
func (p Point) GeoJSON() map[string]any {
	return map[string]any{
		"type":        "Point",
		"coordinates": []any{p.X, p.Y},
	}
}

// GeoPoint holds a GeoJSON point
type GeoPoint struct {
	scalar[Point, pointKind]
}

type pointKind struct{}

func (pointKind) convert(f *base, v any) (Point, error) {
	switch t := v.(type) {
	case nil:
		return Point{}, nil
	case Point:
		return t, nil
	case *Point:
		if t == nil {
			return Point{}, nil
		}
		return *t, nil
	case []float64:
		if len(t) == 2 {
			return Point{X: t[0], Y: t[1]}, nil
		}
	case []any:
		if p, ok := coordinates(t); ok {
			return p, nil
		}
	case map[string]any:
		if c, ok := t["coordinates"].([]any); ok {
			if p, ok := coordinates(c); ok {
				return p, nil
			}
		}
		x, okx := toFloat(t["x"])
		y, oky := toFloat(t["y"])
		if okx && oky {
			return Point{X: x, Y: y}, nil
		}
	}
	return Point{}, newTypeError(f.Path(), "point", v)
}

func coordinates(c []any) (Point, bool) {
	if len(c) != 2 {
		return Point{}, false
	}
	x, okx := toFloat(c[0])
	y, oky := toFloat(c[1])
	if !okx || !oky {
		return Point{}, false
	}
	return Point{X: x, Y: y}, true
}

func (pointKind) copy(v Point) Point { return v }

// equal compares component-wise: moving either coordinate marks the field
func (pointKind) equal(a, b Point) bool { return a.X == b.X && a.Y == b.Y }

func (pointKind) validate(*base, Point) error { return nil }

func (pointKind) clean(_ *base, v Point) (any, error) {
	return v.GeoJSON(), nil
}
