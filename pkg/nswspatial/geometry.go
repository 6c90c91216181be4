package nswspatial

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// ringsArea returns the planar area of an ArcGIS polygon given as rings
// of projected coordinates. The first ring is the outer boundary and any
// further rings are holes.
func ringsArea(rings [][][]float64) (float64, error) {
	if len(rings) == 0 {
		return 0, nil
	}

	coords := make([][]geom.Coord, 0, len(rings))
	for _, ring := range rings {
		if len(ring) < 3 {
			continue
		}
		r := make([]geom.Coord, 0, len(ring))
		for _, pt := range ring {
			if len(pt) < 2 {
				return 0, eris.New("nswspatial: short coordinate")
			}
			r = append(r, geom.Coord{pt[0], pt[1]})
		}
		coords = append(coords, r)
	}
	if len(coords) == 0 {
		return 0, nil
	}

	poly, err := geom.NewPolygon(geom.XY).SetCoords(coords)
	if err != nil {
		return 0, eris.Wrap(err, "nswspatial: build polygon")
	}
	return poly.Area(), nil
}
