package city

// Cluster is the axis-aligned bounding region of one contiguous group of
// building tiles. Renderers draw whole blocks from these instead of probing
// tiles one by one.
type Cluster struct {
	Min  Coord `json:"min"`
	Max  Coord `json:"max"`
	Size int   `json:"size"` // Number of building tiles in the group
}

// Clusters returns the building clusters of the map, flood-filling contiguous
// building tiles breadth-first. Every building tile lands in exactly one
// cluster. Computed on first call and cached; the map never changes after load.
func (m *Map) Clusters() []Cluster {
	if m.clusters != nil {
		return m.clusters
	}

	visited := make([]bool, m.Width*m.Height)
	idx := func(c Coord) int { return c.Y*m.Width + c.X }

	clusters := []Cluster{}
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			start := Coord{X: x, Y: y}
			if m.Tiles[y][x].Terrain != TerrainBuilding || visited[idx(start)] {
				continue
			}

			cl := Cluster{Min: start, Max: start}
			queue := []Coord{start}
			visited[idx(start)] = true

			for len(queue) > 0 {
				c := queue[0]
				queue = queue[1:]
				cl.Size++
				if c.X < cl.Min.X {
					cl.Min.X = c.X
				}
				if c.Y < cl.Min.Y {
					cl.Min.Y = c.Y
				}
				if c.X > cl.Max.X {
					cl.Max.X = c.X
				}
				if c.Y > cl.Max.Y {
					cl.Max.Y = c.Y
				}

				for _, d := range Directions {
					n := Step(c, d)
					if !m.InBounds(n) || visited[idx(n)] {
						continue
					}
					if m.Tiles[n.Y][n.X].Terrain != TerrainBuilding {
						continue
					}
					visited[idx(n)] = true
					queue = append(queue, n)
				}
			}

			clusters = append(clusters, cl)
		}
	}

	m.clusters = clusters
	return m.clusters
}

// DoorTiles returns the walkable tiles orthogonally adjacent to at least one
// building. These are the doorstep positions job pickups and dropoffs are
// placed on. Computed on first call and cached, in row scan order.
func (m *Map) DoorTiles() []Coord {
	if m.doors != nil {
		return m.doors
	}

	doors := []Coord{}
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			c := Coord{X: x, Y: y}
			if !m.Tiles[y][x].Terrain.Walkable() {
				continue
			}
			for _, d := range Directions {
				n := Step(c, d)
				if t, ok := m.At(n); ok && t.Terrain == TerrainBuilding {
					doors = append(doors, c)
					break
				}
			}
		}
	}

	m.doors = doors
	return m.doors
}
