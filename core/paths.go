package core

import (
	"container/heap"
	"sync"

	"github.com/encodeous/reroute/state"
	"github.com/panjf2000/ants/v2"
)

// DistanceTable holds the shortest distance between every reachable pair of nodes.
// Unreachable pairs are absent.
type DistanceTable struct {
	dist map[state.NodeId]map[state.NodeId]float64
}

func (d *DistanceTable) Distance(src, dst state.NodeId) (float64, bool) {
	m, ok := d.dist[src]
	if !ok {
		return 0, false
	}
	v, ok := m[dst]
	return v, ok
}

// PathTable holds one shortest path between every reachable pair of nodes, including both endpoints.
type PathTable struct {
	paths map[state.NodeId]map[state.NodeId][]state.NodeId
}

func (p *PathTable) Path(src, dst state.NodeId) ([]state.NodeId, bool) {
	m, ok := p.paths[src]
	if !ok {
		return nil, false
	}
	v, ok := m[dst]
	return v, ok
}

type queueItem struct {
	node state.NodeId
	dist float64
}

type minQueue []queueItem

func (q minQueue) Len() int { return len(q) }
func (q minQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].node < q[j].node
}
func (q minQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *minQueue) Push(x any)   { *q = append(*q, x.(queueItem)) }
func (q *minQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

type singleSource struct {
	dist  map[state.NodeId]float64
	paths map[state.NodeId][]state.NodeId
}

// shortestPaths runs dijkstra from src. Hosts may only appear at either end of a path.
func shortestPaths(v *TopologyView, src state.NodeId) singleSource {
	dist := map[state.NodeId]float64{src: 0}
	prev := make(map[state.NodeId]state.NodeId)
	done := make(map[state.NodeId]bool)
	topo := v.Topology()

	q := &minQueue{{node: src, dist: 0}}
	for q.Len() > 0 {
		cur := heap.Pop(q).(queueItem)
		if done[cur.node] {
			continue
		}
		done[cur.node] = true
		if cur.node != src && topo.IsHost(cur.node) {
			continue // hosts do not forward
		}
		for adj := range v.Neighbours(cur.node) {
			if done[adj.Neighbour] {
				continue
			}
			nd := cur.dist + adj.Weight
			if old, ok := dist[adj.Neighbour]; ok && nd >= old {
				continue
			}
			dist[adj.Neighbour] = nd
			prev[adj.Neighbour] = cur.node
			heap.Push(q, queueItem{node: adj.Neighbour, dist: nd})
		}
	}

	paths := make(map[state.NodeId][]state.NodeId, len(dist))
	for dst := range dist {
		path := []state.NodeId{dst}
		for cur := dst; cur != src; {
			cur = prev[cur]
			path = append(path, cur)
		}
		for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
			path[i], path[j] = path[j], path[i]
		}
		paths[dst] = path
	}
	return singleSource{dist: dist, paths: paths}
}

// ComputeAllPairs runs a single source shortest path computation from every node of v. The per-source
// runs are submitted to pool when it is not nil, and are otherwise run sequentially.
func ComputeAllPairs(v *TopologyView, pool *ants.Pool) (*DistanceTable, *PathTable) {
	nodes := v.Nodes()
	results := make([]singleSource, len(nodes))

	if pool == nil {
		for i, node := range nodes {
			results[i] = shortestPaths(v, node)
		}
	} else {
		var wg sync.WaitGroup
		for i, node := range nodes {
			wg.Add(1)
			err := pool.Submit(func() {
				defer wg.Done()
				results[i] = shortestPaths(v, node)
			})
			if err != nil {
				// pool is closed or overloaded, compute on this goroutine instead
				results[i] = shortestPaths(v, node)
				wg.Done()
			}
		}
		wg.Wait()
	}

	d := &DistanceTable{dist: make(map[state.NodeId]map[state.NodeId]float64, len(nodes))}
	p := &PathTable{paths: make(map[state.NodeId]map[state.NodeId][]state.NodeId, len(nodes))}
	for i, node := range nodes {
		d.dist[node] = results[i].dist
		p.paths[node] = results[i].paths
	}
	return d, p
}
