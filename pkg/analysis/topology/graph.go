// Package topology analyzes the structural shape of the concept token
// graph: centrality, connectivity, density, clustering, shortest paths,
// community structure, and bridge/articulation points. It is a pure
// derived view over pkg/projections.ConceptGraph, rebuilt whenever the
// graph's version advances.
package topology

import (
	"math"
	"sort"
	"sync"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/projections"
)

// ScoredNode pairs a token with a centrality or ranking score.
type ScoredNode struct {
	Node  string
	Score float64
}

// DegreeMetrics holds raw and normalized degree statistics per node.
type DegreeMetrics struct {
	Degree              map[string]float64
	InDegree            map[string]float64
	OutDegree           map[string]float64
	DegreeCentrality    map[string]float64
	InDegreeCentrality  map[string]float64
	OutDegreeCentrality map[string]float64
}

// Connectivity reports weak and strong connected components.
type Connectivity struct {
	WeakComponents   [][]string
	StrongComponents [][]string
	WeakCount        int
	StrongCount      int
}

// PathMetrics summarizes shortest-path statistics over the largest weakly
// connected component.
type PathMetrics struct {
	AvgPathLength float64
	Diameter      int
	Disconnected  bool
	ComponentSize int
}

// CommunityResult partitions nodes into communities via label propagation.
type CommunityResult struct {
	Communities [][]string
	Assignments map[string]int
}

// Summary aggregates the headline topology metrics for a graph snapshot.
type Summary struct {
	NodeCount                 int
	EdgeCount                 int
	Density                   float64
	ClusteringCoefficient     float64
	WeakComponentCount        int
	StrongComponentCount      int
	Disconnected              bool
	AvgPathLength             float64
	Diameter                  int
	LargestComponentSize      int
	BridgeNodes               []ScoredNode
	StructuralVulnerabilities []string
	DegreeDistribution        map[string]map[int]int
}

// Analyzer tracks the directed concept graph topology derived from a
// ConceptGraph projection, with centrality and connectivity metrics cached
// per graph version.
type Analyzer struct {
	mu sync.RWMutex

	concepts *projections.ConceptGraph

	nodes   map[string]struct{}
	out     map[string]map[string]bool
	in      map[string]map[string]bool
	version int64

	cache        map[string]interface{}
	cacheVersion map[string]int64
}

// NewAnalyzer builds a topology analyzer over a concept graph, performing
// an initial rebuild.
func NewAnalyzer(concepts *projections.ConceptGraph) *Analyzer {
	a := &Analyzer{
		concepts:     concepts,
		cache:        make(map[string]interface{}),
		cacheVersion: make(map[string]int64),
	}
	a.Rebuild()
	return a
}

// Rebuild discards cached topology and replays it from the concept graph.
func (a *Analyzer) Rebuild() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nodes = make(map[string]struct{})
	a.out = make(map[string]map[string]bool)
	a.in = make(map[string]map[string]bool)
	for _, tok := range a.concepts.Tokens() {
		a.addNodeLocked(tok)
	}
	for _, e := range a.concepts.Edges() {
		a.addNodeLocked(e.From)
		a.addNodeLocked(e.To)
		a.addEdgeLocked(e.From, e.To)
	}
	a.version = a.concepts.GraphVersion()
	a.cache = make(map[string]interface{})
	a.cacheVersion = make(map[string]int64)
}

// Sync rebuilds the topology if the underlying concept graph has advanced
// past the last version this analyzer observed.
func (a *Analyzer) Sync() {
	a.mu.RLock()
	stale := a.concepts.GraphVersion() != a.version
	a.mu.RUnlock()
	if stale {
		a.Rebuild()
	}
}

func (a *Analyzer) addNodeLocked(tok string) {
	if _, ok := a.nodes[tok]; !ok {
		a.nodes[tok] = struct{}{}
		a.out[tok] = make(map[string]bool)
		a.in[tok] = make(map[string]bool)
	}
}

func (a *Analyzer) addEdgeLocked(from, to string) {
	if from == "" || to == "" {
		return
	}
	a.out[from][to] = true
	a.in[to][from] = true
}

// GraphVersion returns the concept graph version this topology reflects.
func (a *Analyzer) GraphVersion() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.version
}

// NodeCount returns the number of concept tokens in the graph.
func (a *Analyzer) NodeCount() int {
	a.Sync()
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.nodes)
}

// EdgeCount returns the number of directed relation edges in the graph.
func (a *Analyzer) EdgeCount() int {
	a.Sync()
	a.mu.RLock()
	defer a.mu.RUnlock()
	n := 0
	for _, m := range a.out {
		n += len(m)
	}
	return n
}

func (a *Analyzer) sortedNodesLocked() []string {
	out := make([]string, 0, len(a.nodes))
	for n := range a.nodes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (a *Analyzer) undirectedAdjLocked() map[string]map[string]bool {
	return toUndirected(a.sortedNodesLocked(), a.out)
}

// DegreeMetrics returns raw and normalized in/out/total degree per node.
func (a *Analyzer) DegreeMetrics() DegreeMetrics {
	a.Sync()
	a.mu.Lock()
	defer a.mu.Unlock()
	if v, ok := a.cache["degree"]; ok && a.cacheVersion["degree"] == a.version {
		return v.(DegreeMetrics)
	}

	n := len(a.nodes)
	denom := float64(maxInt(n-1, 1))
	deg := make(map[string]float64, n)
	indeg := make(map[string]float64, n)
	outdeg := make(map[string]float64, n)
	degC := make(map[string]float64, n)
	inC := make(map[string]float64, n)
	outC := make(map[string]float64, n)
	for node := range a.nodes {
		id := float64(len(a.in[node]))
		od := float64(len(a.out[node]))
		indeg[node] = id
		outdeg[node] = od
		deg[node] = id + od
		degC[node] = deg[node] / denom
		inC[node] = id / denom
		outC[node] = od / denom
	}
	m := DegreeMetrics{
		Degree:              deg,
		InDegree:            indeg,
		OutDegree:           outdeg,
		DegreeCentrality:    degC,
		InDegreeCentrality:  inC,
		OutDegreeCentrality: outC,
	}
	a.cache["degree"] = m
	a.cacheVersion["degree"] = a.version
	return m
}

// DegreeDistribution buckets node counts by in/out degree value.
func (a *Analyzer) DegreeDistribution() map[string]map[int]int {
	metrics := a.DegreeMetrics()
	distIn := make(map[int]int)
	distOut := make(map[int]int)
	for _, d := range metrics.InDegree {
		distIn[int(d)]++
	}
	for _, d := range metrics.OutDegree {
		distOut[int(d)]++
	}
	return map[string]map[int]int{"in_degree": distIn, "out_degree": distOut}
}

// Centrality computes one of: degree, in_degree, out_degree, betweenness,
// closeness, eigenvector, pagerank. Results are cached per graph version.
func (a *Analyzer) Centrality(metric string) map[string]float64 {
	a.Sync()
	a.mu.Lock()
	key := "centrality:" + metric
	if v, ok := a.cache[key]; ok && a.cacheVersion[key] == a.version {
		a.mu.Unlock()
		return v.(map[string]float64)
	}
	nodes := a.sortedNodesLocked()
	out := a.out
	undirected := a.undirectedAdjLocked()
	a.mu.Unlock()

	var result map[string]float64
	switch metric {
	case "betweenness":
		result = betweennessCentrality(nodes, out)
	case "closeness":
		result = closenessCentrality(nodes, out)
	case "eigenvector":
		result = eigenvectorCentrality(nodes, undirected)
	case "pagerank":
		result = pagerankCentrality(nodes, out)
	case "degree":
		result = a.DegreeMetrics().DegreeCentrality
	case "in_degree":
		result = a.DegreeMetrics().InDegreeCentrality
	case "out_degree":
		result = a.DegreeMetrics().OutDegreeCentrality
	default:
		result = map[string]float64{}
	}

	a.mu.Lock()
	a.cache[key] = result
	a.cacheVersion[key] = a.version
	a.mu.Unlock()
	return result
}

// TopK ranks nodes by a centrality metric, highest first, ties broken
// lexicographically.
func (a *Analyzer) TopK(metric string, k int) []ScoredNode {
	values := a.Centrality(metric)
	out := make([]ScoredNode, 0, len(values))
	for node, v := range values {
		out = append(out, ScoredNode{Node: node, Score: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Node < out[j].Node
	})
	if k < 0 {
		k = 0
	}
	if k > len(out) {
		k = len(out)
	}
	return out[:k]
}

// Connectivity reports weakly and strongly connected components.
func (a *Analyzer) Connectivity() Connectivity {
	a.Sync()
	a.mu.Lock()
	if v, ok := a.cache["connectivity"]; ok && a.cacheVersion["connectivity"] == a.version {
		a.mu.Unlock()
		return v.(Connectivity)
	}
	nodes := a.sortedNodesLocked()
	out := a.out
	a.mu.Unlock()

	weak := weaklyConnectedComponents(nodes, out)
	strong := stronglyConnectedComponents(nodes, out)
	result := Connectivity{
		WeakComponents:   weak,
		StrongComponents: strong,
		WeakCount:        len(weak),
		StrongCount:      len(strong),
	}
	a.mu.Lock()
	a.cache["connectivity"] = result
	a.cacheVersion["connectivity"] = a.version
	a.mu.Unlock()
	return result
}

// Density returns the directed graph density: edges / (n*(n-1)).
func (a *Analyzer) Density() float64 {
	a.Sync()
	a.mu.RLock()
	defer a.mu.RUnlock()
	n := len(a.nodes)
	if n <= 1 {
		return 0
	}
	m := 0
	for _, s := range a.out {
		m += len(s)
	}
	return float64(m) / float64(n*(n-1))
}

// ClusteringCoefficient returns the average local clustering coefficient of
// the undirected projection of the graph.
func (a *Analyzer) ClusteringCoefficient() float64 {
	a.Sync()
	a.mu.RLock()
	nodes := a.sortedNodesLocked()
	undirected := a.undirectedAdjLocked()
	a.mu.RUnlock()

	if len(nodes) <= 1 {
		return 0
	}
	var total float64
	for _, v := range nodes {
		neighbors := sortedKeys(undirected[v])
		k := len(neighbors)
		if k < 2 {
			continue
		}
		links := 0
		for i := 0; i < len(neighbors); i++ {
			for j := i + 1; j < len(neighbors); j++ {
				if undirected[neighbors[i]][neighbors[j]] {
					links++
				}
			}
		}
		possible := k * (k - 1) / 2
		total += float64(links) / float64(possible)
	}
	return total / float64(len(nodes))
}

// PathMetrics returns average shortest path length and diameter over the
// largest weakly connected component.
func (a *Analyzer) PathMetrics() PathMetrics {
	a.Sync()
	a.mu.Lock()
	if v, ok := a.cache["path"]; ok && a.cacheVersion["path"] == a.version {
		a.mu.Unlock()
		return v.(PathMetrics)
	}
	nodes := a.sortedNodesLocked()
	out := a.out
	a.mu.Unlock()

	result := computePathMetrics(nodes, out)

	a.mu.Lock()
	a.cache["path"] = result
	a.cacheVersion["path"] = a.version
	a.mu.Unlock()
	return result
}

func computePathMetrics(nodes []string, out map[string]map[string]bool) PathMetrics {
	if len(nodes) <= 1 {
		return PathMetrics{}
	}

	weak := weaklyConnectedComponents(nodes, out)
	disconnected := len(weak) > 1
	var largest []string
	for _, c := range weak {
		if len(c) > len(largest) {
			largest = c
		}
	}
	if len(largest) == 0 {
		return PathMetrics{Disconnected: disconnected}
	}

	members := make(map[string]bool, len(largest))
	for _, n := range largest {
		members[n] = true
	}
	undirected := make(map[string]map[string]bool, len(largest))
	for _, n := range largest {
		undirected[n] = make(map[string]bool)
	}
	for from, tos := range out {
		if !members[from] {
			continue
		}
		for to := range tos {
			if members[to] {
				undirected[from][to] = true
				undirected[to][from] = true
			}
		}
	}

	var totalDist, pairCount float64
	diameter := 0
	for _, s := range largest {
		dist := bfsDistances(s, undirected)
		for _, t := range largest {
			if t == s {
				continue
			}
			d, ok := dist[t]
			if !ok {
				continue
			}
			totalDist += float64(d)
			pairCount++
			if d > diameter {
				diameter = d
			}
		}
	}
	avg := 0.0
	if pairCount > 0 {
		avg = totalDist / pairCount
	}
	return PathMetrics{
		AvgPathLength: avg,
		Diameter:      diameter,
		Disconnected:  disconnected,
		ComponentSize: len(largest),
	}
}

// ShortestPath returns the unweighted shortest directed path between two
// tokens, or nil if either is absent or no path exists.
func (a *Analyzer) ShortestPath(source, target string) []string {
	a.Sync()
	a.mu.RLock()
	_, hasSource := a.nodes[source]
	_, hasTarget := a.nodes[target]
	out := a.out
	a.mu.RUnlock()
	if !hasSource || !hasTarget {
		return nil
	}
	if source == target {
		return []string{source}
	}

	prev := map[string]string{}
	visited := map[string]bool{source: true}
	queue := []string{source}
	found := false
	for len(queue) > 0 && !found {
		v := queue[0]
		queue = queue[1:]
		for _, w := range sortedKeys(out[v]) {
			if visited[w] {
				continue
			}
			visited[w] = true
			prev[w] = v
			if w == target {
				found = true
				break
			}
			queue = append(queue, w)
		}
	}
	if !visited[target] {
		return nil
	}
	path := []string{target}
	cur := target
	for cur != source {
		cur = prev[cur]
		path = append([]string{cur}, path...)
	}
	return path
}

// Communities partitions the undirected projection into communities via
// label propagation, the stdlib-only substitute for Louvain modularity.
func (a *Analyzer) Communities() CommunityResult {
	a.Sync()
	a.mu.Lock()
	if v, ok := a.cache["communities"]; ok && a.cacheVersion["communities"] == a.version {
		a.mu.Unlock()
		return v.(CommunityResult)
	}
	nodes := a.sortedNodesLocked()
	undirected := a.undirectedAdjLocked()
	a.mu.Unlock()

	var result CommunityResult
	if len(nodes) == 0 {
		result = CommunityResult{Assignments: map[string]int{}}
	} else {
		communities := labelPropagationCommunities(nodes, undirected)
		assignments := make(map[string]int, len(nodes))
		for idx, c := range communities {
			for _, n := range c {
				assignments[n] = idx
			}
		}
		result = CommunityResult{Communities: communities, Assignments: assignments}
	}

	a.mu.Lock()
	a.cache["communities"] = result
	a.cacheVersion["communities"] = a.version
	a.mu.Unlock()
	return result
}

// BridgeNodes returns the top-k tokens by betweenness centrality.
func (a *Analyzer) BridgeNodes(topK int) []ScoredNode {
	return a.TopK("betweenness", topK)
}

// StructuralVulnerabilities returns articulation points of the undirected
// projection: tokens whose removal disconnects the graph.
func (a *Analyzer) StructuralVulnerabilities() []string {
	a.Sync()
	a.mu.Lock()
	if v, ok := a.cache["vulnerabilities"]; ok && a.cacheVersion["vulnerabilities"] == a.version {
		a.mu.Unlock()
		return v.([]string)
	}
	nodes := a.sortedNodesLocked()
	undirected := a.undirectedAdjLocked()
	a.mu.Unlock()

	var result []string
	if len(nodes) > 1 {
		result = articulationPoints(nodes, undirected)
	} else {
		result = []string{}
	}

	a.mu.Lock()
	a.cache["vulnerabilities"] = result
	a.cacheVersion["vulnerabilities"] = a.version
	a.mu.Unlock()
	return result
}

// Summary aggregates the headline topology metrics in one call.
func (a *Analyzer) Summary() Summary {
	connectivity := a.Connectivity()
	path := a.PathMetrics()
	return Summary{
		NodeCount:                 a.NodeCount(),
		EdgeCount:                 a.EdgeCount(),
		Density:                   a.Density(),
		ClusteringCoefficient:     a.ClusteringCoefficient(),
		WeakComponentCount:        connectivity.WeakCount,
		StrongComponentCount:      connectivity.StrongCount,
		Disconnected:              path.Disconnected,
		AvgPathLength:             path.AvgPathLength,
		Diameter:                  path.Diameter,
		LargestComponentSize:      path.ComponentSize,
		BridgeNodes:               a.BridgeNodes(5),
		StructuralVulnerabilities: a.StructuralVulnerabilities(),
		DegreeDistribution:        a.DegreeDistribution(),
	}
}

// directedSubgraph returns the induced subgraph (directed edges preserved)
// over the given node subset.
func (a *Analyzer) directedSubgraph(present []string) map[string]map[string]bool {
	a.Sync()
	a.mu.RLock()
	defer a.mu.RUnlock()
	members := make(map[string]bool, len(present))
	for _, p := range present {
		members[p] = true
	}
	sub := make(map[string]map[string]bool, len(present))
	for _, p := range present {
		sub[p] = make(map[string]bool)
	}
	for from, tos := range a.out {
		if !members[from] {
			continue
		}
		for to := range tos {
			if members[to] {
				sub[from][to] = true
			}
		}
	}
	return sub
}

func (a *Analyzer) hasNode(token string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.nodes[token]
	return ok
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func toUndirected(nodes []string, directed map[string]map[string]bool) map[string]map[string]bool {
	adj := make(map[string]map[string]bool, len(nodes))
	for _, n := range nodes {
		adj[n] = make(map[string]bool)
	}
	for from, tos := range directed {
		for to := range tos {
			if adj[from] == nil || adj[to] == nil {
				continue
			}
			adj[from][to] = true
			adj[to][from] = true
		}
	}
	return adj
}

func bfsDistances(s string, adj map[string]map[string]bool) map[string]int {
	dist := map[string]int{s: 0}
	queue := []string{s}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, w := range sortedKeys(adj[v]) {
			if _, ok := dist[w]; !ok {
				dist[w] = dist[v] + 1
				queue = append(queue, w)
			}
		}
	}
	return dist
}

// betweennessCentrality implements Brandes' algorithm for unweighted
// directed graphs, normalized by (n-1)(n-2).
func betweennessCentrality(nodes []string, out map[string]map[string]bool) map[string]float64 {
	cb := make(map[string]float64, len(nodes))
	for _, v := range nodes {
		cb[v] = 0
	}
	n := len(nodes)
	for _, s := range nodes {
		var stack []string
		pred := make(map[string][]string)
		sigma := make(map[string]float64, n)
		dist := make(map[string]int, n)
		for _, v := range nodes {
			sigma[v] = 0
			dist[v] = -1
		}
		sigma[s] = 1
		dist[s] = 0
		queue := []string{s}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, w := range sortedKeys(out[v]) {
				if dist[w] < 0 {
					queue = append(queue, w)
					dist[w] = dist[v] + 1
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					pred[w] = append(pred[w], v)
				}
			}
		}
		delta := make(map[string]float64, n)
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range pred[w] {
				if sigma[w] != 0 {
					delta[v] += (sigma[v] / sigma[w]) * (1 + delta[w])
				}
			}
			if w != s {
				cb[w] += delta[w]
			}
		}
	}
	if n > 2 {
		scale := 1.0 / float64((n-1)*(n-2))
		for v := range cb {
			cb[v] *= scale
		}
	}
	return cb
}

// closenessCentrality uses the Wasserman-Faust formula over outgoing
// reachability, valid for disconnected graphs.
func closenessCentrality(nodes []string, out map[string]map[string]bool) map[string]float64 {
	n := len(nodes)
	result := make(map[string]float64, n)
	for _, s := range nodes {
		dist := bfsDistances(s, out)
		total := 0
		reachable := 0
		for _, v := range nodes {
			if v == s {
				continue
			}
			if d, ok := dist[v]; ok {
				total += d
				reachable++
			}
		}
		if total > 0 && n > 1 {
			result[s] = (float64(reachable) / float64(total)) * (float64(reachable) / float64(n-1))
		} else {
			result[s] = 0
		}
	}
	return result
}

// eigenvectorCentrality runs power iteration on the undirected projection.
func eigenvectorCentrality(nodes []string, undirected map[string]map[string]bool) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return map[string]float64{}
	}
	x := make(map[string]float64, n)
	for _, v := range nodes {
		x[v] = 1.0
	}
	for iter := 0; iter < 500; iter++ {
		next := make(map[string]float64, n)
		for _, v := range nodes {
			sum := 0.0
			for w := range undirected[v] {
				sum += x[w]
			}
			next[v] = sum
		}
		norm := 0.0
		for _, v := range nodes {
			norm += next[v] * next[v]
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			return map[string]float64{}
		}
		maxDelta := 0.0
		for _, v := range nodes {
			next[v] /= norm
			if d := math.Abs(next[v] - x[v]); d > maxDelta {
				maxDelta = d
			}
		}
		x = next
		if maxDelta < 1e-06 {
			break
		}
	}
	return x
}

// pagerankCentrality runs standard damped-random-walk pagerank with
// dangling-node mass redistributed uniformly.
func pagerankCentrality(nodes []string, out map[string]map[string]bool) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return map[string]float64{}
	}
	const damping = 0.85
	rank := make(map[string]float64, n)
	for _, v := range nodes {
		rank[v] = 1.0 / float64(n)
	}
	inEdges := make(map[string][]string, n)
	outDeg := make(map[string]int, n)
	for _, v := range nodes {
		outDeg[v] = len(out[v])
		for w := range out[v] {
			inEdges[w] = append(inEdges[w], v)
		}
	}
	for iter := 0; iter < 200; iter++ {
		danglingSum := 0.0
		for _, v := range nodes {
			if outDeg[v] == 0 {
				danglingSum += rank[v]
			}
		}
		base := (1 - damping) / float64(n)
		danglingShare := damping * danglingSum / float64(n)
		next := make(map[string]float64, n)
		diff := 0.0
		for _, v := range nodes {
			sum := 0.0
			for _, u := range inEdges[v] {
				sum += rank[u] / float64(outDeg[u])
			}
			next[v] = base + danglingShare + damping*sum
			diff += math.Abs(next[v] - rank[v])
		}
		rank = next
		if diff < 1e-10 {
			break
		}
	}
	return rank
}

func weaklyConnectedComponents(nodes []string, out map[string]map[string]bool) [][]string {
	undirected := toUndirected(nodes, out)
	visited := make(map[string]bool, len(nodes))
	var components [][]string
	for _, n := range nodes {
		if visited[n] {
			continue
		}
		var comp []string
		queue := []string{n}
		visited[n] = true
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			comp = append(comp, v)
			for w := range undirected[v] {
				if !visited[w] {
					visited[w] = true
					queue = append(queue, w)
				}
			}
		}
		sort.Strings(comp)
		components = append(components, comp)
	}
	sort.Slice(components, func(i, j int) bool { return components[i][0] < components[j][0] })
	return components
}

// stronglyConnectedComponents implements Tarjan's algorithm.
func stronglyConnectedComponents(nodes []string, out map[string]map[string]bool) [][]string {
	index := 0
	indices := make(map[string]int)
	lowlink := make(map[string]int)
	onStack := make(map[string]bool)
	var stack []string
	var components [][]string

	var strongconnect func(v string)
	strongconnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range sortedKeys(out[v]) {
			if _, seen := indices[w]; !seen {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var comp []string
			for {
				top := len(stack) - 1
				w := stack[top]
				stack = stack[:top]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			sort.Strings(comp)
			components = append(components, comp)
		}
	}

	for _, v := range nodes {
		if _, seen := indices[v]; !seen {
			strongconnect(v)
		}
	}
	sort.Slice(components, func(i, j int) bool { return components[i][0] < components[j][0] })
	return components
}

// articulationPoints finds cut vertices of an undirected graph via the
// classic DFS low-link algorithm.
func articulationPoints(nodes []string, adj map[string]map[string]bool) []string {
	disc := make(map[string]int)
	low := make(map[string]int)
	parent := make(map[string]string)
	isRoot := make(map[string]bool)
	isArt := make(map[string]bool)
	timer := 0

	var dfs func(u string)
	dfs = func(u string) {
		disc[u] = timer
		low[u] = timer
		timer++
		children := 0
		for _, v := range sortedKeys(adj[u]) {
			if _, seen := disc[v]; !seen {
				children++
				parent[v] = u
				dfs(v)
				if low[v] < low[u] {
					low[u] = low[v]
				}
				if isRoot[u] && children > 1 {
					isArt[u] = true
				}
				if !isRoot[u] && low[v] >= disc[u] {
					isArt[u] = true
				}
			} else if v != parent[u] {
				if disc[v] < low[u] {
					low[u] = disc[v]
				}
			}
		}
	}

	for _, n := range nodes {
		if _, seen := disc[n]; !seen {
			isRoot[n] = true
			dfs(n)
		}
	}

	out := make([]string, 0, len(isArt))
	for n := range isArt {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// labelPropagationCommunities is a deterministic stdlib substitute for
// Louvain modularity maximization: each node adopts the majority label
// among its neighbors, breaking ties lexicographically, until stable.
func labelPropagationCommunities(nodes []string, adj map[string]map[string]bool) [][]string {
	labels := make(map[string]string, len(nodes))
	for _, n := range nodes {
		labels[n] = n
	}
	for iter := 0; iter < 100; iter++ {
		changed := false
		for _, n := range nodes {
			counts := make(map[string]int)
			for w := range adj[n] {
				counts[labels[w]]++
			}
			if len(counts) == 0 {
				continue
			}
			keys := make([]string, 0, len(counts))
			for k := range counts {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			best := labels[n]
			bestCount := counts[best]
			for _, k := range keys {
				if counts[k] > bestCount {
					best = k
					bestCount = counts[k]
				}
			}
			if best != labels[n] {
				labels[n] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	groups := make(map[string][]string)
	for _, n := range nodes {
		groups[labels[n]] = append(groups[labels[n]], n)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][]string, 0, len(keys))
	for _, k := range keys {
		c := groups[k]
		sort.Strings(c)
		out = append(out, c)
	}
	return out
}
