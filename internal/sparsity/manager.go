package sparsity

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/sparselab/sgain/pkg/errors"
	"github.com/sparselab/sgain/pkg/models"
)

// State tracks the manager's lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateTraining
	StateRestructuring
	StateFinalized
)

// Coord addresses one cell of a weight matrix.
type Coord struct {
	Row, Col int
}

// layerHandle is a non-owning reference into network-owned weight storage.
// The manager mutates weights in place; it never duplicates them.
type layerHandle struct {
	name    string
	weights *mat.Dense
	mask    *mat.Dense // nil for dense layers
}

// Manager owns, per registered weight matrix, a binary connectivity mask and
// the strategy that produced and maintains it. It is the only component that
// mutates masks; networks and the optimizer only observe them.
type Manager struct {
	logger *logrus.Logger
	cfg    models.NetworkConfig
	rng    *rand.Rand
	layers []*layerHandle
	state  State
}

// NewManager creates a mask manager for one network.
func NewManager(cfg models.NetworkConfig, logger *logrus.Logger, rng *rand.Rand) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		logger: logger,
		cfg:    cfg,
		rng:    rng,
		state:  StateUninitialized,
	}
}

// Register adds a weight matrix to the manager before initialization.
func (m *Manager) Register(name string, weights *mat.Dense) {
	m.layers = append(m.layers, &layerHandle{name: name, weights: weights})
}

// Init builds the connectivity masks under the configured topology and zeros
// the masked weight entries. Erdos-Renyi (and its random-walk refinement)
// distribute the global budget across layers; the random topology applies the
// same sparsity to each layer independently.
func (m *Manager) Init() error {
	if err := m.cfg.Validate(); err != nil {
		return err
	}
	if m.cfg.Topology == models.TopologyDense {
		m.state = StateInitialized
		return nil
	}

	shapes := make([][2]int, len(m.layers))
	for i, l := range m.layers {
		r, c := l.weights.Dims()
		shapes[i] = [2]int{r, c}
	}

	var counts []int
	switch m.cfg.Topology {
	case models.TopologyRandom:
		counts = make([]int, len(m.layers))
		for i, s := range shapes {
			counts[i] = int(math.Floor((1 - m.cfg.Sparsity) * float64(s[0]*s[1])))
			if counts[i] < 1 {
				counts[i] = 1
			}
		}
	case models.TopologyErdosRenyi, models.TopologyERRW:
		counts = erdosRenyiCounts(shapes, m.cfg.Sparsity)
	}

	for i, l := range m.layers {
		r, c := shapes[i][0], shapes[i][1]
		l.mask = buildMask(m.cfg.Topology, r, c, counts[i], m.cfg.WalkLength, m.cfg.RestartProb, m.rng)
		m.applyLayer(l)
		m.logger.WithFields(logrus.Fields{
			"layer":    l.name,
			"topology": m.cfg.Topology,
			"active":   counts[i],
			"total":    r * c,
		}).Debug("Initialized connectivity mask")
	}
	m.state = StateInitialized
	return nil
}

// Adopt installs previously built connectivity masks instead of sampling
// fresh ones, shape-checked against the registered weights. A nil entry
// leaves that layer dense. Restored snapshots use this so masked training
// can resume where it stopped.
func (m *Manager) Adopt(masks []*mat.Dense) error {
	if len(masks) != len(m.layers) {
		return errors.NewStructuralError(errors.CodeMaskShapeMismatch,
			fmt.Sprintf("have %d masks for %d registered layers", len(masks), len(m.layers)))
	}
	for i, l := range m.layers {
		if masks[i] == nil {
			continue
		}
		wr, wc := l.weights.Dims()
		mr, mc := masks[i].Dims()
		if mr != wr || mc != wc {
			return errors.NewStructuralError(errors.CodeMaskShapeMismatch,
				fmt.Sprintf("layer %s: mask is %dx%d, weights are %dx%d", l.name, mr, mc, wr, wc))
		}
		l.mask = masks[i]
		m.applyLayer(l)
	}
	m.state = StateInitialized
	return nil
}

// BeginTraining moves the manager into its stable training state.
func (m *Manager) BeginTraining() {
	if m.state == StateInitialized {
		m.state = StateTraining
	}
}

// Finalize marks the manager's masks immutable for the rest of the process.
func (m *Manager) Finalize() {
	m.state = StateFinalized
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return m.state
}

// Apply re-zeros every weight entry whose mask is 0. Called after every
// optimizer step so masked entries stay exactly zero in floating point.
func (m *Manager) Apply() {
	for _, l := range m.layers {
		m.applyLayer(l)
	}
}

func (m *Manager) applyLayer(l *layerHandle) {
	if l.mask == nil {
		return
	}
	rows, cols := l.weights.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if l.mask.At(r, c) == 0 {
				l.weights.Set(r, c, 0)
			}
		}
	}
}

// MaskGradients multiplies each gradient element-wise by its layer's
// connectivity mask. Gradients are computed dense and cut down here, so
// inactive entries receive exactly zero update.
func (m *Manager) MaskGradients(grads []*mat.Dense) {
	for i, l := range m.layers {
		if l.mask == nil || i >= len(grads) {
			continue
		}
		grads[i].MulElem(grads[i], l.mask)
	}
}

// ShouldRestructure reports whether the given iteration falls on the
// prune/regrow schedule.
func (m *Manager) ShouldRestructure(iteration int) bool {
	if !m.cfg.IsSparse() || m.cfg.PruneRate <= 0 || m.cfg.PrunePeriod <= 0 {
		return false
	}
	return iteration > 0 && iteration%m.cfg.PrunePeriod == 0
}

// Restructure runs one prune+regrow cycle over every sparse layer, using the
// latest gradients for saliency-based regrowth. It returns the regrown
// coordinates per layer so the caller can reset stale optimizer state.
//
// Structural failures (a cycle that would empty a layer or overflow its
// capacity) skip that layer for this cycle and leave its mask unchanged; the
// active-connection count per layer is invariant across the cycle.
func (m *Manager) Restructure(grads []*mat.Dense) [][]Coord {
	m.state = StateRestructuring
	defer func() { m.state = StateTraining }()

	regrown := make([][]Coord, len(m.layers))
	for i, l := range m.layers {
		if l.mask == nil {
			continue
		}
		var grad *mat.Dense
		if i < len(grads) {
			grad = grads[i]
		}
		coords, err := m.restructureLayer(l, grad)
		if err != nil {
			m.logger.WithFields(logrus.Fields{
				"layer": l.name,
				"error": err,
			}).Warn("Skipping restructuring cycle for layer")
			continue
		}
		regrown[i] = coords
	}
	return regrown
}

type rankedConn struct {
	coord Coord
	score float64
}

func (m *Manager) restructureLayer(l *layerHandle, grad *mat.Dense) ([]Coord, error) {
	rows, cols := l.weights.Dims()

	active := make([]rankedConn, 0)
	inactive := make([]rankedConn, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if l.mask.At(r, c) == 1 {
				active = append(active, rankedConn{Coord{r, c}, math.Abs(l.weights.At(r, c))})
			} else {
				score := 0.0
				if grad != nil {
					score = math.Abs(grad.At(r, c))
				}
				inactive = append(inactive, rankedConn{Coord{r, c}, score})
			}
		}
	}

	pruneCount := int(math.Floor(m.cfg.PruneRate * float64(len(active))))
	if pruneCount == 0 {
		return nil, nil
	}
	if pruneCount >= len(active) {
		return nil, errors.NewStructuralError(errors.CodePruneExhaustsLayer,
			"prune step would remove all active connections")
	}
	if pruneCount > len(inactive) {
		return nil, errors.NewStructuralError(errors.CodeRegrowOverCapacity,
			"regrow step exceeds matrix capacity")
	}

	// Prune the smallest-magnitude connections.
	sort.Slice(active, func(a, b int) bool { return active[a].score < active[b].score })
	for _, conn := range active[:pruneCount] {
		l.mask.Set(conn.coord.Row, conn.coord.Col, 0)
		l.weights.Set(conn.coord.Row, conn.coord.Col, 0)
	}

	// Regrow the same number of connections so the sparsity level is
	// preserved for the lifetime of training. Regrowth first repairs any
	// output unit the prune step left without fan-in, then follows the
	// configured policy.
	coords := m.selectRegrow(l, inactive, pruneCount)
	for _, coord := range coords {
		l.mask.Set(coord.Row, coord.Col, 1)
		// Regrown entries start at zero; their first gradient step gives
		// them a fresh value.
		l.weights.Set(coord.Row, coord.Col, 0)
	}
	return coords, nil
}

func (m *Manager) selectRegrow(l *layerHandle, inactive []rankedConn, count int) []Coord {
	chosen := make([]Coord, 0, count)
	taken := make(map[Coord]bool, count)

	// Repair columns emptied by pruning before spending the regrow budget
	// on the policy's preferences.
	_, cols := l.weights.Dims()
	for c := 0; c < cols && len(chosen) < count; c++ {
		if colActive(l.mask, c) > 0 {
			continue
		}
		best := -1
		for i, conn := range inactive {
			if conn.coord.Col != c || taken[conn.coord] {
				continue
			}
			if best < 0 || conn.score > inactive[best].score {
				best = i
			}
		}
		if best >= 0 {
			chosen = append(chosen, inactive[best].coord)
			taken[inactive[best].coord] = true
		}
	}

	switch m.cfg.RegrowPolicy {
	case models.RegrowGradient:
		// Saliency criterion: largest absolute gradient first.
		sort.Slice(inactive, func(a, b int) bool { return inactive[a].score > inactive[b].score })
		for _, conn := range inactive {
			if len(chosen) == count {
				break
			}
			if !taken[conn.coord] {
				chosen = append(chosen, conn.coord)
				taken[conn.coord] = true
			}
		}
	default: // RegrowRandom
		perm := m.rng.Perm(len(inactive))
		for _, p := range perm {
			if len(chosen) == count {
				break
			}
			if !taken[inactive[p].coord] {
				chosen = append(chosen, inactive[p].coord)
				taken[inactive[p].coord] = true
			}
		}
	}
	return chosen
}
